// Package analytics aggregates a workshop's appointments and reviews into
// dashboard statistics.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/autofix-app/autofix-api/booking"
)

// Period selects how far back the headline figures look.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodAll   Period = "all"
)

// ParsePeriod maps a query value onto a Period, defaulting to a month.
func ParsePeriod(v string) (Period, bool) {
	switch Period(v) {
	case PeriodWeek, PeriodMonth, PeriodYear, PeriodAll:
		return Period(v), true
	case "":
		return PeriodMonth, true
	}
	return "", false
}

func (p Period) since(now time.Time) time.Time {
	day := 24 * time.Hour
	switch p {
	case PeriodWeek:
		return now.Add(-7 * day)
	case PeriodMonth:
		return now.Add(-30 * day)
	case PeriodYear:
		return now.Add(-365 * day)
	}
	return time.Time{}
}

// UnspecifiedService labels leads booked without a requested service.
const UnspecifiedService = "unspecified"

// Appointment is the subset of appointment data the statistics need.
type Appointment struct {
	Service     string
	Status      booking.Status
	AmountSpent float64
	AIAssisted  bool
	CreatedAt   time.Time
}

// Review is the subset of review data the statistics need.
type Review struct {
	Rating    int
	CreatedAt time.Time
}

// Month is one bucket of the yearly breakdown.
type Month struct {
	Month      int     `json:"month"`
	Leads      int     `json:"leads"`
	Completed  int     `json:"completed"`
	Revenue    float64 `json:"revenue"`
	Conversion int     `json:"conversion"`
}

// ServiceStats is one row of the per-service breakdown.
type ServiceStats struct {
	Service   string  `json:"service"`
	Leads     int     `json:"leads"`
	Completed int     `json:"completed"`
	Revenue   float64 `json:"revenue"`
}

// Report holds the dashboard figures for a period. RatingDistribution counts
// the period's reviews by star, 1 to 5.
type Report struct {
	Period             Period         `json:"period"`
	TotalLeads         int            `json:"total_leads"`
	Pending            int            `json:"pending"`
	Confirmed          int            `json:"confirmed"`
	Completed          int            `json:"completed"`
	DeclinedOrCancel   int            `json:"declined_or_cancelled"`
	ConversionRate     float64        `json:"conversion_rate"`
	AverageRating      float64        `json:"average_rating"`
	Revenue            float64        `json:"revenue"`
	AvgRevenuePerJob   float64        `json:"avg_revenue_per_job"`
	AIAssisted         int            `json:"ai_assisted"`
	AICompletedShare   float64        `json:"ai_completed_share"`
	RatingDistribution map[int]int    `json:"rating_distribution"`
	ByService          []ServiceStats `json:"by_service"`
	Monthly            []Month        `json:"monthly"`
}

// Compute builds the report for period as seen at now. The monthly breakdown
// always covers the calendar year of now regardless of period.
func Compute(appointments []Appointment, reviews []Review, period Period, now time.Time) Report {
	since := period.since(now)
	r := Report{Period: period}

	var aiCompleted int
	services := make(map[string]*ServiceStats)
	for _, a := range appointments {
		if a.CreatedAt.Before(since) {
			continue
		}
		r.TotalLeads++
		svc := serviceRow(services, a.Service)
		svc.Leads++
		switch a.Status {
		case booking.StatusPending:
			r.Pending++
		case booking.StatusConfirmed:
			r.Confirmed++
		case booking.StatusCompleted:
			r.Completed++
			r.Revenue += a.AmountSpent
			svc.Completed++
			svc.Revenue += a.AmountSpent
		case booking.StatusDeclined, booking.StatusCancelled:
			r.DeclinedOrCancel++
		}
		if a.AIAssisted {
			r.AIAssisted++
			if a.Status == booking.StatusCompleted {
				aiCompleted++
			}
		}
	}

	r.ConversionRate = percent(r.Completed, r.TotalLeads)
	r.AICompletedShare = percent(aiCompleted, r.AIAssisted)
	if r.Completed > 0 {
		r.AvgRevenuePerJob = math.Round(r.Revenue / float64(r.Completed))
	}

	r.ByService = sortedServices(services)

	r.RatingDistribution = map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	var ratingSum, rated int
	for _, rv := range reviews {
		if rv.CreatedAt.Before(since) {
			continue
		}
		ratingSum += rv.Rating
		rated++
		if rv.Rating >= 1 && rv.Rating <= 5 {
			r.RatingDistribution[rv.Rating]++
		}
	}
	if rated > 0 {
		r.AverageRating = round1(float64(ratingSum) / float64(rated))
	}

	r.Monthly = monthly(appointments, now.Year())
	return r
}

func serviceRow(rows map[string]*ServiceStats, service string) *ServiceStats {
	service = strings.TrimSpace(service)
	if service == "" {
		service = UnspecifiedService
	}
	row, ok := rows[service]
	if !ok {
		row = &ServiceStats{Service: service}
		rows[service] = row
	}
	return row
}

// sortedServices orders the breakdown busiest first, then by name.
func sortedServices(rows map[string]*ServiceStats) []ServiceStats {
	out := make([]ServiceStats, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Leads != out[j].Leads {
			return out[i].Leads > out[j].Leads
		}
		return out[i].Service < out[j].Service
	})
	return out
}

func monthly(appointments []Appointment, year int) []Month {
	months := make([]Month, 12)
	for i := range months {
		months[i].Month = i + 1
	}
	for _, a := range appointments {
		if a.CreatedAt.Year() != year {
			continue
		}
		m := &months[a.CreatedAt.Month()-1]
		m.Leads++
		if a.Status == booking.StatusCompleted {
			m.Completed++
			m.Revenue += a.AmountSpent
		}
	}
	for i := range months {
		if months[i].Leads > 0 {
			months[i].Conversion = int(math.Round(float64(months[i].Completed) / float64(months[i].Leads) * 100))
		}
	}
	return months
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round1(float64(part) / float64(whole) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
