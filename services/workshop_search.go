package services

import (
	"sort"
	"strings"

	"github.com/autofix-app/autofix-api/models"
	"github.com/autofix-app/autofix-api/rating"
)

// Search sort orders
const (
	SortByRating  = "rating"
	SortByReviews = "reviews"
)

// SearchQuery holds the public workshop search filters
type SearchQuery struct {
	City     string
	Services []string
	SortBy   string
}

// FilterWorkshops applies the search filters to active workshops and orders
// the result premium first, then by the requested criterion.
func FilterWorkshops(workshops []models.Workshop, q SearchQuery) []models.Workshop {
	city := strings.ToLower(strings.TrimSpace(q.City))
	wanted := make(map[string]bool, len(q.Services))
	for _, s := range q.Services {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			wanted[s] = true
		}
	}

	out := make([]models.Workshop, 0, len(workshops))
	for _, w := range workshops {
		if w.Status != models.WorkshopActive {
			continue
		}
		if city != "" && !matchesLocation(w, city) {
			continue
		}
		if len(wanted) > 0 && !offersAny(w.Services, wanted) {
			continue
		}
		out = append(out, w)
	}

	byReviews := q.SortBy == SortByReviews
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsPremium != b.IsPremium {
			return a.IsPremium
		}
		if byReviews {
			if a.TotalReviews != b.TotalReviews {
				return a.TotalReviews > b.TotalReviews
			}
			return a.AverageRating > b.AverageRating
		}
		if a.AverageRating != b.AverageRating {
			return a.AverageRating > b.AverageRating
		}
		return a.TotalReviews > b.TotalReviews
	})
	return out
}

// RecommendWorkshop picks the best active workshop offering category, where an
// offered service matches when either name contains the other. Workshops
// in city are preferred; when none are, every qualified workshop competes.
// Candidates rank by their rating in that category, falling back to the
// overall average when the category has no reviews yet.
func RecommendWorkshop(workshops []models.Workshop, category, city string) (*models.Workshop, bool) {
	category = strings.TrimSpace(category)
	qualified := make([]models.Workshop, 0, len(workshops))
	for _, w := range workshops {
		if w.Status == models.WorkshopActive && rating.CategoryMatch(category, w.Services) == 1 {
			qualified = append(qualified, w)
		}
	}
	if len(qualified) == 0 {
		return nil, false
	}

	if city = strings.ToLower(strings.TrimSpace(city)); city != "" {
		local := make([]models.Workshop, 0, len(qualified))
		for _, w := range qualified {
			if matchesLocation(w, city) {
				local = append(local, w)
			}
		}
		if len(local) > 0 {
			qualified = local
		}
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		ra, ca := categoryScore(qualified[i], category)
		rb, cb := categoryScore(qualified[j], category)
		if ra != rb {
			return ra > rb
		}
		return ca > cb
	})
	return &qualified[0], true
}

// categoryScore returns the rating and review count used to rank w for category
func categoryScore(w models.Workshop, category string) (float64, int) {
	for name, cat := range w.CategoryRatings {
		if strings.EqualFold(name, category) && cat.Rating > 0 {
			return cat.Rating, cat.Count
		}
	}
	return w.AverageRating, w.TotalReviews
}

func matchesLocation(w models.Workshop, city string) bool {
	for _, field := range []string{w.City, w.Zone, w.Address} {
		if strings.Contains(strings.ToLower(field), city) {
			return true
		}
	}
	return false
}

func offersAny(offered []string, wanted map[string]bool) bool {
	for _, s := range offered {
		if wanted[strings.ToLower(strings.TrimSpace(s))] {
			return true
		}
	}
	return false
}
