// Package rating computes workshop rating aggregates from approved reviews.
//
// Every function here is pure: callers load the current aggregates, apply a
// score and persist the returned value.
package rating

import (
	"sort"
	"strings"
)

const (
	// GoldBadgeMinReviews is the review volume a category needs before it can earn a gold badge.
	GoldBadgeMinReviews = 50
	// GoldBadgeMinRating is the minimum category average for a gold badge.
	GoldBadgeMinRating = 4.9
	// FeaturedMinReviews is the default volume for a category to be shown as a badge.
	FeaturedMinReviews = 5
)

// CategoryRating is the running aggregate for a single service category.
type CategoryRating struct {
	Rating     float64 `json:"rating"`
	Count      int     `json:"count"`
	TotalScore float64 `json:"total_score"`
	GoldBadge  bool    `json:"gold_badge"`
}

// CategoryRatings maps a service category to its aggregate.
type CategoryRatings map[string]CategoryRating

// Clone returns a copy of the map. A nil map clones to an empty one.
func (r CategoryRatings) Clone() CategoryRatings {
	out := make(CategoryRatings, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ApplyScore folds a new review score for category into the aggregates and
// returns the updated copy. The receiver is never modified.
func ApplyScore(current CategoryRatings, category string, score float64) CategoryRatings {
	ratings := current.Clone()
	if category == "" {
		return ratings
	}

	cat, seen := ratings[category]
	if !seen {
		ratings[category] = CategoryRating{
			Rating:     score,
			Count:      1,
			TotalScore: score,
		}
		return ratings
	}

	previous := cat.Count
	cat.Count++
	// entries written before total_score existed only carry the mean
	if cat.TotalScore == 0 && cat.Rating > 0 {
		cat.TotalScore = cat.Rating * float64(previous)
	}
	cat.TotalScore += score
	cat.Rating = cat.TotalScore / float64(cat.Count)

	if qualifiesForGoldBadge(cat) {
		cat.GoldBadge = true
	}

	ratings[category] = cat
	return ratings
}

// badges are only evaluated on every 50th review and are never revoked
func qualifiesForGoldBadge(cat CategoryRating) bool {
	return cat.Count >= GoldBadgeMinReviews &&
		cat.Count%GoldBadgeMinReviews == 0 &&
		cat.Rating >= GoldBadgeMinRating
}

// Overall returns the count-weighted mean of all category ratings, or 0 when
// there is nothing to average.
func Overall(ratings CategoryRatings) float64 {
	if len(ratings) == 0 {
		return 0
	}

	var weighted float64
	var total int
	for _, cat := range ratings {
		weighted += cat.Rating * float64(cat.Count)
		total += cat.Count
	}
	if total == 0 {
		return 0
	}
	return weighted / float64(total)
}

// ReviewScore converts a customer's star rating into the score fed to the
// aggregates. Stars are used as-is.
func ReviewScore(customerRating int) float64 {
	return float64(customerRating)
}

// UpdateAIAccuracy adds one diagnosis outcome to a running accuracy score.
func UpdateAIAccuracy(score float64, count int, correct bool) (float64, int) {
	newCount := count + 1
	var hit float64
	if correct {
		hit = 1
	}
	return (score*float64(count) + hit) / float64(newCount), newCount
}

// CategoryMatch scores how well a requested service fits a workshop's offer:
// 1 for a substring match in either direction, 0.5 otherwise or when data is missing.
func CategoryMatch(requested string, services []string) float64 {
	if requested == "" || len(services) == 0 {
		return 0.5
	}
	req := strings.ToLower(requested)
	for _, s := range services {
		offered := strings.ToLower(s)
		if strings.Contains(offered, req) || strings.Contains(req, offered) {
			return 1
		}
	}
	return 0.5
}

// FeaturedCategory is a category aggregate worth displaying as a badge.
type FeaturedCategory struct {
	Category string `json:"category"`
	CategoryRating
}

// Featured lists the categories with at least minCount reviews, best rated first.
func Featured(ratings CategoryRatings, minCount int) []FeaturedCategory {
	out := make([]FeaturedCategory, 0, len(ratings))
	for name, cat := range ratings {
		if cat.Count >= minCount {
			out = append(out, FeaturedCategory{Category: name, CategoryRating: cat})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating == out[j].Rating {
			return out[i].Category < out[j].Category
		}
		return out[i].Rating > out[j].Rating
	})
	return out
}
