// Package score computes the corpus-relative desirability ranking over the
// active record set. Scores are recomputed on every read and never stored.
package score

import (
	"math"
	"strconv"
	"strings"

	"github.com/zulandar/vinyard/internal/models"
)

const (
	// defaultScore is used when an attribute cannot be normalized: the value
	// is unparseable, no peer values exist, or min equals max.
	defaultScore = 50.0
	// missingDistancePenalty scores listings without a known distance.
	// The weight is not redistributed.
	missingDistancePenalty = 25.0
)

// Weights holds the per-attribute weights. They must sum to 1.
type Weights struct {
	Price    float64
	Mileage  float64
	Year     float64
	Distance float64
}

// DefaultWeights mirror the shipped configuration defaults.
func DefaultWeights() Weights {
	return Weights{Price: 0.40, Mileage: 0.30, Year: 0.20, Distance: 0.10}
}

// Scorer ranks listings against the full active set.
type Scorer struct {
	weights Weights
}

// NewScorer builds a scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Scores computes the 0-100 desirability score for every listing in the
// set, keyed by listing id. The score is corpus-relative: min/max bounds
// come from this exact set.
func (s *Scorer) Scores(listings []*models.Listing) map[string]float64 {
	bounds := collectBounds(listings)
	out := make(map[string]float64, len(listings))
	for _, l := range listings {
		out[l.ID] = s.scoreOne(l, bounds)
	}
	return out
}

// Score computes one listing's score within the given set.
func (s *Scorer) Score(l *models.Listing, listings []*models.Listing) float64 {
	return s.scoreOne(l, collectBounds(listings))
}

type bounds struct {
	price, mileage, year, distance minMax
}

type minMax struct {
	min, max float64
	ok       bool
}

func (m *minMax) add(v float64) {
	if !m.ok {
		m.min, m.max, m.ok = v, v, true
		return
	}
	m.min = math.Min(m.min, v)
	m.max = math.Max(m.max, v)
}

func collectBounds(listings []*models.Listing) bounds {
	var b bounds
	for _, l := range listings {
		if v, ok := parsePrice(l.Data.Price); ok {
			b.price.add(v)
		}
		if v, ok := parseNumber(l.Data.Mileage); ok {
			b.mileage.add(v)
		}
		if v, ok := parseNumber(l.Data.Year); ok {
			b.year.add(v)
		}
		if v, ok := parseDistance(l.Data.Distance); ok {
			b.distance.add(v)
		}
	}
	return b
}

func (s *Scorer) scoreOne(l *models.Listing, b bounds) float64 {
	priceScore := normalizeInverted(parseOpt(parsePrice(l.Data.Price)), b.price)
	mileageScore := normalizeInverted(parseOpt(parseNumber(l.Data.Mileage)), b.mileage)
	yearScore := normalizeDirect(parseOpt(parseNumber(l.Data.Year)), b.year)

	distanceScore := missingDistancePenalty
	if v, ok := parseDistance(l.Data.Distance); ok {
		distanceScore = normalizeInverted(&v, b.distance)
	}

	total := priceScore*s.weights.Price +
		mileageScore*s.weights.Mileage +
		yearScore*s.weights.Year +
		distanceScore*s.weights.Distance
	return math.Round(total*10) / 10
}

func parseOpt(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// normalizeInverted maps lower raw values to higher scores on a 0-100
// scale across the corpus bounds.
func normalizeInverted(v *float64, b minMax) float64 {
	if v == nil || !b.ok || b.max == b.min {
		return defaultScore
	}
	return clamp(100 * (b.max - *v) / (b.max - b.min))
}

// normalizeDirect maps higher raw values to higher scores.
func normalizeDirect(v *float64, b minMax) float64 {
	if v == nil || !b.ok || b.max == b.min {
		return defaultScore
	}
	return clamp(100 * (*v - b.min) / (b.max - b.min))
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// parseDistance reads site-formatted distances like "120 mi".
func parseDistance(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	for _, suffix := range []string{"miles", "mi"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	}
	return parseNumber(s)
}

// parsePrice reads site-formatted prices like "$16,495".
func parsePrice(s string) (float64, bool) {
	return parseNumber(strings.TrimPrefix(strings.TrimSpace(s), "$"))
}

// parseNumber reads site-formatted numbers like "45,000" or "2017".
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
