package service

import (
	"math"
	"time"

	"github.com/noetic-labs/covenant/internal/domain"
)

const (
	// StrengthBase is the base memory strength in days: with no accesses and
	// medium importance, relevance falls to 1/e after StrengthBase days.
	StrengthBase = 100.0

	// FloorMedium and FloorHigh pin a minimum strength per importance level.
	// Low importance has no floor.
	FloorMedium = 100.0
	FloorHigh   = 200.0
)

// MemoryStrength returns the decay time constant S in days:
// S = StrengthBase * (1 + ln(1 + access_count)), floored by importance.
// Unset importance counts as medium.
func MemoryStrength(accessCount int, importance domain.Importance) float64 {
	if accessCount < 0 {
		accessCount = 0
	}
	s := StrengthBase * (1 + math.Log(1+float64(accessCount)))

	switch importance {
	case domain.ImportanceLow:
		// no floor
	case domain.ImportanceHigh:
		s = math.Max(s, FloorHigh)
	default: // medium, including unset
		s = math.Max(s, FloorMedium)
	}
	return s
}

// RelevanceScore computes the 0-1 liveness of an edge at query time. Nothing
// is persisted: the same stored row scores lower as time passes.
//
// Constitutive edges are identity, not memory; they never decay.
func RelevanceScore(e *domain.Edge, now time.Time) float64 {
	if e.Properties.EdgeType == domain.EdgeConstitutive {
		return 1.0
	}
	if e.LastAccessed == nil {
		// No basis for decay.
		return 1.0
	}

	s := MemoryStrength(e.AccessCount, e.Properties.Importance)

	daysSince := now.Sub(*e.LastAccessed).Hours() / 24
	if daysSince < 0 {
		daysSince = 0
	}

	score := math.Exp(-daysSince / s)
	return math.Min(1.0, math.Max(0.0, score))
}
