package decision

import "fmt"

// Thresholds holds the classification cutoffs for the decision cascade.
type Thresholds struct {
	// Structural is the minimum combined structural score (layout similarity
	// gated by key-phrase overlap) to classify as an update.
	// Default: 0.85
	Structural float64

	// Duplicate is the minimum semantic neighbor score to classify as a
	// duplicate. Default: 0.90
	Duplicate float64

	// Similar is the minimum semantic neighbor score to classify as similar,
	// which requires external confirmation before any state change.
	// Default: 0.70
	Similar float64

	// MaxNeighbors bounds how many semantic candidates are examined per
	// classification. Default: 10
	MaxNeighbors int

	// StructuralPrecedence keeps the structural rule ahead of the semantic
	// rule even when the semantic score is higher. When false and both
	// signals qualify, the higher score decides. Default: true
	StructuralPrecedence bool
}

// DefaultThresholds returns the default cascade thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Structural:           0.85,
		Duplicate:            0.90,
		Similar:              0.70,
		MaxNeighbors:         10,
		StructuralPrecedence: true,
	}
}

// Validate checks that the thresholds are in range and mutually consistent.
func (t Thresholds) Validate() error {
	if t.Structural < 0.0 || t.Structural > 1.0 {
		return fmt.Errorf("structural threshold must be between 0.0 and 1.0 (got %.2f)", t.Structural)
	}
	if t.Duplicate < 0.0 || t.Duplicate > 1.0 {
		return fmt.Errorf("duplicate threshold must be between 0.0 and 1.0 (got %.2f)", t.Duplicate)
	}
	if t.Similar < 0.0 || t.Similar > 1.0 {
		return fmt.Errorf("similar threshold must be between 0.0 and 1.0 (got %.2f)", t.Similar)
	}
	if t.Similar > t.Duplicate {
		return fmt.Errorf("similar threshold (%.2f) must not exceed duplicate threshold (%.2f)",
			t.Similar, t.Duplicate)
	}
	if t.MaxNeighbors <= 0 {
		return fmt.Errorf("max neighbors must be positive (got %d)", t.MaxNeighbors)
	}
	if t.MaxNeighbors > 1000 {
		return fmt.Errorf("max neighbors too large (got %d, max 1000)", t.MaxNeighbors)
	}
	return nil
}
