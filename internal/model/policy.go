package model

import "fmt"

// SelectionMode controls how a batch cycle hands out enemies
type SelectionMode string

const (
	// SelectionModePairs consumes both users of an accepted pair.
	SelectionModePairs SelectionMode = "pairs"
	// SelectionModeDirected gives each user one outbound enemy; inbound is
	// capped by MaxInbound and need not be reciprocated.
	SelectionModeDirected SelectionMode = "directed"
)

// MatchingPolicy holds the tunables shared by on-demand and batch matching
type MatchingPolicy struct {
	MinOverlap      int           `json:"min_overlap" yaml:"min_overlap"`
	ExclusionCycles int           `json:"exclusion_cycles" yaml:"exclusion_cycles"` // <0 = never rematch, 0 = off
	Mode            SelectionMode `json:"mode" yaml:"mode"`
	MirrorPairs     bool          `json:"mirror_pairs" yaml:"mirror_pairs"`
	MaxInbound      int           `json:"max_inbound" yaml:"max_inbound"` // directed mode only, 0 = unbounded
}

// DefaultMatchingPolicy returns the policy used when nothing is configured
func DefaultMatchingPolicy() MatchingPolicy {
	return MatchingPolicy{
		MinOverlap:      3,
		ExclusionCycles: 3,
		Mode:            SelectionModePairs,
		MirrorPairs:     false,
		MaxInbound:      1,
	}
}

// EffectiveMinOverlap never drops below one shared question.
func (p MatchingPolicy) EffectiveMinOverlap() int {
	if p.MinOverlap < 1 {
		return 1
	}
	return p.MinOverlap
}

// Validate checks the policy for values the selector cannot honor
func (p MatchingPolicy) Validate() error {
	switch p.Mode {
	case SelectionModePairs, SelectionModeDirected:
	default:
		return fmt.Errorf("unknown selection mode %q", p.Mode)
	}
	if p.MinOverlap < 0 {
		return fmt.Errorf("min_overlap must not be negative")
	}
	if p.MaxInbound < 0 {
		return fmt.Errorf("max_inbound must not be negative")
	}
	return nil
}
