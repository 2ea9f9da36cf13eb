package strategy

import "context"

// Moderation categories used across the platform. Moderators label
// content with one of these; strategies may also be trained on
// additional custom categories.
const (
	CategorySpam = "spam"
	CategoryHam  = "ham"
)

// Scores maps a category to the probability that a text belongs to it.
// Non-empty scores are normalized and sum to ~1. An empty map means the
// strategy has no training data yet and must be treated as insufficient
// evidence, never as a spam verdict.
type Scores map[string]float64

// Strategy is a pluggable classification algorithm that can be trained,
// queried and untrained over category/text pairs.
type Strategy interface {
	// Train accumulates text as evidence for category. Training the
	// same text twice doubles its influence.
	Train(ctx context.Context, category, text string) error

	// Classify scores text against every known category.
	Classify(ctx context.Context, text string) (Scores, error)

	// Untrain reverses a prior Train call with the same arguments,
	// clamping counters at zero.
	Untrain(ctx context.Context, category, text string) error

	// Reset discards all learned state.
	Reset(ctx context.Context) error
}
