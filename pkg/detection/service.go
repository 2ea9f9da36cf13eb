// Package detection orchestrates training and classification across
// every registered analyzer and keeps the append-only classification
// log.
package detection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civitas/spamguard/pkg/config"
	"github.com/civitas/spamguard/pkg/registry"
	"github.com/civitas/spamguard/pkg/strategy"
)

// Verdict is the aggregated classification outcome.
type Verdict struct {
	// Spam is true when Score >= the configured threshold.
	Spam bool

	// Score is the combined spam score in [0,1].
	Score float64

	// PerAnalyzer holds each analyzer's raw spam score.
	PerAnalyzer map[string]float64

	// Failures lists analyzers that could not contribute. Present only
	// when at least one other analyzer succeeded.
	Failures map[string]error
}

// TrainingReport is the structured result of a Train or Untrain call.
// Partial failure is reported here, not raised, so callers decide
// whether partially trained analyzers are acceptable.
type TrainingReport struct {
	// Trained lists analyzers whose counters were updated.
	Trained []string

	// Failed maps each failing analyzer to its error.
	Failed map[string]error
}

// Partial reports whether some but not all analyzers succeeded.
func (r *TrainingReport) Partial() bool {
	return len(r.Trained) > 0 && len(r.Failed) > 0
}

// FailedNames returns the failing analyzer names, sorted.
func (r *TrainingReport) FailedNames() []string {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllAnalyzersFailedError means no analyzer produced a result. Classify
// fails loudly with it instead of defaulting to "not spam".
type AllAnalyzersFailedError struct {
	Op       string
	Failures map[string]error
}

func (e *AllAnalyzersFailedError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s failed for all analyzers: %s", e.Op, strings.Join(names, ", "))
}

func (e *AllAnalyzersFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}

// Service routes train/classify/untrain calls to every registered
// analyzer through a shared registry and aggregates their results
// against the spam threshold.
type Service struct {
	registry  *registry.Registry
	threshold float64
	method    string
	weights   map[string]float64
	logText   bool

	mu  sync.Mutex
	log []LogEntry
}

// NewService creates a detection service over the shared registry.
func NewService(reg *registry.Registry, cfg *config.Config) *Service {
	weights := make(map[string]float64, len(cfg.Analyzers))
	for _, analyzer := range cfg.Analyzers {
		weight := analyzer.Weight
		if weight == 0 {
			weight = 1.0
		}
		weights[analyzer.Name] = weight
	}

	method := cfg.Detection.Aggregation
	if method == "" {
		method = "mean"
	}

	return &Service{
		registry:  reg,
		threshold: cfg.Detection.SpamThreshold,
		method:    method,
		weights:   weights,
		logText:   cfg.Detection.LogInputText,
	}
}

// Train teaches text as category evidence to every analyzer. Failing
// analyzers are collected in the report and do not abort the rest.
func (s *Service) Train(ctx context.Context, category, text string) (*TrainingReport, error) {
	return s.update(ctx, "train", category, text, strategy.Strategy.Train)
}

// Untrain reverses a prior Train with the same arguments on every
// analyzer, mirroring Train's partial-failure handling.
func (s *Service) Untrain(ctx context.Context, category, text string) (*TrainingReport, error) {
	return s.update(ctx, "untrain", category, text, strategy.Strategy.Untrain)
}

func (s *Service) update(ctx context.Context, op, category, text string, apply func(strategy.Strategy, context.Context, string, string) error) (*TrainingReport, error) {
	report := &TrainingReport{Failed: make(map[string]error)}

	for _, name := range s.registry.Names() {
		st, err := s.registry.Resolve(ctx, name)
		if err != nil {
			report.Failed[name] = err
			continue
		}
		if err := apply(st, ctx, category, text); err != nil {
			report.Failed[name] = err
			continue
		}
		report.Trained = append(report.Trained, name)
	}

	if len(report.Trained) == 0 && len(report.Failed) > 0 {
		return report, &AllAnalyzersFailedError{Op: op, Failures: report.Failed}
	}

	return report, nil
}

// Classify scores text with every analyzer, combines the scores against
// the threshold and appends a classification log entry. If every
// analyzer fails, the error is *AllAnalyzersFailedError and nothing is
// logged.
func (s *Service) Classify(ctx context.Context, text string) (*Verdict, error) {
	perAnalyzer := make(map[string]float64)
	failures := make(map[string]error)

	for _, name := range s.registry.Names() {
		st, err := s.registry.Resolve(ctx, name)
		if err != nil {
			failures[name] = err
			continue
		}

		scores, err := st.Classify(ctx, text)
		if err != nil {
			failures[name] = err
			continue
		}

		perAnalyzer[name] = spamScore(scores)
	}

	if len(perAnalyzer) == 0 {
		return nil, &AllAnalyzersFailedError{Op: "classify", Failures: failures}
	}

	score := s.aggregate(perAnalyzer)
	verdict := &Verdict{
		Spam:        score >= s.threshold,
		Score:       score,
		PerAnalyzer: perAnalyzer,
	}
	if len(failures) > 0 {
		verdict.Failures = failures
	}

	s.append(text, verdict)
	return verdict, nil
}

// ClassificationLog returns a copy of the log entries in call order.
func (s *Service) ClassificationLog() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]LogEntry, len(s.log))
	copy(entries, s.log)
	return entries
}

func (s *Service) append(text string, verdict *Verdict) {
	scores := make(map[string]float64, len(verdict.PerAnalyzer))
	for name, score := range verdict.PerAnalyzer {
		scores[name] = score
	}

	entry := LogEntry{
		ID:          uuid.NewString(),
		At:          time.Now().UTC(),
		Fingerprint: fingerprint(text),
		PerAnalyzer: scores,
		Score:       verdict.Score,
		Spam:        verdict.Spam,
		Threshold:   s.threshold,
	}
	if s.logText {
		entry.Text = text
	}

	s.mu.Lock()
	s.log = append(s.log, entry)
	s.mu.Unlock()
}

func (s *Service) aggregate(perAnalyzer map[string]float64) float64 {
	if s.method == "max" {
		max := 0.0
		for _, score := range perAnalyzer {
			if score > max {
				max = score
			}
		}
		return max
	}

	var weightedSum, totalWeight float64
	for name, score := range perAnalyzer {
		weight, ok := s.weights[name]
		if !ok || weight == 0 {
			weight = 1.0
		}
		weightedSum += score * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0.5
	}

	return weightedSum / totalWeight
}

// spamScore reduces per-category scores to one scalar spam score. Empty
// scores mean no training data, which reads as neutral evidence.
func spamScore(scores strategy.Scores) float64 {
	if len(scores) == 0 {
		return 0.5
	}

	var total float64
	for _, score := range scores {
		total += score
	}
	if total == 0 {
		return 0.5
	}

	return scores[strategy.CategorySpam] / total
}
