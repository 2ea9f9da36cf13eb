package detection

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/civitas/spamguard/pkg/config"
	"github.com/civitas/spamguard/pkg/registry"
	"github.com/civitas/spamguard/pkg/strategy"
)

func memoryBayesConfig(name string) config.AnalyzerConfig {
	return config.AnalyzerConfig{
		Name:     name,
		Strategy: "bayes",
		Weight:   1.0,
		Options: config.AnalyzerOptions{
			Adapter:    "memory",
			Categories: []string{"ham", "spam"},
		},
	}
}

func newService(t *testing.T, analyzers ...config.AnalyzerConfig) (*Service, *registry.Registry) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Analyzers = analyzers

	reg, err := registry.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}

	return NewService(reg, cfg), reg
}

func luaAnalyzerConfig(t *testing.T, name string, weight float64, score float64) config.AnalyzerConfig {
	t.Helper()

	path := filepath.Join(t.TempDir(), name+".lua")
	script := fmt.Sprintf("function classify(text)\n    return %v\nend\n", score)
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	return config.AnalyzerConfig{
		Name:     name,
		Strategy: "lua",
		Weight:   weight,
		Options:  config.AnalyzerOptions{ScriptPath: path},
	}
}

func TestServiceSpamScenario(t *testing.T) {
	service, _ := newService(t, memoryBayesConfig("bayes"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := service.Train(ctx, strategy.CategorySpam, "buy cheap pills now"); err != nil {
			t.Fatalf("Train spam failed: %v", err)
		}
		if _, err := service.Train(ctx, strategy.CategoryHam, "let's meet next tuesday for the assembly"); err != nil {
			t.Fatalf("Train ham failed: %v", err)
		}
	}

	spam, err := service.Classify(ctx, "buy pills now cheap")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !spam.Spam {
		t.Errorf("Expected spam verdict, got score %v", spam.Score)
	}
	if spam.Score < 0.75 {
		t.Errorf("Expected score >= 0.75, got %v", spam.Score)
	}

	ham, err := service.Classify(ctx, "let's meet for the assembly")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if ham.Spam {
		t.Errorf("Expected ham verdict, got score %v", ham.Score)
	}

	log := service.ClassificationLog()
	if len(log) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(log))
	}
	if log[0].Text != "buy pills now cheap" || !log[0].Spam {
		t.Errorf("First entry mismatch: %+v", log[0])
	}
	if log[1].Text != "let's meet for the assembly" || log[1].Spam {
		t.Errorf("Second entry mismatch: %+v", log[1])
	}
	for _, entry := range log {
		if entry.ID == "" || entry.Fingerprint == "" || entry.At.IsZero() {
			t.Errorf("Incomplete log entry: %+v", entry)
		}
		if entry.Threshold != 0.75 {
			t.Errorf("Expected threshold 0.75 in entry, got %v", entry.Threshold)
		}
	}
}

func TestServiceFreshModelIsNotSpam(t *testing.T) {
	service, _ := newService(t, memoryBayesConfig("bayes"))

	verdict, err := service.Classify(context.Background(), "buy cheap pills now")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if verdict.Spam {
		t.Error("Untrained model must not produce a spam verdict")
	}
	if verdict.Score != 0.5 {
		t.Errorf("Expected neutral score 0.5, got %v", verdict.Score)
	}
}

func TestServicePartialTrainingFailure(t *testing.T) {
	unreachable := memoryBayesConfig("redis-bayes")
	unreachable.Options.Adapter = "redis"
	unreachable.Options.Params.Host = "127.0.0.1"
	unreachable.Options.Params.Port = 1
	unreachable.Options.Params.TimeoutMs = 200

	service, reg := newService(t, memoryBayesConfig("bayes"), unreachable)
	ctx := context.Background()

	report, err := service.Train(ctx, strategy.CategorySpam, "buy cheap pills now")
	if err != nil {
		t.Fatalf("Partial failure must not be an error, got: %v", err)
	}

	if !report.Partial() {
		t.Fatalf("Expected partial report, got %+v", report)
	}
	if len(report.Trained) != 1 || report.Trained[0] != "bayes" {
		t.Errorf("Expected only 'bayes' trained, got %v", report.Trained)
	}
	failed := report.FailedNames()
	if len(failed) != 1 || failed[0] != "redis-bayes" {
		t.Errorf("Expected only 'redis-bayes' failed, got %v", failed)
	}

	// The healthy analyzer's counters were updated.
	st, err := reg.Resolve(ctx, "bayes")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	learns, _, _, err := st.(*strategy.Bayes).Stats(ctx, strategy.CategorySpam)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if learns != 1 {
		t.Errorf("Expected 1 learn on healthy analyzer, got %d", learns)
	}
}

func TestServiceAllAnalyzersFailed(t *testing.T) {
	unreachable := memoryBayesConfig("redis-bayes")
	unreachable.Options.Adapter = "redis"
	unreachable.Options.Params.Host = "127.0.0.1"
	unreachable.Options.Params.Port = 1
	unreachable.Options.Params.TimeoutMs = 200

	service, _ := newService(t, unreachable)
	ctx := context.Background()

	if _, err := service.Classify(ctx, "buy cheap pills now"); err == nil {
		t.Fatal("Expected error when every analyzer fails")
	} else {
		var all *AllAnalyzersFailedError
		if !errors.As(err, &all) {
			t.Fatalf("Expected AllAnalyzersFailedError, got %T: %v", err, err)
		}
	}

	if entries := service.ClassificationLog(); len(entries) != 0 {
		t.Errorf("Failed classification must not be logged, got %d entries", len(entries))
	}

	report, err := service.Train(ctx, strategy.CategorySpam, "text")
	if err == nil {
		t.Fatal("Expected error when every analyzer fails to train")
	}
	if len(report.Trained) != 0 {
		t.Errorf("Expected no trained analyzers, got %v", report.Trained)
	}
}

func TestServiceThresholdBoundary(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		spam  bool
	}{
		{"Score equal to threshold", 0.75, true},
		{"Score just below threshold", 0.7499, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newService(t, luaAnalyzerConfig(t, "fixed", 1.0, tt.score))

			verdict, err := service.Classify(context.Background(), "any text")
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if verdict.Spam != tt.spam {
				t.Errorf("Score %v with threshold 0.75: expected spam=%v, got %v", tt.score, tt.spam, verdict.Spam)
			}
		})
	}
}

func TestServiceWeightedMeanAggregation(t *testing.T) {
	service, _ := newService(t,
		luaAnalyzerConfig(t, "low", 1.0, 0.2),
		luaAnalyzerConfig(t, "high", 3.0, 1.0),
	)

	verdict, err := service.Classify(context.Background(), "any text")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	// (0.2*1 + 1.0*3) / 4 = 0.8
	if verdict.Score < 0.799 || verdict.Score > 0.801 {
		t.Errorf("Expected weighted mean 0.8, got %v", verdict.Score)
	}
	if !verdict.Spam {
		t.Error("Expected spam verdict at 0.8 with threshold 0.75")
	}
	if len(verdict.PerAnalyzer) != 2 {
		t.Errorf("Expected 2 per-analyzer scores, got %v", verdict.PerAnalyzer)
	}
}

// An omitted weight unmarshals as zero and counts as 1.0, never as
// "this analyzer contributes nothing".
func TestServiceZeroWeightDefaultsToOne(t *testing.T) {
	service, _ := newService(t,
		luaAnalyzerConfig(t, "unweighted", 0, 1.0),
		luaAnalyzerConfig(t, "weighted", 1.0, 0.0),
	)

	verdict, err := service.Classify(context.Background(), "any text")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	// (1.0*1 + 0.0*1) / 2 = 0.5; a zero-honoring weight would give 0.
	if verdict.Score < 0.499 || verdict.Score > 0.501 {
		t.Errorf("Expected mean 0.5 with defaulted weight, got %v", verdict.Score)
	}
}

func TestServiceMaxAggregation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Detection.Aggregation = "max"
	cfg.Analyzers = []config.AnalyzerConfig{
		luaAnalyzerConfig(t, "low", 1.0, 0.1),
		luaAnalyzerConfig(t, "high", 1.0, 0.9),
	}

	reg, err := registry.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	service := NewService(reg, cfg)

	verdict, err := service.Classify(context.Background(), "any text")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if verdict.Score != 0.9 {
		t.Errorf("Expected max score 0.9, got %v", verdict.Score)
	}
}

func TestServiceUntrainMirrorsTrain(t *testing.T) {
	service, reg := newService(t, memoryBayesConfig("bayes"))
	ctx := context.Background()

	if _, err := service.Train(ctx, strategy.CategorySpam, "buy cheap pills now"); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	report, err := service.Untrain(ctx, strategy.CategorySpam, "buy cheap pills now")
	if err != nil {
		t.Fatalf("Untrain failed: %v", err)
	}
	if len(report.Trained) != 1 {
		t.Errorf("Expected untrain to reach 1 analyzer, got %v", report.Trained)
	}

	st, err := reg.Resolve(ctx, "bayes")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	learns, tokens, vocab, err := st.(*strategy.Bayes).Stats(ctx, strategy.CategorySpam)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if learns != 0 || tokens != 0 || vocab != 0 {
		t.Errorf("Counters not restored: learns=%d tokens=%d vocab=%d", learns, tokens, vocab)
	}
}

func TestServiceLogHidesTextWhenConfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Detection.LogInputText = false
	cfg.Analyzers = []config.AnalyzerConfig{memoryBayesConfig("bayes")}

	reg, err := registry.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	service := NewService(reg, cfg)

	if _, err := service.Classify(context.Background(), "sensitive text"); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	log := service.ClassificationLog()
	if len(log) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(log))
	}
	if log[0].Text != "" {
		t.Error("Text should be omitted when log_input_text is off")
	}
	if log[0].Fingerprint == "" {
		t.Error("Fingerprint should always be present")
	}
}
