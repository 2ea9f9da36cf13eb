package strategy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, source string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "strategy.lua")
	if err := os.WriteFile(path, []byte(source), 0644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

func TestLuaClassify(t *testing.T) {
	script := `
function classify(text)
    if string.find(string.lower(text), "pills") then
        return 0.9
    end
    return 0.1
end
`
	l, err := NewLua(writeScript(t, script))
	if err != nil {
		t.Fatalf("NewLua failed: %v", err)
	}
	defer l.Close()

	ctx := context.Background()

	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{"Matching text", "buy cheap PILLS now", 0.9},
		{"Non-matching text", "assembly agenda", 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, err := l.Classify(ctx, tt.text)
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if scores[CategorySpam] != tt.expected {
				t.Errorf("Expected spam score %v, got %v", tt.expected, scores[CategorySpam])
			}
			if ham := scores[CategoryHam]; ham != 1-tt.expected {
				t.Errorf("Expected ham score %v, got %v", 1-tt.expected, ham)
			}
		})
	}
}

func TestLuaTrainableScript(t *testing.T) {
	script := `
seen = 0

function train(category, text)
    seen = seen + 1
end

function untrain(category, text)
    seen = seen - 1
end

function classify(text)
    if seen > 0 then
        return 1.0
    end
    return 0.0
end
`
	l, err := NewLua(writeScript(t, script))
	if err != nil {
		t.Fatalf("NewLua failed: %v", err)
	}
	defer l.Close()

	ctx := context.Background()

	if err := l.Train(ctx, CategorySpam, "anything"); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	scores, err := l.Classify(ctx, "anything")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if scores[CategorySpam] != 1.0 {
		t.Errorf("Expected trained score 1.0, got %v", scores[CategorySpam])
	}

	if err := l.Untrain(ctx, CategorySpam, "anything"); err != nil {
		t.Fatalf("Untrain failed: %v", err)
	}
	scores, err = l.Classify(ctx, "anything")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if scores[CategorySpam] != 0.0 {
		t.Errorf("Expected untrained score 0.0, got %v", scores[CategorySpam])
	}
}

func TestLuaMissingClassify(t *testing.T) {
	if _, err := NewLua(writeScript(t, `x = 1`)); err == nil {
		t.Error("Expected error for script without classify function")
	}
}

func TestLuaScoreOutOfRange(t *testing.T) {
	l, err := NewLua(writeScript(t, `function classify(text) return 1.5 end`))
	if err != nil {
		t.Fatalf("NewLua failed: %v", err)
	}
	defer l.Close()

	if _, err := l.Classify(context.Background(), "text"); err == nil {
		t.Error("Expected error for out-of-range score")
	}
}
