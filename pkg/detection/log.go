package detection

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// LogEntry is one immutable record of the classification log, appended
// after every Classify call. Retention and deletion are external
// concerns; the service itself never mutates or drops entries.
type LogEntry struct {
	ID          string
	At          time.Time
	Text        string // empty when detection.log_input_text is off
	Fingerprint string // sha256 of the input text
	PerAnalyzer map[string]float64
	Score       float64
	Spam        bool
	Threshold   float64
}

func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
