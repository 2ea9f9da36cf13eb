// Package language wraps a statistical language detector behind a small
// stateless API.
package language

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// DetectionFailedError means the input was too short or ambiguous for a
// reliable detection. This is the documented failure mode: Detect never
// returns a sentinel "unknown" code. Callers should treat it as
// "unknown language" and proceed.
type DetectionFailedError struct {
	Reason string
}

func (e *DetectionFailedError) Error() string {
	return fmt.Sprintf("language detection failed: %s", e.Reason)
}

// Detector classifies free text into an ISO 639-1 language code. It is
// stateless and safe for concurrent use.
type Detector struct {
	detector  lingua.LanguageDetector
	minLength int
}

// NewDetector builds a detector restricted to the given ISO 639-1
// codes. An empty list enables every language lingua knows. Texts
// shorter than minLength runes fail detection outright.
func NewDetector(codes []string, minLength int) (*Detector, error) {
	var builder lingua.LanguageDetectorBuilder

	if len(codes) == 0 {
		builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	} else {
		lookup := isoLookup()
		languages := make([]lingua.Language, 0, len(codes))
		for _, code := range codes {
			lang, ok := lookup[strings.ToLower(code)]
			if !ok {
				return nil, fmt.Errorf("unsupported language code %q", code)
			}
			languages = append(languages, lang)
		}
		if len(languages) < 2 {
			// lingua needs at least two candidate languages.
			builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
		} else {
			builder = lingua.NewLanguageDetectorBuilder().FromLanguages(languages...)
		}
	}

	return &Detector{
		detector:  builder.Build(),
		minLength: minLength,
	}, nil
}

// Detect returns the lowercase ISO 639-1 code of text's language.
func (d *Detector) Detect(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < d.minLength {
		return "", &DetectionFailedError{Reason: "text too short"}
	}

	lang, ok := d.detector.DetectLanguageOf(trimmed)
	if !ok {
		return "", &DetectionFailedError{Reason: "no language could be reliably detected"}
	}

	return strings.ToLower(lang.IsoCode639_1().String()), nil
}

func isoLookup() map[string]lingua.Language {
	lookup := make(map[string]lingua.Language)
	for _, lang := range lingua.AllLanguages() {
		lookup[strings.ToLower(lang.IsoCode639_1().String())] = lang
	}
	return lookup
}
