// Package recognize reads plate text from an enhanced crop. Two backends
// exist behind one interface: a two-pass Tesseract ensemble and a direct
// sequence model; both feed the same acceptance gate.
package recognize

import (
	"errors"
	"image"
	"strings"
)

// Alphabet is the only character set a plate reading may contain.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Readings shorter than MinTextLength or at/below ConfidenceFloor are
// discarded; partial reads at the gate are worse than no read.
const (
	MinTextLength   = 4
	ConfidenceFloor = 0.3
)

// ErrEngineUnavailable is returned when a recognition backend cannot be
// constructed. Fatal; the caller decides any fallback policy.
var ErrEngineUnavailable = errors.New("recognition engine unavailable")

// Candidate is one possible plate reading. The zero value is the empty
// sentinel meaning "nothing readable".
type Candidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Recognizer reads plate text from an enhanced crop. Implementations hold
// long-lived engine state and are not safe for concurrent calls.
type Recognizer interface {
	Recognize(crop image.Image) (Candidate, error)
}

// Accept applies the acceptance gate: a candidate is returned verbatim only
// if it is at least MinTextLength characters with confidence above
// ConfidenceFloor, otherwise the empty sentinel.
func Accept(c Candidate) Candidate {
	if len(c.Text) >= MinTextLength && c.Confidence > ConfidenceFloor {
		return c
	}
	return Candidate{}
}

type span struct {
	text       string
	confidence float64
}

// selectBest picks the maximum-confidence span, keeping the first on ties.
func selectBest(spans []span) Candidate {
	var best Candidate
	for i, s := range spans {
		if i == 0 || s.confidence > best.Confidence {
			best = Candidate{Text: s.text, Confidence: s.confidence}
		}
	}
	return best
}

// sanitize uppercases a raw engine span and strips everything outside the
// plate alphabet.
func sanitize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
