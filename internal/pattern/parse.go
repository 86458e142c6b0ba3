package pattern

import (
	"fmt"
	"strings"
)

// Bassline notation: 16 whitespace-separated tokens, one per step.
//
//	.          rest (inactive step)
//	c..b, c#   note name, sharps only
//	'          raise one octave (at most once)
//	,          lower one octave (at most once)
//	~          slide into the next step
//	!          accent
//
// Example: "c . c ~d# . c' g! . c . c ~a# . g! d# ."

var noteNames = [12]string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}

// ParsePattern parses bassline notation into a Pattern. The token
// count must be exactly 16.
func ParsePattern(text string) (Pattern, error) {
	var pat Pattern
	tokens := strings.Fields(text)
	if len(tokens) != Length {
		return pat, fmt.Errorf("pattern needs %d steps, got %d", Length, len(tokens))
	}
	for i, tok := range tokens {
		step, err := parseStep(strings.ToLower(tok))
		if err != nil {
			return Pattern{}, fmt.Errorf("step %d %q: %w", i, tok, err)
		}
		pat[i] = step
	}
	return pat, nil
}

func parseStep(tok string) (Step, error) {
	if tok == "." || tok == "-" {
		return Step{}, nil
	}
	var s Step
	s.Active = true
	rest := tok
	// Leading ~ marks a slide (reads naturally as "glide into").
	if strings.HasPrefix(rest, "~") {
		s.Slide = true
		rest = rest[1:]
	}
	note := -1
	for n := len(noteNames) - 1; n >= 0; n-- {
		// Longest match first so "c#" is not read as "c".
		if strings.HasPrefix(rest, noteNames[n]) {
			note = n
			rest = rest[len(noteNames[n]):]
			break
		}
	}
	if note < 0 {
		return Step{}, fmt.Errorf("unknown note name")
	}
	s.Note = note
	for len(rest) > 0 {
		switch rest[0] {
		case '\'':
			s.Octave++
		case ',':
			s.Octave--
		case '!':
			s.Accent = true
		case '~':
			s.Slide = true
		default:
			return Step{}, fmt.Errorf("unexpected %q", rest[0])
		}
		rest = rest[1:]
	}
	if s.Octave < -1 || s.Octave > 1 {
		return Step{}, fmt.Errorf("octave out of range")
	}
	return s, nil
}

// FormatPattern renders a Pattern back into bassline notation.
// ParsePattern(FormatPattern(p)) == p for any valid pattern.
func FormatPattern(pat Pattern) string {
	parts := make([]string, 0, Length)
	for _, s := range pat {
		if !s.Active {
			parts = append(parts, ".")
			continue
		}
		var b strings.Builder
		if s.Slide {
			b.WriteByte('~')
		}
		b.WriteString(noteNames[clampInt(s.Note, 0, 11)])
		switch {
		case s.Octave > 0:
			b.WriteByte('\'')
		case s.Octave < 0:
			b.WriteByte(',')
		}
		if s.Accent {
			b.WriteByte('!')
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, " ")
}
