package output

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Kind is what a captured line announces.
type Kind int

const (
	// KindText is ordinary output.
	KindText Kind = iota
	// KindMode is the permission-mode status line, e.g. "⏵⏵ bypass permissions on".
	KindMode
	// KindThinking toggles extended thinking.
	KindThinking
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMode:
		return "mode"
	case KindThinking:
		return "thinking"
	default:
		return "text"
	}
}

// Permission modes reported by KindMode lines.
const (
	ModeNormal = "normal"
	ModeBypass = "bypass"
	ModeYolo   = "yolo"
)

var (
	modePattern        = regexp.MustCompile(`⏵⏵\s*([^(]+)`)
	thinkingOnPattern  = regexp.MustCompile(`(?i)thinking\s+on`)
	thinkingOffPattern = regexp.MustCompile(`(?i)thinking\s+off`)
)

// Line is a classified output line.
type Line struct {
	Stream Stream
	Kind   Kind
	// Text is the line with escape sequences removed and surrounding space
	// trimmed.
	Text string
	// Mode is set for KindMode lines.
	Mode string
	// Thinking is set for KindThinking lines.
	Thinking bool
}

// Classify strips terminal escapes from raw and reports what it announces.
func Classify(s Stream, raw string) Line {
	text := strings.TrimSpace(ansi.Strip(raw))
	line := Line{Stream: s, Kind: KindText, Text: text}

	if m := modePattern.FindStringSubmatch(text); m != nil {
		line.Kind = KindMode
		switch label := strings.ToLower(m[1]); {
		case strings.Contains(label, "bypass"):
			line.Mode = ModeBypass
		case strings.Contains(label, "yolo"):
			line.Mode = ModeYolo
		default:
			line.Mode = ModeNormal
		}
		return line
	}

	switch {
	case thinkingOnPattern.MatchString(text):
		line.Kind, line.Thinking = KindThinking, true
	case thinkingOffPattern.MatchString(text):
		line.Kind, line.Thinking = KindThinking, false
	}
	return line
}
