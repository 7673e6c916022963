// Package patch applies context-anchored edits to file content. An edit
// string interleaves proposed code segments with delimiter comment lines
// ("... existing code ...") marking spans of the original to preserve.
package patch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/happyhackingspace/workbox/pkg/vfs"
)

// DelimiterText is the core marker recognized inside delimiter lines.
const DelimiterText = "... existing code ..."

// DefaultWindow is the default maximum context window length.
const DefaultWindow = 5

var (
	// ErrContextNotFound indicates context lines from the edit could not be
	// located in the original content.
	ErrContextNotFound = errors.New("context not found in original content")

	// ErrAmbiguousContext indicates the context matched multiple locations
	// at every window length without ever becoming trustworthy. It unwraps
	// to ErrContextNotFound so retry flows treat both the same way.
	ErrAmbiguousContext = fmt.Errorf("ambiguous context: %w", ErrContextNotFound)

	// ErrMisalignedContext indicates a segment's context matched somewhere
	// other than where the preceding delimiter anchored the cursor.
	ErrMisalignedContext = errors.New("segment context misaligned")
)

var delimiterCommentRe = regexp.MustCompile(
	`(?i)^\s*(//|#|--|;|REM)\s*` + regexp.QuoteMeta(DelimiterText))

// IsDelimiterLine reports whether a line is a delimiter marker.
func IsDelimiterLine(line string) bool {
	stripped := strings.TrimSpace(line)
	if delimiterCommentRe.MatchString(stripped) {
		return true
	}
	if strings.HasPrefix(stripped, "/*") && strings.HasSuffix(stripped, "*/") &&
		strings.Contains(stripped, DelimiterText) {
		return true
	}
	return strings.Contains(stripped, DelimiterText)
}

// HasDelimiters reports whether the edit string contains any delimiter line.
func HasDelimiters(codeEdit string) bool {
	for _, line := range vfs.SplitLines(codeEdit) {
		if IsDelimiterLine(line) {
			return true
		}
	}
	return false
}

// Engine applies edits with a configurable context window.
type Engine struct {
	window int
}

// New creates an engine. A non-positive window falls back to DefaultWindow.
func New(window int) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{window: window}
}

// Apply applies codeEdit to the original lines and returns the new content.
//
// Without delimiters the edit replaces the content wholesale. With
// delimiters each code segment is anchored by its leading context, the span
// it replaces is closed by its trailing context, and delimiters copy the
// original lines between consecutive anchors. A leading delimiter preserves
// the original head; a trailing delimiter preserves the tail; ending on a
// code segment discards everything after its span.
func (e *Engine) Apply(original []string, codeEdit string) ([]string, error) {
	originalLines := vfs.NormalizeLines(original, true)

	editLines := vfs.SplitLines(codeEdit)
	if !containsDelimiter(editLines) {
		if codeEdit == "" {
			return nil, nil
		}
		return normalizeStripped(editLines), nil
	}

	segments := parseSegments(editLines)
	if !hasContent(segments) {
		return originalLines, nil
	}

	var result []string
	cursor := 0

	for i, seg := range segments {
		if seg.delimiter {
			if i == len(segments)-1 {
				// Trailing delimiter preserves the rest of the original.
				if cursor < len(originalLines) {
					result = append(result, originalLines[cursor:]...)
				}
				cursor = len(originalLines)
				continue
			}
			next := segments[i+1]
			if next.delimiter || len(next.lines) == 0 {
				continue
			}
			nextNorm := normalizeStripped(next.lines)
			lead := nextNorm[:min(len(nextNorm), e.window)]
			anchor, _, err := e.findUniqueContext(originalLines, lead, cursor)
			if err != nil {
				return nil, err
			}
			if anchor >= cursor {
				result = append(result, originalLines[cursor:anchor]...)
			}
			cursor = anchor
			continue
		}

		if len(seg.lines) == 0 {
			continue
		}
		result = append(result, seg.lines...)

		segNorm := normalizeStripped(seg.lines)
		lead := segNorm[:min(len(segNorm), e.window)]

		spanStart := cursor
		leadMatched := 0
		anchor, matched, err := e.findUniqueContext(originalLines, lead, cursor)
		switch {
		case err != nil:
			// The first content segment may prepend; later ones must anchor.
			if !firstContentSegment(segments, i) {
				return nil, err
			}
		case anchor != cursor:
			if !firstContentSegment(segments, i) {
				return nil, fmt.Errorf("%w: expected at %d, found at %d",
					ErrMisalignedContext, cursor, anchor)
			}
			spanStart, leadMatched = anchor, matched
		default:
			spanStart, leadMatched = anchor, matched
		}

		searchFrom := spanStart + leadMatched
		if len(segNorm) > leadMatched {
			tail := segNorm[leadMatched:]
			closed := false
			for tl := min(len(tail), e.window); tl >= 1; tl-- {
				trailing := tail[len(tail)-tl:]
				start, n, err := e.findUniqueContext(originalLines, trailing, searchFrom)
				if err != nil {
					continue
				}
				cursor = start + n
				closed = true
				break
			}
			if !closed {
				cursor = searchFrom
			}
		} else {
			cursor = searchFrom
		}
	}

	return vfs.NormalizeLines(result, true), nil
}

type segment struct {
	lines     []string
	delimiter bool
}

func parseSegments(editLines []string) []segment {
	var segments []segment
	var buf []string
	for _, line := range editLines {
		if IsDelimiterLine(line) {
			if len(buf) > 0 {
				segments = append(segments, segment{lines: buf})
			}
			segments = append(segments, segment{delimiter: true})
			buf = nil
		} else {
			buf = append(buf, line)
		}
	}
	if len(buf) > 0 {
		segments = append(segments, segment{lines: buf})
	}
	return segments
}

func containsDelimiter(lines []string) bool {
	for _, line := range lines {
		if IsDelimiterLine(line) {
			return true
		}
	}
	return false
}

func hasContent(segments []segment) bool {
	for _, s := range segments {
		if !s.delimiter && len(s.lines) > 0 {
			return true
		}
	}
	return false
}

// firstContentSegment reports whether no code segment precedes index i.
func firstContentSegment(segments []segment, i int) bool {
	for k := 0; k < i; k++ {
		if !segments[k].delimiter {
			return false
		}
	}
	return true
}

// findUniqueContext locates contextLines within originalLines starting at
// startIdx. Longer windows are tried first; a unique match wins immediately,
// a strong ambiguous match resolves to its first occurrence, and an
// all-whitespace ambiguous match keeps shrinking the window.
func (e *Engine) findUniqueContext(originalLines, contextLines []string, startIdx int) (int, int, error) {
	if len(contextLines) == 0 || len(originalLines) == 0 {
		return 0, 0, fmt.Errorf("%w: no lines to match", ErrContextNotFound)
	}

	sawAmbiguous := false
	maxLen := min(len(contextLines), e.window)
	for n := maxLen; n >= 1; n-- {
		window := contextLines[:n]

		var found []int
		for i := startIdx; i+n <= len(originalLines); i++ {
			if linesMatch(originalLines[i:i+n], window) {
				found = append(found, i)
			}
		}

		switch {
		case len(found) == 1:
			return found[0], n, nil
		case len(found) > 1:
			sawAmbiguous = true
			if allWhitespace(window) {
				continue
			}
			// Strong context, take the first occurrence.
			return found[0], n, nil
		}
	}

	if sawAmbiguous {
		return 0, 0, fmt.Errorf("%w: %q from index %d",
			ErrAmbiguousContext, strings.TrimSpace(contextLines[0]), startIdx)
	}
	return 0, 0, fmt.Errorf("%w: %q from index %d",
		ErrContextNotFound, strings.TrimSpace(contextLines[0]), startIdx)
}

// linesMatch compares a span of original lines against a context window,
// tolerating CRLF/LF ending mismatches in either direction.
func linesMatch(span, window []string) bool {
	for i := range window {
		o, w := span[i], window[i]
		if o == w {
			continue
		}
		if strings.ReplaceAll(o, "\r\n", "\n") == w {
			continue
		}
		if strings.ReplaceAll(o, "\n", "\r\n") == w {
			continue
		}
		return false
	}
	return true
}

func allWhitespace(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}

// normalizeStripped strips line endings then re-terminates every line.
func normalizeStripped(lines []string) []string {
	stripped := make([]string, len(lines))
	for i, line := range lines {
		stripped[i] = strings.TrimRight(line, "\r\n")
	}
	return vfs.NormalizeLines(stripped, true)
}
