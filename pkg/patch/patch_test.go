package patch

import (
	"errors"
	"strings"
	"testing"
)

func lines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, l := range strings.SplitAfter(s, "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func join(lines []string) string { return strings.Join(lines, "") }

func apply(t *testing.T, original, edit string) string {
	t.Helper()
	got, err := New(0).Apply(lines(original), edit)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	return join(got)
}

func TestIsDelimiterLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"// ... existing code ...", true},
		{"  # ... existing code ...\n", true},
		{"-- ... existing code ...", true},
		{"; ... existing code ...", true},
		{"REM ... existing code ...", true},
		{"rem ... EXISTING CODE ...", true},
		{"/* ... existing code ... */", true},
		{"... existing code ...", true},
		{"// keep this line", false},
		{"x := 1", false},
	}
	for _, tt := range tests {
		if got := IsDelimiterLine(tt.line); got != tt.want {
			t.Errorf("IsDelimiterLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestApplyFullReplacement(t *testing.T) {
	original := "a\nb\nc\n"
	got := apply(t, original, "x\ny")
	if got != "x\ny\n" {
		t.Errorf("full replacement = %q, want %q", got, "x\ny\n")
	}

	empty, err := New(0).Apply(lines(original), "")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty edit should truncate, got %q", empty)
	}
}

func TestApplyDelimiterOnly(t *testing.T) {
	original := "a\nb\n"
	got := apply(t, original, "// ... existing code ...\n")
	if got != original {
		t.Errorf("delimiter-only edit = %q, want original %q", got, original)
	}
}

func TestApplyMiddleEdit(t *testing.T) {
	original := "func a() {}\nfunc b() {}\nfunc c() {}\n"
	edit := "// ... existing code ...\n" +
		"func b() {}\n" +
		"func b2() {}\n" +
		"// ... existing code ...\n"
	got := apply(t, original, edit)
	want := "func a() {}\nfunc b() {}\nfunc b2() {}\nfunc c() {}\n"
	if got != want {
		t.Errorf("middle edit = %q, want %q", got, want)
	}
}

func TestApplyPrependFirstHunk(t *testing.T) {
	original := "package main\n\nfunc main() {}\n"
	edit := "// header comment\n" +
		"// ... existing code ...\n"
	got := apply(t, original, edit)
	want := "// header comment\npackage main\n\nfunc main() {}\n"
	if got != want {
		t.Errorf("prepend = %q, want %q", got, want)
	}
}

func TestApplyTrailingCodeDiscardsRest(t *testing.T) {
	original := "a\nb\nc\nd\n"
	edit := "// ... existing code ...\n" +
		"b\n" +
		"replacement\n"
	got := apply(t, original, edit)
	// Segment anchors at "b"; no trailing context matches after it, so the
	// span closes right after the lead and the remaining original is dropped.
	want := "a\nb\nreplacement\n"
	if got != want {
		t.Errorf("trailing code = %q, want %q", got, want)
	}
}

func TestApplyReplaceSpanBetweenContexts(t *testing.T) {
	original := "start\nold1\nold2\nend\ntail\n"
	edit := "start\nnew\nend\n" +
		"// ... existing code ...\n"
	got := apply(t, original, edit)
	want := "start\nnew\nend\ntail\n"
	if got != want {
		t.Errorf("span replace = %q, want %q", got, want)
	}
}

func TestApplyContextNotFound(t *testing.T) {
	original := "a\nb\n"
	edit := "// ... existing code ...\n" +
		"nothing like this\n" +
		"// ... existing code ...\n"
	_, err := New(0).Apply(lines(original), edit)
	if !errors.Is(err, ErrContextNotFound) {
		t.Errorf("Apply() error = %v, want ErrContextNotFound", err)
	}
}

func TestApplyAnchoredSegmentKeepsSurroundings(t *testing.T) {
	original := "one\ntwo\nthree\nfour\n"
	edit := "// ... existing code ...\n" +
		"two\n" +
		"// ... existing code ...\n"
	got := apply(t, original, edit)
	if got != original {
		t.Errorf("pure context segment = %q, want original %q", got, original)
	}
}

func TestApplyStrongAmbiguityFirstOccurrence(t *testing.T) {
	original := "dup\nafter1\ndup\nafter2\n"
	edit := "// ... existing code ...\n" +
		"dup\ninserted\n"
	got := apply(t, original, edit)
	// "dup" matches twice but is strong context, so the first wins.
	want := "dup\ninserted\n"
	if got != want {
		t.Errorf("strong ambiguity = %q, want %q", got, want)
	}
}

func TestApplyWeakAmbiguityShrinks(t *testing.T) {
	// The two-line window ["", "x"] is unique even though the one-line
	// window "" alone appears twice; a leading blank must not stop the
	// search at a weak ambiguous match.
	original := "a\n\nx\n\ny\n"
	edit := "// ... existing code ...\n" +
		"\nx\nX2\n" +
		"// ... existing code ...\n"
	got := apply(t, original, edit)
	want := "a\n\nx\nX2\n\ny\n"
	if got != want {
		t.Errorf("weak ambiguity = %q, want %q", got, want)
	}
}

func TestApplyCRLFTolerant(t *testing.T) {
	original := "alpha\r\nbeta\r\ngamma\r\n"
	edit := "// ... existing code ...\n" +
		"beta\n" +
		"inserted\n" +
		"// ... existing code ...\n"
	got := apply(t, original, edit)
	if !strings.Contains(got, "inserted\n") {
		t.Errorf("CRLF original not matched, got %q", got)
	}
	if !strings.Contains(got, "gamma") {
		t.Errorf("tail lost, got %q", got)
	}
}

func TestApplyAmbiguousUnwrapsToContextNotFound(t *testing.T) {
	if !errors.Is(ErrAmbiguousContext, ErrContextNotFound) {
		t.Error("ErrAmbiguousContext should unwrap to ErrContextNotFound")
	}
}

func TestApplyTrailingDelimiterPreservesTail(t *testing.T) {
	original := "h1\nh2\nbody\ntail1\ntail2\n"
	edit := "h1\nh2\nNEW\nbody\n" +
		"// ... existing code ...\n"
	got := apply(t, original, edit)
	want := "h1\nh2\nNEW\nbody\ntail1\ntail2\n"
	if got != want {
		t.Errorf("tail preservation = %q, want %q", got, want)
	}
}

func TestApplyEnsuresTrailingNewline(t *testing.T) {
	got := apply(t, "a\n", "new content")
	if !strings.HasSuffix(got, "\n") {
		t.Errorf("result %q should end with newline", got)
	}
}
