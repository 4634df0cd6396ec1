package harness

import (
	"strings"
	"testing"
)

func TestSectionCount(t *testing.T) {
	if len(Sections) != 21 {
		t.Fatalf("expected 21 sections, got %d", len(Sections))
	}
	for i, s := range Sections {
		if s.Number != i+1 {
			t.Fatalf("section at index %d has Number %d, want %d", i, s.Number, i+1)
		}
	}
}

func TestSectionsAreSortedByLine(t *testing.T) {
	for i := 1; i < len(Sections); i++ {
		if Sections[i].Line <= Sections[i-1].Line {
			t.Fatalf("section %d line %d is not after section %d line %d",
				Sections[i].Number, Sections[i].Line, Sections[i-1].Number, Sections[i-1].Line)
		}
	}
}

func TestBySection(t *testing.T) {
	s, ok := BySection(1)
	if !ok || s.Kind != KindPrimitives {
		t.Fatalf("BySection(1) = %+v, %v; want KindPrimitives", s, ok)
	}

	s21, ok := BySection(21)
	if !ok || s21.Kind != KindUnhandled {
		t.Fatalf("BySection(21) = %+v, %v; want KindUnhandled", s21, ok)
	}

	if _, ok := BySection(0); ok {
		t.Fatal("BySection(0) should not be found")
	}
	if _, ok := BySection(22); ok {
		t.Fatal("BySection(22) should not be found")
	}
}

func TestByKindFindsExactlyOne(t *testing.T) {
	for _, k := range []SectionKind{KindPrimitives, KindMultiThread, KindUnhandled, KindEnumsNullable} {
		matches := ByKind(k)
		if len(matches) != 1 {
			t.Fatalf("ByKind(%s) returned %d sections, want exactly 1", k, len(matches))
		}
	}
}

// TestS1PrimitivesLine pins scenario S1's breakpoint location: section 1
// starts at line 19 of the fixture, which holds `int counter = 0;`.
func TestS1PrimitivesLine(t *testing.T) {
	s, ok := BySection(1)
	if !ok {
		t.Fatal("section 1 not found")
	}
	if s.Line != 19 {
		t.Fatalf("section 1 line = %d, want 19 (spec S1 breakpoint location)", s.Line)
	}
	lines := strings.Split(SourceText, "\n")
	if s.Line > len(lines) {
		t.Fatalf("section 1 line %d is out of range of SourceText (%d lines)", s.Line, len(lines))
	}
	got := strings.TrimSpace(lines[s.Line-1])
	want := "int counter = 0;"
	if got != want {
		t.Fatalf("SourceText line %d = %q, want %q", s.Line, got, want)
	}
}

// TestS3UnhandledException pins scenario S3's expected exception message.
func TestS3UnhandledException(t *testing.T) {
	s, ok := BySection(21)
	if !ok {
		t.Fatal("section 21 not found")
	}
	if !strings.Contains(s.Description, "Section 21 unhandled") {
		t.Fatalf("section 21 description = %q, missing expected exception message", s.Description)
	}
	if !strings.Contains(SourceText, `throw new InvalidOperationException("Section 21 unhandled");`) {
		t.Fatal("SourceText does not contain the expected section 21 throw statement")
	}
}

// TestS6EnumAndNullable pins scenario S6's rendering inputs.
func TestS6EnumAndNullable(t *testing.T) {
	s, ok := BySection(11)
	if !ok {
		t.Fatal("section 11 not found")
	}
	if s.Kind != KindEnumsNullable {
		t.Fatalf("section 11 kind = %s, want %s", s.Kind, KindEnumsNullable)
	}
	for _, want := range []string{"DayOfWeek.Monday", "int? n = null", "int? m = 42"} {
		if !strings.Contains(s.Description, want) {
			t.Fatalf("section 11 description %q missing %q", s.Description, want)
		}
	}
}

// TestS4MultiThreadSection pins scenario S4's background-worker section.
func TestS4MultiThreadSection(t *testing.T) {
	matches := ByKind(KindMultiThread)
	if len(matches) != 1 {
		t.Fatalf("expected exactly one multi-thread section, got %d", len(matches))
	}
	if !strings.Contains(SourceText, "new Thread(") {
		t.Fatal("SourceText does not spawn a background Thread for scenario S4")
	}
}

func TestProgramCSPathMatchesSourceTextNamespace(t *testing.T) {
	if ProgramCSPath != "Program.cs" {
		t.Fatalf("ProgramCSPath = %q, want Program.cs", ProgramCSPath)
	}
	if !strings.Contains(SourceText, "namespace DncdbgHarness") {
		t.Fatal("SourceText missing expected namespace")
	}
}
