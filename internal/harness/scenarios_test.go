package harness

import "testing"

func TestScenariosCoverS1ThroughS6(t *testing.T) {
	want := []string{"S1", "S2", "S3", "S4", "S5", "S6"}
	if len(Scenarios) != len(want) {
		t.Fatalf("got %d scenarios, want %d", len(Scenarios), len(want))
	}
	for i, name := range want {
		if Scenarios[i].Name != name {
			t.Fatalf("scenario %d = %q, want %q", i, Scenarios[i].Name, name)
		}
	}
}

func TestScenarioSectionsExist(t *testing.T) {
	for _, sc := range Scenarios {
		if _, ok := BySection(sc.Section); !ok {
			t.Fatalf("scenario %s references unknown section %d", sc.Name, sc.Section)
		}
	}
}

func TestByNameLookup(t *testing.T) {
	s, ok := ByName("S3")
	if !ok {
		t.Fatal("ByName(S3) not found")
	}
	if s.Section != 21 {
		t.Fatalf("S3 section = %d, want 21", s.Section)
	}

	if _, ok := ByName("S7"); ok {
		t.Fatal("ByName(S7) should not exist")
	}
}

func TestAttachPollConstants(t *testing.T) {
	if AttachPollRetries != 10 {
		t.Fatalf("AttachPollRetries = %d, want 10", AttachPollRetries)
	}
	if AttachPollInterval <= 0 {
		t.Fatal("AttachPollInterval must be positive")
	}
}
