package harness

import "time"

// Scenario names the six end-to-end behaviors the fixture program exists to
// exercise, with the concrete expectations an integration test would assert
// against a live engine. They document intent; none of this package runs a
// debuggee, so these are read by tests as fixed data, not executed here.
type Scenario struct {
	Name        string
	Description string
	Section     int // primary harness section this scenario drives
}

var Scenarios = []Scenario{
	{
		Name:        "S1",
		Description: "set a breakpoint on the primitives section, launch, hit it, and read counter back as \"0\".",
		Section:     1,
	},
	{
		Name:        "S2",
		Description: "from the S1 stop, step over twice and observe counter progress \"0\" -> \"1\".",
		Section:     1,
	},
	{
		Name:        "S3",
		Description: "run to completion and observe an unhandled InvalidOperationException(\"Section 21 unhandled\") followed by process exit.",
		Section:     21,
	},
	{
		Name:        "S4",
		Description: "break inside the background worker and confirm at least two known threads, exactly one of which has a frame ending in Program.cs.",
		Section:     17,
	},
	{
		Name:        "S5",
		Description: "launch the fixture out-of-process, attach by pid via short polling retries, and confirm the attached state without pausing first.",
		Section:     1,
	},
	{
		Name:        "S6",
		Description: "stop on the enums/nullable section and render d as DayOfWeek.Monday, n as null, m as 42.",
		Section:     11,
	},
}

// ByName looks up a scenario by its S1..S6 label.
func ByName(name string) (Scenario, bool) {
	for _, s := range Scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// AttachPollInterval and AttachPollRetries mirror scenario S5's polling
// cadence: short retries rather than a single attach attempt, since the
// target process may not have finished starting the runtime yet.
const (
	AttachPollInterval = 30 * time.Millisecond
	AttachPollRetries  = 10
)
