package harness

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RenderTranscript renders a result as the plain-text golden format:
//
//	scenario: marriage_accepted
//	001 say alice: e marry @bob
//	002 reply @bob, @alice wants to marry you! ...
//	--- store
//	alice balance=1000000 partner=bob affection=0
//	dirty: -
//
// Continuation lines of multi-line events are indented four spaces.
func RenderTranscript(name string, result *Result) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "scenario: %s\n", name)
	for _, event := range result.Trace {
		lines := strings.Split(event.Text, "\n")
		fmt.Fprintf(&buf, "%03d %s %s\n", event.Seq, event.Type, lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(&buf, "    %s\n", line)
		}
	}

	buf.WriteString("--- store\n")
	for _, acct := range result.Stored {
		partner := acct.PartnerID
		if partner == "" {
			partner = "-"
		}
		fmt.Fprintf(&buf, "%s balance=%d partner=%s affection=%d", acct.ID, acct.Balance, partner, acct.AffectionPoints)
		if acct.PairedMediaRef != "" {
			fmt.Fprintf(&buf, " photo=%s", acct.PairedMediaRef)
		}
		buf.WriteByte('\n')
	}

	dirty := "-"
	if len(result.Dirty) > 0 {
		dirty = strings.Join(result.Dirty, ", ")
	}
	fmt.Fprintf(&buf, "dirty: %s\n", dirty)
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares the transcript against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario could not run. A transcript mismatch fails
// the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, RenderTranscript(scenarioName, result))
}
