package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pairledger/internal/app"
	"github.com/roach88/pairledger/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTranscript:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Type, event.Text)
		}
	}
	return buf.String()
}

// AssertionContext provides the live bot for state assertions.
type AssertionContext struct {
	Ctx context.Context
	App *app.App
}

var accountFields = map[string]bool{
	"balance":   true,
	"partner":   true,
	"affection": true,
	"photo":     true,
}

// matchingEvents returns the events containing text, optionally of one type.
func matchingEvents(trace []TraceEvent, text, typ string) []TraceEvent {
	var out []TraceEvent
	for _, event := range trace {
		if typ != "" && event.Type != typ {
			continue
		}
		if strings.Contains(event.Text, text) {
			out = append(out, event)
		}
	}
	return out
}

func describeEvent(text, typ string) string {
	if typ == "" {
		return fmt.Sprintf("event containing %q", text)
	}
	return fmt.Sprintf("%s event containing %q", typ, text)
}

func assertTranscriptContains(trace []TraceEvent, a Assertion) error {
	if len(matchingEvents(trace, a.Text, a.Event)) > 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertTranscriptContains,
		Expected: describeEvent(a.Text, a.Event),
		Actual:   "not found in transcript",
		Trace:    trace,
	}
}

func assertTranscriptCount(trace []TraceEvent, a Assertion) error {
	n := len(matchingEvents(trace, a.Text, a.Event))
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTranscriptCount,
		Expected: fmt.Sprintf("%d x %s", a.Count, describeEvent(a.Text, a.Event)),
		Actual:   fmt.Sprintf("%d occurrences", n),
		Trace:    trace,
	}
}

// assertAccount compares selected fields of one account. Live reads go
// through the ledger (and so see unsaved changes); stored reads use the
// durable snapshot taken at the end of the flow.
func assertAccount(result *Result, actx *AssertionContext, a Assertion) error {
	var (
		acct  ledger.Account
		found = true
		err   error
	)
	if a.Stored {
		idx := slices.IndexFunc(result.Stored, func(s ledger.Account) bool { return s.ID == a.Account })
		found = idx >= 0
		if found {
			acct = result.Stored[idx]
		}
	} else {
		acct, err = actx.App.Ledger.Account(actx.Ctx, a.Account)
		if err != nil {
			return fmt.Errorf("account %s: %w", a.Account, err)
		}
	}
	if !found {
		return &AssertionError{
			Type:     AssertAccount,
			Expected: fmt.Sprintf("stored account %s", a.Account),
			Actual:   "never saved",
		}
	}

	actual := map[string]any{
		"balance":   acct.Balance,
		"partner":   acct.PartnerID,
		"affection": acct.AffectionPoints,
		"photo":     acct.PairedMediaRef,
	}
	var mismatches []string
	for _, field := range sortedKeys(a.Expect) {
		if !fieldEqual(a.Expect[field], actual[field]) {
			mismatches = append(mismatches, fmt.Sprintf("%s=%v (want %v)", field, actual[field], a.Expect[field]))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	where := "live"
	if a.Stored {
		where = "stored"
	}
	return &AssertionError{
		Type:     AssertAccount,
		Expected: fmt.Sprintf("%s account %s with %v", where, a.Account, a.Expect),
		Actual:   strings.Join(mismatches, ", "),
	}
}

// fieldEqual compares a YAML-decoded expectation with an account field.
// YAML integers decode as int; a null or missing string means "".
func fieldEqual(expected, actual any) bool {
	switch act := actual.(type) {
	case int64:
		switch exp := expected.(type) {
		case int:
			return int64(exp) == act
		case int64:
			return exp == act
		case uint64:
			return act >= 0 && exp == uint64(act)
		}
		return false
	case string:
		if expected == nil {
			return act == ""
		}
		exp, ok := expected.(string)
		return ok && exp == act
	}
	return false
}

func assertDirty(result *Result, a Assertion) error {
	want := slices.Clone(a.Accounts)
	slices.Sort(want)
	got := slices.Clone(result.Dirty)
	slices.Sort(got)
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     AssertDirty,
		Expected: fmt.Sprintf("dirty accounts %v", want),
		Actual:   fmt.Sprintf("%v", got),
	}
}

func assertPending(actx *AssertionContext, a Assertion) error {
	n := actx.App.Consent.PendingCount()
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertPending,
		Expected: fmt.Sprintf("%d pending workflow(s)", a.Count),
		Actual:   fmt.Sprintf("%d", n),
	}
}

func assertTotalBalance(actx *AssertionContext, a Assertion) error {
	var total int64
	for _, id := range a.Accounts {
		bal, err := actx.App.Ledger.Balance(actx.Ctx, id)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", id, err)
		}
		total += bal
	}
	if total == a.Total {
		return nil
	}
	return &AssertionError{
		Type:     AssertTotalBalance,
		Expected: fmt.Sprintf("total %d over %v", a.Total, a.Accounts),
		Actual:   fmt.Sprintf("%d", total),
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the live bot for account, pending and
// total_balance assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTranscriptContains:
			err = assertTranscriptContains(result.Trace, assertion)
		case AssertTranscriptCount:
			err = assertTranscriptCount(result.Trace, assertion)
		case AssertDirty:
			err = assertDirty(result, assertion)
		case AssertAccount, AssertPending, AssertTotalBalance:
			if actx == nil || actx.App == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a running bot", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertAccount:
				err = assertAccount(result, actx, assertion)
			case AssertPending:
				err = assertPending(actx, assertion)
			default:
				err = assertTotalBalance(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
