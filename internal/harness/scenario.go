package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pairledger/internal/ledger"
)

// Scenario is one scripted chat session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario shows.
	Description string `yaml:"description"`

	// Config overrides fields of config.Defaults(). The store is always in memory.
	Config yaml.Node `yaml:"config,omitempty"`

	// Accounts are saved to the store before the bot starts.
	Accounts []AccountSeed `yaml:"accounts,omitempty"`

	// Rolls are the wager outcomes, used in order and then repeated.
	// "big"/"tai" or "small"/"xiu". Empty means always big.
	Rolls []string `yaml:"rolls,omitempty"`

	// Flow is the session, one step at a time.
	Flow []Step `yaml:"flow"`

	// Assertions validate the transcript and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// AccountSeed is a stored account. Partners must be seeded on both sides.
type AccountSeed struct {
	ID        string `yaml:"id"`
	Balance   int64  `yaml:"balance"`
	Partner   string `yaml:"partner,omitempty"`
	Affection int64  `yaml:"affection,omitempty"`
	Photo     string `yaml:"photo,omitempty"`
}

func (s AccountSeed) account() ledger.Account {
	return ledger.Account{
		ID:              s.ID,
		Balance:         s.Balance,
		PartnerID:       s.Partner,
		AffectionPoints: s.Affection,
		PairedMediaRef:  s.Photo,
	}
}

// Step is one flow entry. Exactly one action field is set.
type Step struct {
	// Say sends one console line, "alice: e money".
	Say string `yaml:"say,omitempty"`

	// Expect lists substrings that must each appear in one of Say's replies.
	Expect []string `yaml:"expect,omitempty"`

	// Advance moves the clock forward, firing due workflow timers.
	Advance string `yaml:"advance,omitempty"`

	// Tick runs one consent sweep at the current time.
	Tick bool `yaml:"tick,omitempty"`

	// FailSaves makes the next saves of one account fail.
	FailSaves *FailSaves `yaml:"fail_saves,omitempty"`

	// Heal clears injected store failures.
	Heal bool `yaml:"heal,omitempty"`
}

// FailSaves injects store failures. Times < 0 fails until heal.
type FailSaves struct {
	Account string `yaml:"account"`
	Times   int    `yaml:"times"`
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{s.Say != "", s.Advance != "", s.Tick, s.FailSaves != nil, s.Heal} {
		if set {
			n++
		}
	}
	return n
}

// Assertion validates the transcript or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Account is the account id (account).
	Account string `yaml:"account,omitempty"`

	// Stored reads the durable record instead of the live one (account).
	Stored bool `yaml:"stored,omitempty"`

	// Expect holds expected account fields: balance, partner, affection, photo.
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Text is the substring searched in transcript events.
	Text string `yaml:"text,omitempty"`

	// Event restricts transcript assertions to one event type.
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of matching events (transcript_count),
	// or of pending workflows (pending).
	Count int `yaml:"count,omitempty"`

	// Accounts lists ids (dirty, total_balance).
	Accounts []string `yaml:"accounts,omitempty"`

	// Total is the expected sum of balances (total_balance).
	Total int64 `yaml:"total,omitempty"`
}

// Assertion type constants.
const (
	AssertAccount            = "account"
	AssertTranscriptContains = "transcript_contains"
	AssertTranscriptCount    = "transcript_count"
	AssertDirty              = "dirty"
	AssertPending            = "pending"
	AssertTotalBalance       = "total_balance"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool)
	for i, a := range s.Accounts {
		if a.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("accounts[%d]: duplicate id %q", i, a.ID)
		}
		if a.Balance < 0 {
			return fmt.Errorf("accounts[%d]: balance must not be negative", i)
		}
		seen[a.ID] = true
	}

	for i, r := range s.Rolls {
		if _, err := parseRoll(r); err != nil {
			return fmt.Errorf("rolls[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if n := step.actions(); n != 1 {
			return fmt.Errorf("flow[%d]: exactly one of say, advance, tick, fail_saves, heal is required (got %d)", i, n)
		}
		if len(step.Expect) > 0 && step.Say == "" {
			return fmt.Errorf("flow[%d]: expect is only valid with say", i)
		}
		if step.Advance != "" {
			if d, err := time.ParseDuration(step.Advance); err != nil || d <= 0 {
				return fmt.Errorf("flow[%d]: advance must be a positive duration, got %q", i, step.Advance)
			}
		}
		if step.FailSaves != nil && step.FailSaves.Account == "" {
			return fmt.Errorf("flow[%d].fail_saves: account is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertAccount:
		if a.Account == "" {
			return fmt.Errorf("assertions[%d]: account is required for account", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for account", index)
		}
		for field := range a.Expect {
			if !accountFields[field] {
				return fmt.Errorf("assertions[%d]: unknown account field %q", index, field)
			}
		}
	case AssertTranscriptContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for transcript_contains", index)
		}
	case AssertTranscriptCount:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for transcript_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for transcript_count", index)
		}
	case AssertDirty:
	case AssertPending:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for pending", index)
		}
	case AssertTotalBalance:
		if len(a.Accounts) == 0 {
			return fmt.Errorf("assertions[%d]: accounts is required for total_balance", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Event != "" && !eventTypes[a.Event] {
		return fmt.Errorf("assertions[%d]: unknown event type %q", index, a.Event)
	}
	return nil
}

func parseRoll(s string) (ledger.Outcome, error) {
	switch s {
	case "big", "tai":
		return ledger.OutcomeBig, nil
	case "small", "xiu":
		return ledger.OutcomeSmall, nil
	}
	return 0, fmt.Errorf("unknown roll %q (want big, small, tai or xiu)", s)
}
