// Package harness runs scripted chat sessions against a fully wired bot and
// compares the transcript with golden files.
//
// Every scenario gets a fresh in-memory store, a manual clock starting at
// testutil.Epoch, sequential workflow ids ("wf-1", "wf-2", ...) and a
// scripted wager source, so transcripts are byte-for-byte reproducible.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: marriage_accepted
//	description: "What this scenario shows"
//	config:                      # optional overrides of config.Defaults()
//	  consent_timeout: 30s
//	accounts:                    # optional accounts saved before the run
//	  - id: alice
//	    balance: 6000000
//	rolls: [small, big]          # optional wager outcomes, cycled
//	flow:
//	  - say: "alice: e marry @bob"
//	    expect: ["wants to marry you"]
//	  - advance: 30s
//	  - tick: true
//	  - fail_saves: { account: bob, times: 1 }
//	  - heal: true
//	assertions:
//	  - type: account
//	    account: alice
//	    expect: { balance: 1000000, partner: bob }
//	  - type: transcript_contains
//	    text: "Congratulations"
//
// Lines use the console syntax of command.ParseLine ("root!: ..." for an
// administrator).
//
// # Golden Files
//
// RunWithGolden renders the transcript plus the final durable state and
// compares it with testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
