package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pairledger/internal/app"
	"github.com/roach88/pairledger/internal/ledger"
)

// accountView is the CLI rendering of a ledger account.
type accountView struct {
	ID              string     `json:"id"`
	Balance         int64      `json:"balance"`
	PartnerID       string     `json:"partner_id,omitempty"`
	AffectionPoints int64      `json:"affection_points"`
	LastAffectionAt *time.Time `json:"last_affection_at,omitempty"`
	PairedMediaRef  string     `json:"paired_media_ref,omitempty"`
	LastDailyAt     *time.Time `json:"last_daily_at,omitempty"`
}

func newAccountView(a ledger.Account) accountView {
	v := accountView{
		ID:              a.ID,
		Balance:         a.Balance,
		PartnerID:       a.PartnerID,
		AffectionPoints: a.AffectionPoints,
		PairedMediaRef:  a.PairedMediaRef,
	}
	if !a.LastAffectionAt.IsZero() {
		t := a.LastAffectionAt.UTC()
		v.LastAffectionAt = &t
	}
	if !a.LastDailyAt.IsZero() {
		t := a.LastDailyAt.UTC()
		v.LastDailyAt = &t
	}
	return v
}

func (v accountView) String() string {
	partner := "-"
	if v.PartnerID != "" {
		partner = v.PartnerID
	}
	s := fmt.Sprintf("%s\tbalance=%d\tpartner=%s\taffection=%d", v.ID, v.Balance, partner, v.AffectionPoints)
	if v.PairedMediaRef != "" {
		s += "\tphoto=" + v.PairedMediaRef
	}
	return s
}

type accountList []accountView

func (l accountList) String() string {
	if len(l) == 0 {
		return "no accounts"
	}
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect and adjust accounts offline",
		Long: `Inspect and adjust accounts directly in the configured store.

Adjustments go through the same ledger code path as the chat commands, so
balances can never go negative. Do not run these against a store that a
running bot is using.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show <id>",
		Short:         "Show one account",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				acct, err := a.Ledger.Account(ctx, args[0])
				if err != nil {
					return ledgerFailure(out, err)
				}
				return out.Success(newAccountView(acct))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List stored accounts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				accts, err := a.Store.ListAccounts(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to list accounts", err)
				}
				list := make(accountList, len(accts))
				for i, acct := range accts {
					list[i] = newAccountView(acct)
				}
				return out.Success(list)
			})
		},
	})

	cmd.AddCommand(newAdjustCommand(rootOpts, "credit", "Add xu to an account",
		func(ctx context.Context, l *ledger.Ledger, id string, n int64) (ledger.Account, error) {
			return l.Credit(ctx, id, n)
		}))
	cmd.AddCommand(newAdjustCommand(rootOpts, "debit", "Remove xu from an account",
		func(ctx context.Context, l *ledger.Ledger, id string, n int64) (ledger.Account, error) {
			return l.Debit(ctx, id, n)
		}))

	return cmd
}

type adjustFunc func(ctx context.Context, l *ledger.Ledger, id string, n int64) (ledger.Account, error)

func newAdjustCommand(rootOpts *RootOptions, name, short string, adjust adjustFunc) *cobra.Command {
	return &cobra.Command{
		Use:           name + " <id> <amount>",
		Short:         short,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(strings.ReplaceAll(args[1], ",", ""), 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid amount", err)
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				acct, err := adjust(ctx, a.Ledger, args[0], amount)
				if err != nil {
					return ledgerFailure(out, err)
				}
				out.VerboseLog("%s %s by %d", name, args[0], amount)
				return out.Success(newAccountView(acct))
			})
		},
	}
}

// withApp opens the configured store for one offline operation and closes
// it afterwards, flushing anything left unsaved.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(context.Context, *app.App, *OutputFormatter) error) error {
	ctx := commandContext(cmd)
	a, err := opts.openApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	runErr := fn(ctx, a, opts.formatter(cmd))
	if closeErr := a.Close(ctx); closeErr != nil && runErr == nil {
		return WrapExitError(ExitFailure, "failed to save", closeErr)
	}
	return runErr
}

// ledgerFailure prints a ledger error and returns the matching exit error.
func ledgerFailure(out *OutputFormatter, err error) error {
	code := string(ledger.CodeOf(err))
	if code == "" {
		code = "ERROR"
	}
	return out.Refuse(ExitFailure, code, err, nil)
}
