package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pairledger/internal/app"
	"github.com/roach88/pairledger/internal/command"
	"github.com/roach88/pairledger/internal/consent"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot on the console",
		Long: `Run the bot with stdin as the chat channel.

Each input line is one message, prefixed by its author. A "!" after the
author marks an administrator. Replies and marriage announcements are
printed to stdout. Unsaved accounts are flushed on exit.

Example:
  pairledger run
  alice: e money
  alice: e marry @bob
  bob: e yes
  root!: e addmoney @alice 100`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(opts, cmd)
		},
	}

	return cmd
}

// consoleEvent is one line of bot output.
type consoleEvent struct {
	Kind string `json:"kind"` // "reply" | "announce" | "error"
	Text string `json:"text"`
}

func (e consoleEvent) String() string {
	if e.Kind == "announce" {
		return "* " + e.Text
	}
	return e.Text
}

// console serialises output from the input loop and from workflow timers.
type console struct {
	mu  sync.Mutex
	out *OutputFormatter
}

func (c *console) emit(kind string, texts ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, text := range texts {
		_ = c.out.Success(consoleEvent{Kind: kind, Text: text})
	}
}

func runConsole(opts *RunOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	con := &console{out: opts.formatter(cmd)}
	a, err := opts.openApp(ctx, cmd.ErrOrStderr(), app.WithNotifier(func(res consent.Resolution) {
		con.emit("announce", command.Announce(res))
	}))
	if err != nil {
		return err
	}
	defer func() {
		// ctx may already be cancelled; the final flush gets its own.
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil {
			a.Log.Error("shutdown", "error", closeErr)
		}
	}()

	a.Log.Info("console started", "prefix", a.Config.Prefix, "store", a.Config.Store.Driver)
	opts.formatter(cmd).VerboseLog("Type `%s help` for the command list. Ctrl-D to quit.", a.Config.Prefix)

	lines := make(chan string)
	go readLines(ctx, cmd.InOrStdin(), lines)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Tick(gctx, a.Config.TickInterval)
	})
	g.Go(func() error {
		defer stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				serveLine(gctx, a, con, line)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "console error", err)
	}
	a.Log.Info("console stopped")
	return nil
}

func serveLine(ctx context.Context, a *app.App, con *console, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	m, err := command.ParseLine(line)
	if err != nil {
		con.emit("error", err.Error())
		return
	}
	if replies := a.Router.Handle(ctx, m); len(replies) > 0 {
		con.emit("reply", replies...)
	}
}

// readLines sends input lines until EOF or ctx is done, then closes out.
func readLines(ctx context.Context, r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}
