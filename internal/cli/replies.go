package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pairledger/internal/app"
	"github.com/roach88/pairledger/internal/autoreply"
)

type replyView struct {
	Keyword string `json:"keyword"`
	Text    string `json:"text"`
}

func (r replyView) String() string {
	return r.Keyword + "\t" + r.Text
}

type replyList []replyView

func (l replyList) String() string {
	if len(l) == 0 {
		return "no auto-replies"
	}
	lines := make([]string, len(l))
	for i, r := range l {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

type message string

func (m message) String() string { return string(m) }

// NewRepliesCommand creates the replies command group.
func NewRepliesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replies",
		Short: "Manage auto-replies in the configured store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List auto-replies",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(_ context.Context, a *app.App, out *OutputFormatter) error {
				replies := a.Replies.List()
				list := make(replyList, len(replies))
				for i, r := range replies {
					list[i] = replyView{Keyword: r.Keyword, Text: r.Text}
				}
				return out.Success(list)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "add <keyword> <reply...>",
		Short:         "Add an auto-reply",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				text := strings.Join(args[1:], " ")
				if err := a.Replies.Add(ctx, args[0], text); err != nil {
					return replyFailure(out, err)
				}
				return out.Success(replyView{Keyword: args[0], Text: text})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "remove <keyword>",
		Short:         "Remove an auto-reply",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				removed, err := a.Replies.Remove(ctx, args[0])
				if err != nil {
					return replyFailure(out, err)
				}
				if !removed {
					return out.Refuse(ExitFailure, "NOT_FOUND", fmt.Errorf("keyword %q not found", args[0]), nil)
				}
				return out.Success(message(fmt.Sprintf("removed %q", args[0])))
			})
		},
	})

	return cmd
}

func replyFailure(out *OutputFormatter, err error) error {
	code := "STORE_ERROR"
	switch {
	case errors.Is(err, autoreply.ErrExists):
		code = "EXISTS"
	case errors.Is(err, autoreply.ErrEmpty):
		code = "EMPTY"
	}
	return out.Refuse(ExitFailure, code, err, nil)
}
