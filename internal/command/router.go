// Package command turns chat messages into ledger and consent operations.
//
// A message that starts with the prefix word ("e money", "e give @bob 10")
// is a command. Anything else is matched against the auto-reply registry.
// The router is transport-agnostic: the transport fills in Message and
// prints whatever Handle returns. Workflow resolutions are not returned by
// Handle; the transport receives them from the consent notifier and renders
// them with Announce.
package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/pairledger/internal/autoreply"
	"github.com/roach88/pairledger/internal/consent"
	"github.com/roach88/pairledger/internal/ledger"
)

// ChunkLimit is the longest single reply, in runes.
const ChunkLimit = 1900

// Message is one inbound chat message.
type Message struct {
	AuthorID string
	Content  string

	// Mentions are the account ids referenced by the message, in order.
	Mentions []string

	// Privileged marks an administrator.
	Privileged bool
}

// Settings are the tunables the router needs.
type Settings struct {
	Prefix         string
	MarriageCost   int64
	DivorceCost    int64
	ConsentTimeout time.Duration
}

type handler struct {
	usage      string
	summary    string
	privileged bool
	run        func(ctx context.Context, r *Router, m Message, args []string) []string
}

// Router dispatches messages.
//
// Thread-safety: safe for concurrent use; all state lives in the ledger,
// the consent manager and the registry.
type Router struct {
	ledger   *ledger.Ledger
	consent  *consent.Manager
	replies  *autoreply.Registry
	settings Settings
	log      *slog.Logger
	commands map[string]handler
	order    []string
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.log = l
	}
}

// New creates a router.
func New(l *ledger.Ledger, m *consent.Manager, replies *autoreply.Registry, s Settings, opts ...Option) *Router {
	if s.Prefix == "" {
		s.Prefix = "e"
	}
	r := &Router{
		ledger:   l,
		consent:  m,
		replies:  replies,
		settings: s,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	r.register()
	return r
}

// Handle processes one message and returns the replies to send, each at most
// ChunkLimit runes. A nil result means nothing should be sent.
func (r *Router) Handle(ctx context.Context, m Message) []string {
	fields := strings.Fields(m.Content)
	if len(fields) == 0 {
		return nil
	}
	if !strings.EqualFold(fields[0], r.settings.Prefix) {
		if rep, ok := r.replies.Match(m.Content); ok {
			return []string{rep.Text}
		}
		return nil
	}
	if len(fields) == 1 {
		return r.help()
	}

	name := strings.ToLower(fields[1])
	h, ok := r.commands[name]
	if !ok {
		return []string{printer.Sprintf("Unknown command %q. Try `%s help`.", name, r.settings.Prefix)}
	}
	if h.privileged && !m.Privileged {
		return []string{"You are not allowed to use this command."}
	}

	r.log.Debug("command", "name", name, "author", m.AuthorID)
	var out []string
	for _, text := range h.run(ctx, r, m, arguments(fields[2:])) {
		out = append(out, Chunk(text, ChunkLimit)...)
	}
	return out
}

// arguments drops mention tokens; mentions travel in Message.Mentions.
func arguments(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f, "@") || strings.HasPrefix(f, "<@") {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (r *Router) usage(name string) []string {
	return []string{printer.Sprintf("Usage: `%s %s`", r.settings.Prefix, r.commands[name].usage)}
}
