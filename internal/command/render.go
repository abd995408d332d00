package command

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/pairledger/internal/autoreply"
	"github.com/roach88/pairledger/internal/consent"
	"github.com/roach88/pairledger/internal/ledger"
)

// printer renders %d with thousands separators ("5,000,000").
var printer = message.NewPrinter(language.English)

const notSavedNote = "(Saved in memory only for now; an admin can retry with `persist`.)"

// partialNote names the receiver whose credit is unsaved after the sender's
// debit was saved.
func partialNote(receiverID string) string {
	return printer.Sprintf("(Your side is saved, but %s's credit is in memory only for now; an admin can retry with `persist %s`.)",
		mention(receiverID), mention(receiverID))
}

func mention(id string) string {
	return "@" + id
}

// result renders a ledger outcome. Durability failures still report the
// applied change, since the in-memory state is authoritative.
func (r *Router) result(err error, ok string) []string {
	if err == nil {
		return []string{ok}
	}
	var le *ledger.Error
	if errors.As(err, &le) && le.Code == ledger.CodePartialTransfer {
		r.log.Error("transfer partially saved", "receiver", le.AccountID, "error", err)
		return []string{ok + " " + partialNote(le.AccountID)}
	}
	if ledger.IsStoreFailure(err) {
		r.log.Warn("change applied but not saved", "error", err)
		return []string{ok + " " + notSavedNote}
	}
	return r.failure(err)
}

func (r *Router) failure(err error) []string {
	text, known := describe(err)
	if !known {
		r.log.Error("command failed", "error", err)
	}
	return []string{text}
}

// describe turns an error into a user-facing sentence. known is false for
// errors the router has no wording for.
func describe(err error) (text string, known bool) {
	var le *ledger.Error
	if errors.As(err, &le) {
		return describeLedger(le.Code, le.AccountID, le.RetryAfter), true
	}

	var ce *consent.Error
	if errors.As(err, &ce) {
		switch ce.Code {
		case consent.ErrCodeAlreadyPending:
			return "One of you already has a pending request. Answer or cancel it first.", true
		case consent.ErrCodeNotPending, consent.ErrCodeNotFound:
			return "That request is no longer pending.", true
		case consent.ErrCodeIgnored:
			return "That request is not yours to answer.", true
		case consent.ErrCodeInvalid:
			return "That request is not valid.", true
		}
	}

	switch {
	case errors.Is(err, autoreply.ErrExists):
		return "That keyword already exists!", true
	case errors.Is(err, autoreply.ErrEmpty):
		return "Both a keyword and a reply are needed.", true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The bot is busy, please try again.", true
	}
	return "Something went wrong, please try again later.", false
}

func describeLedger(code ledger.Code, accountID string, wait time.Duration) string {
	who := "You"
	if accountID != "" {
		who = mention(accountID)
	}
	switch code {
	case ledger.CodeInvalidAmount:
		return "The amount must be a positive number."
	case ledger.CodeInsufficientFunds:
		if accountID == "" {
			return "Not enough xu."
		}
		return printer.Sprintf("%s does not have enough xu.", who)
	case ledger.CodeSameAccount:
		return "You cannot do that with yourself!"
	case ledger.CodeAlreadyPaired:
		return printer.Sprintf("%s is already married!", who)
	case ledger.CodeNotPaired:
		return printer.Sprintf("%s is not married.", who)
	case ledger.CodeCooldownActive:
		return printer.Sprintf("Not yet! Try again in %s.", wait.Round(time.Second).String())
	case ledger.CodeInvalidMedia:
		return "The photo must be an http(s) link."
	case ledger.CodeBalanceOverflow:
		return printer.Sprintf("%s cannot hold that many xu.", who)
	case ledger.CodeLoadError:
		return "The account could not be read right now, so nothing changed. Please try again later."
	case ledger.CodeStoreError:
		return "The change was applied but could not be saved yet."
	case ledger.CodePartialTransfer:
		if accountID == "" {
			return "The money left the sender but the receiver's credit could not be saved yet."
		}
		return printer.Sprintf("The money left the sender but %s's credit could not be saved yet.", who)
	}
	return string(code)
}

// Announce renders a workflow resolution for the channel.
func Announce(res consent.Resolution) string {
	a, b := mention(res.InitiatorID), mention(res.ResponderID)
	noun := "proposal"
	if res.Kind == consent.KindDivorce {
		noun = "divorce request"
	}

	var text string
	switch res.State {
	case consent.StateAccepted:
		if res.Kind == consent.KindDivorce {
			text = printer.Sprintf("%s and %s are now divorced.", a, b)
		} else {
			text = printer.Sprintf("Congratulations! %s and %s are now married.", a, b)
		}
		if res.Reason != "" {
			text += " " + notSavedNote
		}
	case consent.StateRejected:
		switch res.Reason {
		case consent.ReasonDeclined:
			text = printer.Sprintf("%s declined the %s from %s.", b, noun, a)
		case consent.ReasonWithdrawn:
			text = printer.Sprintf("%s withdrew the %s to %s.", a, noun, b)
		default:
			text = printer.Sprintf("The %s from %s to %s could not go through: %s", noun, a, b,
				describeLedger(ledger.Code(res.Reason), "", 0))
		}
	case consent.StateExpired:
		text = printer.Sprintf("The %s from %s to %s expired without an answer.", noun, a, b)
	default:
		text = printer.Sprintf("The %s from %s to %s is %s.", noun, a, b, res.State.String())
	}
	return text
}

// Chunk splits s into pieces of at most limit runes, breaking at line ends
// when possible and inside a line only when the line alone is too long.
func Chunk(s string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return []string{s}
	}

	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if text := strings.TrimRight(cur.String(), "\n"); text != "" {
			out = append(out, text)
		}
		cur.Reset()
		n = 0
	}
	for _, line := range strings.SplitAfter(s, "\n") {
		ln := utf8.RuneCountInString(line)
		if n+ln > limit {
			flush()
		}
		for ln > limit {
			runes := []rune(line)
			out = append(out, string(runes[:limit]))
			line = string(runes[limit:])
			ln -= limit
		}
		cur.WriteString(line)
		n += ln
	}
	flush()
	return out
}
