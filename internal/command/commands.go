package command

import (
	"context"
	"strconv"
	"strings"

	"github.com/roach88/pairledger/internal/consent"
	"github.com/roach88/pairledger/internal/ledger"
)

func (r *Router) register() {
	r.commands = make(map[string]handler)
	add := func(name string, h handler) {
		r.commands[name] = h
		r.order = append(r.order, name)
	}

	add("money", handler{usage: "money", summary: "Show your balance.", run: cmdMoney})
	add("daily", handler{usage: "daily", summary: "Claim the daily reward.", run: cmdDaily})
	add("give", handler{usage: "give @user amount", summary: "Send xu to someone.", run: cmdGive})
	add("addmoney", handler{usage: "addmoney @user amount", summary: "Credit a user.", privileged: true, run: cmdAddMoney})
	add("removemoney", handler{usage: "removemoney @user amount", summary: "Debit a user.", privileged: true, run: cmdRemoveMoney})
	add("marry", handler{usage: "marry @user", summary: "Propose to someone; the proposer pays the fee.", run: cmdMarry})
	add("divorce", handler{usage: "divorce", summary: "Ask your partner for a divorce; the asker pays the fee.", run: cmdDivorce})
	add("yes", handler{usage: "yes", summary: "Accept the request waiting for you.", run: cmdAnswer})
	add("no", handler{usage: "no", summary: "Decline the request waiting for you.", run: cmdAnswer})
	add("cancel", handler{usage: "cancel", summary: "Withdraw your pending request.", run: cmdCancel})
	add("marrys", handler{usage: "marrys", summary: "Show marriage status and affection.", run: cmdStatus})
	add("luv", handler{usage: "luv amount", summary: "Spend xu on affection (1 point per 1,000 xu).", run: cmdLuv})
	add("love", handler{usage: "love", summary: "Gain affection once an hour.", run: cmdLove})
	add("photo", handler{usage: "photo url", summary: "Set the couple photo.", run: cmdPhoto})
	add("clearphoto", handler{usage: "clearphoto", summary: "Remove the couple photo.", run: cmdClearPhoto})
	add("taixiu", handler{usage: "taixiu amount [tai|xiu]", summary: "Bet on big (tai) or small (xiu).", run: cmdTaiXiu})
	add("addreply", handler{usage: "addreply keyword reply text", summary: "Add an auto-reply.", run: cmdAddReply})
	add("removereply", handler{usage: "removereply keyword", summary: "Remove an auto-reply.", run: cmdRemoveReply})
	add("listreply", handler{usage: "listreply", summary: "List auto-replies.", run: cmdListReply})
	add("persist", handler{usage: "persist [@user]", summary: "Retry saving unsaved accounts.", privileged: true, run: cmdPersist})
	add("help", handler{usage: "help", summary: "Show this list.", run: cmdHelp})
}

func cmdMoney(ctx context.Context, r *Router, m Message, _ []string) []string {
	acct, err := r.ledger.Account(ctx, m.AuthorID)
	if err != nil {
		return r.failure(err)
	}
	return []string{printer.Sprintf("%s has %d xu.", mention(m.AuthorID), acct.Balance)}
}

func cmdDaily(ctx context.Context, r *Router, m Message, _ []string) []string {
	acct, err := r.ledger.ClaimDaily(ctx, m.AuthorID)
	return r.result(err, printer.Sprintf("Daily reward claimed! Balance: %d xu.", acct.Balance))
}

func cmdGive(ctx context.Context, r *Router, m Message, args []string) []string {
	target, amount, ok := targetAmount(m, args)
	if !ok {
		return r.usage("give")
	}
	res, err := r.ledger.Transfer(ctx, m.AuthorID, target, amount)
	return r.result(err, printer.Sprintf("You sent %d xu to %s. Balance: %d xu.", amount, mention(target), res.From.Balance))
}

func cmdAddMoney(ctx context.Context, r *Router, m Message, args []string) []string {
	target, amount, ok := targetAmount(m, args)
	if !ok {
		return r.usage("addmoney")
	}
	acct, err := r.ledger.Credit(ctx, target, amount)
	return r.result(err, printer.Sprintf("Added %d xu to %s. Their balance: %d xu.", amount, mention(target), acct.Balance))
}

func cmdRemoveMoney(ctx context.Context, r *Router, m Message, args []string) []string {
	target, amount, ok := targetAmount(m, args)
	if !ok {
		return r.usage("removemoney")
	}
	acct, err := r.ledger.Debit(ctx, target, amount)
	return r.result(err, printer.Sprintf("Removed %d xu from %s. Their balance: %d xu.", amount, mention(target), acct.Balance))
}

func cmdMarry(ctx context.Context, r *Router, m Message, _ []string) []string {
	if len(m.Mentions) == 0 {
		return r.usage("marry")
	}
	target := m.Mentions[0]
	if _, err := r.consent.Begin(ctx, consent.KindProposal, m.AuthorID, target, r.settings.MarriageCost, r.settings.ConsentTimeout); err != nil {
		return r.failure(err)
	}
	return []string{printer.Sprintf(
		"%s, %s wants to marry you! The fee of %d xu is paid by the proposer. Answer `%s yes` or `%s no` within %s.",
		mention(target), mention(m.AuthorID), r.settings.MarriageCost,
		r.settings.Prefix, r.settings.Prefix, r.settings.ConsentTimeout.String())}
}

func cmdDivorce(ctx context.Context, r *Router, m Message, _ []string) []string {
	snap, err := r.consent.Begin(ctx, consent.KindDivorce, m.AuthorID, "", r.settings.DivorceCost, r.settings.ConsentTimeout)
	if err != nil {
		return r.failure(err)
	}
	return []string{printer.Sprintf(
		"%s, %s is asking for a divorce. The fee of %d xu is paid by the asker. Answer `%s yes` or `%s no` within %s.",
		mention(snap.ResponderID), mention(m.AuthorID), r.settings.DivorceCost,
		r.settings.Prefix, r.settings.Prefix, r.settings.ConsentTimeout.String())}
}

// cmdAnswer serves both "yes" and "no"; the command word is the answer.
func cmdAnswer(ctx context.Context, r *Router, m Message, _ []string) []string {
	fields := strings.Fields(m.Content)
	choice, ok := consent.ParseChoice(fields[1])
	if !ok {
		return r.usage("yes")
	}
	snap, ok := r.consent.PendingFor(m.AuthorID)
	if !ok {
		return []string{"There is no request waiting for your answer."}
	}
	if _, err := r.consent.OnResponse(ctx, snap.ID, m.AuthorID, choice); err != nil {
		return r.failure(err)
	}
	return nil
}

func cmdCancel(ctx context.Context, r *Router, m Message, _ []string) []string {
	snap, ok := r.consent.PendingFrom(m.AuthorID)
	if !ok {
		return []string{"You have no pending request."}
	}
	if _, err := r.consent.Cancel(ctx, snap.ID, m.AuthorID); err != nil {
		return r.failure(err)
	}
	return nil
}

func cmdStatus(ctx context.Context, r *Router, m Message, _ []string) []string {
	id := m.AuthorID
	if len(m.Mentions) > 0 {
		id = m.Mentions[0]
	}
	acct, err := r.ledger.Account(ctx, id)
	if err != nil {
		return r.failure(err)
	}

	partner := "not married"
	if acct.Paired() {
		partner = mention(acct.PartnerID)
	}
	var b strings.Builder
	b.WriteString(printer.Sprintf("**Status of %s**\n", mention(id)))
	b.WriteString(printer.Sprintf("- Partner: %s\n", partner))
	b.WriteString(printer.Sprintf("- Affection: %d\n", acct.AffectionPoints))
	b.WriteString(printer.Sprintf("- Balance: %d xu", acct.Balance))
	if acct.PairedMediaRef != "" {
		b.WriteString("\n- Photo: " + acct.PairedMediaRef)
	}
	if snap, ok := r.consent.PendingFor(id); ok {
		b.WriteString(printer.Sprintf("\n- Pending: %s from %s", snap.Kind.String(), mention(snap.InitiatorID)))
	}
	return []string{b.String()}
}

func cmdLuv(ctx context.Context, r *Router, m Message, args []string) []string {
	if len(args) == 0 {
		return r.usage("luv")
	}
	cost, ok := parseAmount(args[0])
	if !ok {
		return r.usage("luv")
	}
	acct, gained, err := r.ledger.BuyAffection(ctx, m.AuthorID, cost)
	return r.result(err, printer.Sprintf("You gained %d affection points. Affection: %d. Balance: %d xu.", gained, acct.AffectionPoints, acct.Balance))
}

func cmdLove(ctx context.Context, r *Router, m Message, _ []string) []string {
	acct, err := r.ledger.AccrueAffection(ctx, m.AuthorID)
	return r.result(err, printer.Sprintf("Love is in the air. Affection: %d.", acct.AffectionPoints))
}

func cmdPhoto(ctx context.Context, r *Router, m Message, args []string) []string {
	if len(args) == 0 {
		return r.usage("photo")
	}
	_, err := r.ledger.SetPairedMedia(ctx, m.AuthorID, args[0])
	return r.result(err, "Couple photo updated.")
}

func cmdClearPhoto(ctx context.Context, r *Router, m Message, _ []string) []string {
	_, err := r.ledger.ClearPairedMedia(ctx, m.AuthorID)
	return r.result(err, "Couple photo removed.")
}

func cmdTaiXiu(ctx context.Context, r *Router, m Message, args []string) []string {
	if len(args) == 0 {
		return r.usage("taixiu")
	}
	amount, ok := parseAmount(args[0])
	if !ok {
		return r.usage("taixiu")
	}
	pick := ledger.OutcomeBig
	if len(args) > 1 {
		switch strings.ToLower(args[1]) {
		case "tai", "tài", "big":
			pick = ledger.OutcomeBig
		case "xiu", "xỉu", "small":
			pick = ledger.OutcomeSmall
		default:
			return r.usage("taixiu")
		}
	}

	res, err := r.ledger.Wager(ctx, m.AuthorID, amount, ledger.Bet(pick))
	verdict := printer.Sprintf("You lost %d xu.", amount)
	if res.Won {
		verdict = printer.Sprintf("You won %d xu!", amount)
	}
	return r.result(err, printer.Sprintf("Result: %s. %s Balance: %d xu.", outcomeName(res.Outcome), verdict, res.Balance))
}

func cmdAddReply(ctx context.Context, r *Router, m Message, args []string) []string {
	if len(args) < 2 {
		return r.usage("addreply")
	}
	keyword, text := args[0], strings.Join(args[1:], " ")
	if err := r.replies.Add(ctx, keyword, text); err != nil {
		return r.failure(err)
	}
	return []string{printer.Sprintf("Auto-reply added: %q → %q.", keyword, text)}
}

func cmdRemoveReply(ctx context.Context, r *Router, m Message, args []string) []string {
	if len(args) == 0 {
		return r.usage("removereply")
	}
	removed, err := r.replies.Remove(ctx, args[0])
	if err != nil {
		return r.failure(err)
	}
	if !removed {
		return []string{"Keyword not found."}
	}
	return []string{printer.Sprintf("Auto-reply %q removed.", args[0])}
}

func cmdListReply(_ context.Context, r *Router, _ Message, _ []string) []string {
	list := r.replies.List()
	if len(list) == 0 {
		return []string{"No auto-replies yet."}
	}
	lines := make([]string, len(list))
	for i, rep := range list {
		lines[i] = printer.Sprintf("- %q → %q", rep.Keyword, rep.Text)
	}
	return []string{strings.Join(lines, "\n")}
}

func cmdPersist(ctx context.Context, r *Router, m Message, _ []string) []string {
	if len(m.Mentions) == 0 {
		if err := r.ledger.Flush(ctx); err != nil {
			r.log.Warn("flush failed", "error", err)
			return []string{printer.Sprintf("Some accounts are still unsaved: %s", strings.Join(r.ledger.Cache().Dirty(), ", "))}
		}
		return []string{"All accounts saved."}
	}
	target := m.Mentions[0]
	if err := r.ledger.Persist(ctx, target); err != nil {
		return r.failure(err)
	}
	return []string{printer.Sprintf("%s saved.", mention(target))}
}

func cmdHelp(_ context.Context, r *Router, _ Message, _ []string) []string {
	return r.help()
}

func (r *Router) help() []string {
	var b strings.Builder
	b.WriteString("**Commands:**")
	for _, name := range r.order {
		h := r.commands[name]
		b.WriteString(printer.Sprintf("\n- `%s %s`: %s", r.settings.Prefix, h.usage, h.summary))
		if h.privileged {
			b.WriteString(" (admin)")
		}
	}
	return []string{b.String()}
}

func targetAmount(m Message, args []string) (string, int64, bool) {
	if len(m.Mentions) == 0 || len(args) == 0 {
		return "", 0, false
	}
	amount, ok := parseAmount(args[0])
	if !ok {
		return "", 0, false
	}
	return m.Mentions[0], amount, true
}

// parseAmount accepts positive integers, with optional thousands separators.
func parseAmount(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func outcomeName(o ledger.Outcome) string {
	if o == ledger.OutcomeBig {
		return "Tài"
	}
	return "Xỉu"
}
