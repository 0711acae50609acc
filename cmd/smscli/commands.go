package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	cpsms "github.com/jetdk/cpsms-client"
)

func (a *app) cmdSend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	to := fs.String("to", "", "comma-separated recipient numbers")
	from := fs.String("from", "", "sender id shown on the handset")
	unicode := fs.Bool("unicode", false, "send the body as UCS-2 instead of GSM")
	flash := fs.Bool("flash", false, "display immediately instead of storing in the inbox")
	at := fs.String("at", "", "schedule transmission for this instant (RFC3339)")
	dlrURL := fs.String("dlr-url", "", "delivery report callback url")
	reference := fs.String("ref", "", "correlation reference echoed in the delivery log")
	asJSON := fs.Bool("json", false, "print the report as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msg := cpsms.Message{
		Text:      strings.Join(fs.Args(), " "),
		From:      *from,
		Flash:     *flash,
		DLRURL:    *dlrURL,
		Reference: *reference,
	}
	if *unicode {
		msg.Format = cpsms.FormatUnicode
	}
	if *at != "" {
		sendAt, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
		msg.SendAt = sendAt
	}

	report, err := a.client.SendSMS(ctx, splitList(*to), msg)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "send completed",
		slog.Int("accepted", len(report.Deliveries)),
		slog.Int("rejected", len(report.Failures)),
		slog.String("reference", report.Reference),
	)
	if *asJSON {
		return writeJSON(a.out, report)
	}
	return renderReport(a.out, report)
}

func (a *app) cmdSendGroup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sendgroup", flag.ContinueOnError)
	groupID := fs.Int64("group", 0, "target group id")
	from := fs.String("from", "", "sender id shown on the handset")
	unicode := fs.Bool("unicode", false, "send the body as UCS-2 instead of GSM")
	flash := fs.Bool("flash", false, "display immediately instead of storing in the inbox")
	at := fs.String("at", "", "schedule transmission for this instant (RFC3339)")
	reference := fs.String("ref", "", "correlation reference echoed in the delivery log")
	asJSON := fs.Bool("json", false, "print the report as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	msg := cpsms.Message{
		Text:      strings.Join(fs.Args(), " "),
		From:      *from,
		Flash:     *flash,
		Reference: *reference,
	}
	if *unicode {
		msg.Format = cpsms.FormatUnicode
	}
	if *at != "" {
		sendAt, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
		msg.SendAt = sendAt
	}

	report, err := a.client.SendToGroup(ctx, *groupID, msg)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "group send completed",
		slog.Int64("group_id", *groupID),
		slog.Int("accepted", len(report.Deliveries)),
		slog.Int("rejected", len(report.Failures)),
	)
	if *asJSON {
		return writeJSON(a.out, report)
	}
	return renderReport(a.out, report)
}

func (a *app) cmdCancel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: smscli cancel <reference>")
	}
	if err := a.client.CancelScheduled(ctx, args[0]); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "scheduled message cancelled", slog.String("reference", args[0]))
	fmt.Fprintf(a.out, "cancelled %s\n", args[0])
	return nil
}

func (a *app) cmdCredit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("credit", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the balance as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	balance, err := a.client.Credit(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.out, balance)
	}
	fmt.Fprintf(a.out, "%.2f %s\n", balance.Amount, balance.Currency)
	return nil
}

func (a *app) cmdGroups(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list":
		fs := flag.NewFlagSet("groups list", flag.ContinueOnError)
		asJSON := fs.Bool("json", false, "print the groups as json")
		if err := fs.Parse(args); err != nil {
			return err
		}
		groups, err := a.client.ListGroups(ctx)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(a.out, groups)
		}
		return renderGroups(a.out, groups)

	case "create":
		if len(args) == 0 {
			return errors.New("usage: smscli groups create <name>")
		}
		group, err := a.client.CreateGroup(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "group created", slog.Int64("group_id", group.ID))
		fmt.Fprintf(a.out, "created group %d %q\n", group.ID, group.Name)
		return nil

	case "rename":
		if len(args) < 2 {
			return errors.New("usage: smscli groups rename <id> <name>")
		}
		id, err := parseID("group", args[0])
		if err != nil {
			return err
		}
		group, err := a.client.UpdateGroup(ctx, id, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "renamed group %d to %q\n", group.ID, group.Name)
		return nil

	case "delete":
		if len(args) != 1 {
			return errors.New("usage: smscli groups delete <id>")
		}
		id, err := parseID("group", args[0])
		if err != nil {
			return err
		}
		if err := a.client.DeleteGroup(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted group %d\n", id)
		return nil

	default:
		return fmt.Errorf("unknown groups subcommand %q", sub)
	}
}

func (a *app) cmdContacts(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list":
		fs := flag.NewFlagSet("contacts list", flag.ContinueOnError)
		asJSON := fs.Bool("json", false, "print the contacts as json")
		if err := fs.Parse(args); err != nil {
			return err
		}
		contacts, err := a.client.ListContacts(ctx)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(a.out, contacts)
		}
		return renderContacts(a.out, contacts)

	case "add":
		fs := flag.NewFlagSet("contacts add", flag.ContinueOnError)
		phone := fs.String("phone", "", "contact number")
		name := fs.String("name", "", "display name")
		groupID := fs.Int64("group", 0, "store straight into this group")
		if err := fs.Parse(args); err != nil {
			return err
		}
		contact, err := a.client.CreateContact(ctx, cpsms.NewContact{
			PhoneNumber: *phone,
			Name:        *name,
			GroupID:     *groupID,
		})
		if err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "contact created", slog.String("name", contact.Name))
		fmt.Fprintf(a.out, "added contact %q\n", contact.Name)
		return nil

	case "update":
		if len(args) == 0 {
			return errors.New("usage: smscli contacts update <id> [-phone <number>] [-name <name>]")
		}
		id, err := parseID("contact", args[0])
		if err != nil {
			return err
		}
		fs := flag.NewFlagSet("contacts update", flag.ContinueOnError)
		phone := fs.String("phone", "", "new contact number")
		name := fs.String("name", "", "new display name")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if _, err := a.client.UpdateContact(ctx, id, cpsms.ContactUpdate{
			PhoneNumber: *phone,
			Name:        *name,
		}); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "updated contact %d\n", id)
		return nil

	case "delete":
		if len(args) != 1 {
			return errors.New("usage: smscli contacts delete <id>")
		}
		id, err := parseID("contact", args[0])
		if err != nil {
			return err
		}
		if err := a.client.DeleteContact(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted contact %d\n", id)
		return nil

	default:
		return fmt.Errorf("unknown contacts subcommand %q", sub)
	}
}

func (a *app) cmdMembers(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: smscli members <group id>")
	}
	id, err := parseID("group", args[0])
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("members", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the members as json")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	members, err := a.client.ListGroupMembers(ctx, id)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.out, members)
	}
	return renderContacts(a.out, members)
}

func (a *app) cmdLog(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	last := fs.Duration("last", 0, "limit to entries newer than this (e.g. 24h)")
	from := fs.String("from", "", "range start (RFC3339)")
	to := fs.String("to", "", "range end (RFC3339)")
	asJSON := fs.Bool("json", false, "print the log as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var filter cpsms.LogFilter
	if *last > 0 {
		filter.Start = time.Now().Add(-*last)
	}
	if *from != "" {
		start, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			return fmt.Errorf("parse -from: %w", err)
		}
		filter.Start = start
	}
	if *to != "" {
		end, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			return fmt.Errorf("parse -to: %w", err)
		}
		filter.End = end
	}

	entries, err := a.client.GetLog(ctx, filter)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(a.out, entries)
	}
	return renderLog(a.out, entries)
}

// cmdStatus summarizes the account in one shot: balance, groups and the
// recent delivery log, fetched concurrently over the shared client.
func (a *app) cmdStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	window := fs.Duration("window", 24*time.Hour, "log window to summarize")
	asJSON := fs.Bool("json", false, "print the status as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		balance *cpsms.CreditBalance
		groups  []cpsms.Group
		entries []cpsms.LogEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = a.client.Credit(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = a.client.ListGroups(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = a.client.GetLog(gctx, cpsms.LogFilter{Start: time.Now().Add(-*window)})
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	status := accountStatus{
		Credit:   balance,
		Groups:   len(groups),
		Sent:     len(entries),
		Window:   window.String(),
		ByStatus: make(map[string]int),
	}
	for _, e := range entries {
		status.ByStatus[e.Status.String()]++
	}

	if *asJSON {
		return writeJSON(a.out, status)
	}
	return renderStatus(a.out, status)
}

// accountStatus is the aggregate the status command prints.
type accountStatus struct {
	Credit   *cpsms.CreditBalance `json:"credit"`
	Groups   int                  `json:"groups"`
	Sent     int                  `json:"sent"`
	Window   string               `json:"window"`
	ByStatus map[string]int       `json:"by_status"`
}

// splitList turns a comma-separated flag value into its entries,
// dropping blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s id %q is not numeric", kind, raw)
	}
	return id, nil
}
