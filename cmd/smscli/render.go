package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	cpsms "github.com/jetdk/cpsms-client"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderReport(w io.Writer, report *cpsms.SendReport) error {
	if len(report.Deliveries) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Recipient", "Cost", "Parts"})
		for _, d := range report.Deliveries {
			table.Append([]string{d.To, fmt.Sprintf("%.2f", d.Cost), strconv.Itoa(d.Parts)})
		}
		table.Render()
	}
	if len(report.Failures) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Rejected", "Code", "Reason"})
		for _, f := range report.Failures {
			table.Append([]string{f.To, strconv.Itoa(f.Code), f.Message})
		}
		table.Render()
	}
	if report.Reference != "" {
		fmt.Fprintf(w, "reference: %s\n", report.Reference)
	}
	return nil
}

func renderGroups(w io.Writer, groups []cpsms.Group) error {
	if len(groups) == 0 {
		fmt.Fprintln(w, "no groups")
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name"})
	for _, g := range groups {
		table.Append([]string{strconv.FormatInt(g.ID, 10), g.Name})
	}
	table.Render()
	return nil
}

func renderContacts(w io.Writer, contacts []cpsms.Contact) error {
	if len(contacts) == 0 {
		fmt.Fprintln(w, "no contacts")
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Number", "Name", "Added"})
	for _, c := range contacts {
		table.Append([]string{
			strconv.FormatInt(c.ID, 10),
			c.PhoneNumber,
			c.Name,
			formatTime(c.AddedAt),
		})
	}
	table.Render()
	return nil
}

func renderLog(w io.Writer, entries []cpsms.LogEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no log entries")
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Sent", "To", "From", "Parts", "Cost", "Status", "Reference"})
	for _, e := range entries {
		table.Append([]string{
			formatTime(e.SentAt),
			e.To,
			e.From,
			strconv.Itoa(e.Parts),
			fmt.Sprintf("%.2f", e.Cost),
			e.Status.String(),
			e.Reference,
		})
	}
	table.Render()
	return nil
}

func renderStatus(w io.Writer, status accountStatus) error {
	fmt.Fprintf(w, "credit:  %.2f %s\n", status.Credit.Amount, status.Credit.Currency)
	fmt.Fprintf(w, "groups:  %d\n", status.Groups)
	fmt.Fprintf(w, "sent:    %d in the last %s\n", status.Sent, status.Window)
	for name, count := range status.ByStatus {
		fmt.Fprintf(w, "  %s: %d\n", name, count)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
