package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"basegraph.app/triage/internal/model"
)

func urgencyColor(u float64) *color.Color {
	switch {
	case u >= 0.8:
		return color.New(color.FgRed, color.Bold)
	case u >= 0.6:
		return color.New(color.FgYellow)
	case u >= 0.4:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgGreen)
	}
}

func printTickets(w io.Writer, tickets []*model.Ticket) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, "No tickets found")
		return
	}

	fmt.Fprintf(w, "Found %d ticket(s):\n\n", len(tickets))
	for _, t := range tickets {
		urgency := urgencyColor(t.Urgency).Sprintf("%.2f", t.Urgency)
		fmt.Fprintf(w, "%-20s %s  %-10s %s", t.ID, urgency, t.Status, t.Summary)
		if t.Deadline != nil {
			fmt.Fprintf(w, " (due %s)", t.Deadline.Format(time.RFC3339))
		}
		if len(t.Tags) > 0 {
			fmt.Fprintf(w, " %s", color.New(color.FgHiBlack).Sprint("["+strings.Join(t.Tags, ", ")+"]"))
		}
		fmt.Fprintln(w)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(w io.Writer, stats *model.TicketStats) {
	fmt.Fprintf(w, "Total: %d\n", stats.Total)
	printCounts(w, "By status", stats.ByStatus)
	printCounts(w, "By urgency", stats.ByUrgency)
	printCounts(w, "By type", stats.ByType)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\n%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s %d\n", k, counts[k])
	}
}
