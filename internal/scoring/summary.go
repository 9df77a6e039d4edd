package scoring

import (
	"strconv"
	"strings"
	"time"

	"basegraph.app/triage/internal/model"
)

const addressPrefixLen = 10

func fallbackSummary(t *model.Ticket) string {
	typ := strings.TrimSpace(t.Type)
	if typ == "" {
		typ = "transaction"
	}

	value := "unknown value"
	if t.Value != nil {
		value = strconv.FormatFloat(*t.Value, 'f', -1, 64)
	}

	recipient := "unknown recipient"
	if t.Recipient != nil && t.Recipient.Address != "" {
		recipient = t.Recipient.Address
		if len(recipient) > addressPrefixLen {
			recipient = recipient[:addressPrefixLen] + "..."
		}
	}

	summary := typ + " of " + value + " " + t.Currency + " to " + recipient
	return strings.Join(strings.Fields(summary), " ")
}

func fallbackTags(t *model.Ticket, now time.Time) []string {
	var tags []string

	if typ := t.NormalizedType(); typ != "" {
		tags = append(tags, typ)
	}

	if v, ok := normalizedValue(t); ok {
		switch {
		case v > 100_000:
			tags = append(tags, "high-value")
		case v < 1_000:
			tags = append(tags, "low-value")
		default:
			tags = append(tags, "medium-value")
		}
	}

	switch count := len(t.Approvals); {
	case count >= t.EffectiveRequiredApprovals():
		tags = append(tags, "approved")
	case count == 0:
		tags = append(tags, "pending-approval")
	default:
		tags = append(tags, "partially-approved")
	}

	if t.Deadline != nil {
		remaining := t.Deadline.Sub(now)
		switch {
		case remaining < day:
			tags = append(tags, "urgent-deadline")
		case remaining < week:
			tags = append(tags, "near-deadline")
		}
	}

	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}
	return tags
}
