package scoring

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"basegraph.app/triage/common"
	"basegraph.app/triage/internal/model"
)

// AdjustmentReply is the structured block the backend is asked to embed in
// its reply.
type AdjustmentReply struct {
	Adjustment float64  `json:"adjustment" jsonschema_description:"Correction to the base urgency, between -0.2 and 0.2"`
	Summary    string   `json:"summary" jsonschema_description:"One sentence summary of the transaction"`
	Tags       []string `json:"tags" jsonschema_description:"Up to five short lowercase tags"`
}

type adjustment struct {
	Adjustment float64
	Summary    string
	Tags       []string
}

const adjustSystemPrompt = `You triage multisig transaction approval requests.
Given a ticket and its deterministic base urgency, decide whether the urgency should move.
Respond with a JSON object: {"adjustment": number, "summary": string, "tags": [string]}.
The adjustment must be between -0.2 and 0.2. Use at most 5 tags.`

func buildPrompt(t *model.Ticket, base float64) string {
	var b strings.Builder
	b.WriteString(adjustSystemPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Base urgency: %.3f\n", base)
	fmt.Fprintf(&b, "Type: %s\n", orUnknown(t.Type))
	fmt.Fprintf(&b, "Description: %s\n", orUnknown(t.Description))

	if t.Value != nil {
		fmt.Fprintf(&b, "Value: %s %s\n", strconv.FormatFloat(*t.Value, 'f', -1, 64), t.Currency)
	} else {
		b.WriteString("Value: unknown\n")
	}

	if r := t.Recipient; r != nil {
		fmt.Fprintf(&b, "Recipient: %s (verified=%t, whitelisted=%t, new=%t)\n",
			orUnknown(r.Address), r.Verified, r.Whitelisted, r.IsNew)
	} else {
		b.WriteString("Recipient: unknown\n")
	}

	if t.Deadline != nil {
		fmt.Fprintf(&b, "Deadline: %s\n", t.Deadline.UTC().Format(time.RFC3339))
	} else {
		b.WriteString("Deadline: none\n")
	}

	fmt.Fprintf(&b, "Approvals: %d of %d\n", len(t.Approvals), t.EffectiveRequiredApprovals())
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

// parseAdjustment extracts the first well-formed JSON object from reply.
// Anything short of an object carrying a numeric adjustment discards the
// whole reply.
func parseAdjustment(reply string) (*adjustment, bool) {
	raw, ok := firstJSONObject(reply)
	if !ok {
		return nil, false
	}

	var fields struct {
		Adjustment *float64 `json:"adjustment"`
		Summary    string   `json:"summary"`
		Tags       []string `json:"tags"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil || fields.Adjustment == nil {
		return nil, false
	}

	adj := &adjustment{
		Adjustment: clamp(*fields.Adjustment, -MaxAdjustment, MaxAdjustment),
		Summary:    strings.TrimSpace(fields.Summary),
	}
	for _, tag := range fields.Tags {
		tag = common.Slug(tag)
		if tag == "" {
			continue
		}
		adj.Tags = append(adj.Tags, tag)
		if len(adj.Tags) == MaxTags {
			break
		}
	}
	return adj, true
}

func firstJSONObject(text string) (json.RawMessage, bool) {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return raw, true
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, false
}
