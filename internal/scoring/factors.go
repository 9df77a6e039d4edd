package scoring

import (
	"strings"
	"time"

	"basegraph.app/triage/internal/model"
)

const (
	weightValue     = 0.30
	weightDeadline  = 0.25
	weightApprovals = 0.20
	weightType      = 0.15
	weightRecipient = 0.10
)

// Approximate conversion into the common unit used for value buckets.
var currencyRates = map[string]float64{
	"ETH": 2000,
	"BTC": 45000,
}

// Checked in order; the first group with a keyword contained in the
// lower-cased type wins.
var typeGroups = []struct {
	keywords []string
	score    float64
}{
	{[]string{"emergency", "urgent"}, 0.9},
	{[]string{"security", "breach"}, 0.8},
	{[]string{"payroll", "salary"}, 0.7},
	{[]string{"vendor", "payment"}, 0.5},
	{[]string{"treasury", "investment"}, 0.4},
	{[]string{"maintenance", "upgrade"}, 0.2},
	{[]string{"test", "demo"}, 0.1},
}

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
)

type weighted struct {
	weight float64
	value  float64
}

func computeFactors(t *model.Ticket, now time.Time) model.FactorScores {
	return model.FactorScores{
		Value:     valueFactor(t),
		Deadline:  deadlineFactor(t, now),
		Approvals: approvalsFactor(t),
		Type:      typeFactor(t),
		Recipient: recipientFactor(t),
	}
}

// baseScore divides by the weights that contributed so a factor can be
// dropped without rescaling the others.
func baseScore(f model.FactorScores) float64 {
	parts := []weighted{
		{weightValue, f.Value},
		{weightDeadline, f.Deadline},
		{weightApprovals, f.Approvals},
		{weightType, f.Type},
		{weightRecipient, f.Recipient},
	}

	var sum, total float64
	for _, p := range parts {
		sum += p.weight * p.value
		total += p.weight
	}
	if total == 0 {
		return 0.5
	}
	return clamp(sum/total, 0, 1)
}

// normalizedValue returns the ticket value in the common unit, or false
// when the value is unknown.
func normalizedValue(t *model.Ticket) (float64, bool) {
	if t.Value == nil {
		return 0, false
	}
	v := *t.Value
	if rate, ok := currencyRates[strings.ToUpper(strings.TrimSpace(t.Currency))]; ok {
		v *= rate
	}
	return v, true
}

func valueFactor(t *model.Ticket) float64 {
	v, ok := normalizedValue(t)
	switch {
	case !ok || v <= 0:
		return 0.1
	case v < 1_000:
		return 0.2
	case v < 10_000:
		return 0.4
	case v < 100_000:
		return 0.7
	case v < 1_000_000:
		return 0.9
	default:
		return 1.0
	}
}

func deadlineFactor(t *model.Ticket, now time.Time) float64 {
	if t.Deadline == nil {
		return 0.3
	}
	remaining := t.Deadline.Sub(now)
	switch {
	case remaining < 0:
		return 1.0
	case remaining < time.Hour:
		return 0.9
	case remaining < day:
		return 0.7
	case remaining < week:
		return 0.5
	case remaining < month:
		return 0.3
	default:
		return 0.1
	}
}

func approvalsFactor(t *model.Ticket) float64 {
	count := len(t.Approvals)
	required := t.EffectiveRequiredApprovals()
	switch {
	case count >= required:
		return 0.1
	case count == 0:
		return 0.9
	case count == required-1:
		return 0.3
	default:
		return 0.6
	}
}

func typeFactor(t *model.Ticket) float64 {
	typ := t.NormalizedType()
	if typ == "" {
		return 0.3
	}
	for _, group := range typeGroups {
		for _, kw := range group.keywords {
			if strings.Contains(typ, kw) {
				return group.score
			}
		}
	}
	return 0.3
}

func recipientFactor(t *model.Ticket) float64 {
	r := t.Recipient
	switch {
	case r == nil:
		return 0.5
	case r.IsNew || !r.Verified:
		return 0.8
	case r.Whitelisted:
		return 0.2
	default:
		return 0.5
	}
}
