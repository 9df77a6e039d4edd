package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusPending Status = "pending"
)

// DefaultRequiredApprovals applies when a ticket does not state how many
// signatures it needs.
const DefaultRequiredApprovals = 2

type Recipient struct {
	Address     string `json:"address"`
	Verified    bool   `json:"verified"`
	Whitelisted bool   `json:"whitelisted"`
	IsNew       bool   `json:"is_new"`
}

type Approval struct {
	ApproverID string    `json:"approver_id"`
	Timestamp  time.Time `json:"timestamp"`
	Signature  string    `json:"signature,omitempty"`
}

// FactorScores holds the per-factor values that fed the base urgency.
type FactorScores struct {
	Value     float64 `json:"value"`
	Deadline  float64 `json:"deadline"`
	Approvals float64 `json:"approvals"`
	Type      float64 `json:"type"`
	Recipient float64 `json:"recipient"`
}

type UrgencyBreakdown struct {
	BaseUrgency        float64      `json:"base_urgency"`
	ExternalAdjustment float64      `json:"external_adjustment"`
	Factors            FactorScores `json:"factors"`
}

// Ticket is a multisig approval request under triage.
type Ticket struct {
	ID                string     `json:"id"`
	Type              string     `json:"type,omitempty"`
	Description       string     `json:"description,omitempty"`
	Value             *float64   `json:"value,omitempty"`
	Currency          string     `json:"currency,omitempty"`
	Recipient         *Recipient `json:"recipient,omitempty"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	RequiredApprovals int        `json:"required_approvals,omitempty"`
	Approvals         []Approval `json:"approvals,omitempty"`
	Status            Status     `json:"status"`

	// Derived by scoring; overwritten on every triage.
	Urgency          float64           `json:"urgency"`
	UrgencyBreakdown *UrgencyBreakdown `json:"urgency_breakdown,omitempty"`
	Summary          string            `json:"summary,omitempty"`
	Tags             []string          `json:"tags,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// EffectiveRequiredApprovals returns RequiredApprovals, falling back to the
// default when unset.
func (t *Ticket) EffectiveRequiredApprovals() int {
	if t.RequiredApprovals <= 0 {
		return DefaultRequiredApprovals
	}
	return t.RequiredApprovals
}

// NormalizedType is the lower-cased type used for matching and indexing.
func (t *Ticket) NormalizedType() string {
	return strings.ToLower(strings.TrimSpace(t.Type))
}

// Clone returns a deep copy so callers can mutate without aliasing stored
// slices and pointers.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	if t.Value != nil {
		v := *t.Value
		c.Value = &v
	}
	if t.Recipient != nil {
		r := *t.Recipient
		c.Recipient = &r
	}
	if t.Deadline != nil {
		d := *t.Deadline
		c.Deadline = &d
	}
	if t.UrgencyBreakdown != nil {
		b := *t.UrgencyBreakdown
		c.UrgencyBreakdown = &b
	}
	if t.LastUpdated != nil {
		l := *t.LastUpdated
		c.LastUpdated = &l
	}
	if len(t.Approvals) > 0 {
		c.Approvals = append([]Approval(nil), t.Approvals...)
	}
	if len(t.Tags) > 0 {
		c.Tags = append([]string(nil), t.Tags...)
	}
	return &c
}

// TicketStats aggregates stored tickets. ByUrgency is keyed by the urgency
// floored to one decimal ("0.0" .. "1.0").
type TicketStats struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	ByUrgency map[string]int `json:"by_urgency"`
	ByType    map[string]int `json:"by_type"`
}
