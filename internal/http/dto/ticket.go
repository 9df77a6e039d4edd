package dto

import (
	"fmt"
	"time"

	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/service"
	"basegraph.app/triage/internal/store"
)

type SubmitTicketRequest struct {
	ID                string           `json:"id,omitempty" binding:"omitempty,max=128"`
	Type              string           `json:"type" binding:"max=256"`
	Description       string           `json:"description" binding:"max=4096"`
	Value             *float64         `json:"value,omitempty"`
	Currency          string           `json:"currency,omitempty" binding:"max=16"`
	Recipient         *model.Recipient `json:"recipient,omitempty"`
	Deadline          *time.Time       `json:"deadline,omitempty"`
	RequiredApprovals int              `json:"required_approvals,omitempty" binding:"gte=0"`
	Approvals         []model.Approval `json:"approvals,omitempty"`
}

func (r SubmitTicketRequest) ToParams() service.SubmitParams {
	return service.SubmitParams{
		ID:                r.ID,
		Type:              r.Type,
		Description:       r.Description,
		Value:             r.Value,
		Currency:          r.Currency,
		Recipient:         r.Recipient,
		Deadline:          r.Deadline,
		RequiredApprovals: r.RequiredApprovals,
		Approvals:         r.Approvals,
	}
}

type SubmitTicketResponse struct {
	ID      string   `json:"id"`
	Urgency float64  `json:"urgency"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

func ToSubmitTicketResponse(r *service.SubmitResult) *SubmitTicketResponse {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return &SubmitTicketResponse{
		ID:      r.ID,
		Urgency: r.Urgency,
		Summary: r.Summary,
		Tags:    tags,
	}
}

// SearchTicketsQuery is bound from the query string. Times are RFC3339.
type SearchTicketsQuery struct {
	Status     string   `form:"status"`
	MinUrgency *float64 `form:"min_urgency" binding:"omitempty,gte=0,lte=1"`
	Start      string   `form:"start"`
	End        string   `form:"end"`
	Limit      int      `form:"limit" binding:"gte=-1"`
}

func (q SearchTicketsQuery) ToParams() (service.SearchParams, error) {
	params := service.SearchParams{
		MinUrgency: q.MinUrgency,
		Limit:      q.Limit,
	}
	if q.Limit < 0 {
		params.Limit = store.Unlimited
	}
	if q.Status != "" {
		status := model.Status(q.Status)
		params.Status = &status
	}

	var err error
	if params.Start, err = parseOptionalTime("start", q.Start); err != nil {
		return service.SearchParams{}, err
	}
	if params.End, err = parseOptionalTime("end", q.End); err != nil {
		return service.SearchParams{}, err
	}
	return params, nil
}

// ParseBefore reads the required due threshold.
func ParseBefore(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("before is required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("before must be RFC3339: %w", err)
	}
	return t, nil
}

func parseOptionalTime(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339: %w", name, err)
	}
	return &t, nil
}

type TicketListResponse struct {
	Tickets []*model.Ticket `json:"tickets"`
	Count   int             `json:"count"`
}

func ToTicketListResponse(tickets []*model.Ticket) *TicketListResponse {
	if tickets == nil {
		tickets = []*model.Ticket{}
	}
	return &TicketListResponse{Tickets: tickets, Count: len(tickets)}
}
