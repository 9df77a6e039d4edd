package store

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"basegraph.app/triage/internal/model"
)

const (
	primaryPrefix = "ticket:"
	indexPrefix   = "idx:"

	dimCreated  = "created"
	dimUrgency  = "urgency"
	dimStatus   = "status"
	dimType     = "type"
	dimDeadline = "deadline"
)

// Index entries carry no payload. A non-empty marker keeps backends with
// NOT NULL value columns happy.
var indexMarker = []byte{1}

func primaryKey(id string) []byte {
	return []byte(primaryPrefix + id)
}

// dimensionPrefix is "idx:<dim>:".
func dimensionPrefix(dim string) string {
	return indexPrefix + dim + ":"
}

// valuePrefix is "idx:<dim>:<value>:". Values never contain ':' so the id
// is everything after the third separator.
func valuePrefix(dim, value string) string {
	return dimensionPrefix(dim) + value + ":"
}

func indexKey(dim, value, id string) string {
	return valuePrefix(dim, value) + id
}

// Millisecond timestamps are zero padded so lexical order matches time
// order. Pre-epoch times collapse to zero.
func timeComponent(t time.Time) string {
	ms := t.UnixMilli()
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%020d", ms)
}

func urgencyComponent(u float64) string {
	return fmt.Sprintf("%.1f", u)
}

func textComponent(s string) string {
	return url.QueryEscape(s)
}

// indexKeys lists every index entry t should have.
func indexKeys(t *model.Ticket) []string {
	keys := []string{
		indexKey(dimCreated, timeComponent(t.CreatedAt), t.ID),
		indexKey(dimUrgency, urgencyComponent(t.Urgency), t.ID),
		indexKey(dimStatus, textComponent(string(t.Status)), t.ID),
	}
	if typ := t.NormalizedType(); typ != "" {
		keys = append(keys, indexKey(dimType, textComponent(typ), t.ID))
	}
	if t.Deadline != nil {
		keys = append(keys, indexKey(dimDeadline, timeComponent(*t.Deadline), t.ID))
	}
	return keys
}

// idFromIndexKey extracts the ticket id from "idx:<dim>:<value>:<id>".
func idFromIndexKey(key []byte) (string, bool) {
	parts := strings.SplitN(string(key), ":", 4)
	if len(parts) != 4 || parts[3] == "" {
		return "", false
	}
	return parts[3], true
}
