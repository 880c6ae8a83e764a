// Package model defines the core data types used throughout the erpsync pipeline.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Payload field names that compose the business key of an ERP record.
const (
	FieldOrderID = "CUST_ORDER_ID"
	FieldLineNo  = "CUST_ORDER_LINE_NO"
	FieldPartID  = "BOM_PART_ID"
)

// RawRecord is one landed ERP record. The payload is stored opaquely; only
// the worker's transform step interprets individual fields.
type RawRecord struct {
	ID          string          `json:"id"           db:"id"`
	ExternalKey string          `json:"external_key" db:"external_key"`
	Payload     json.RawMessage `json:"payload"      db:"payload"`
	PayloadHash string          `json:"payload_hash" db:"payload_hash"`
	FetchedAt   time.Time       `json:"fetched_at"   db:"fetched_at"`
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"   db:"updated_at"`
}

// IngestResult describes the outcome of landing one record.
type IngestResult struct {
	RecordID string
	// Changed is true for a newly inserted record or one whose payload
	// hash differs from the stored row.
	Changed bool
}

// BusinessKey is the composite identifier that names an ERP record across
// fetches: order id, order line number, and BOM part id.
type BusinessKey struct {
	OrderID string
	LineNo  string
	PartID  string
}

// String renders the key the way it is stored in raw_records.external_key.
func (k BusinessKey) String() string {
	return k.OrderID + "-" + k.LineNo + "-" + k.PartID
}

// Valid reports whether all three components are present.
func (k BusinessKey) Valid() bool {
	return k.OrderID != "" && k.LineNo != "" && k.PartID != ""
}

// KeyFromPayload extracts the business key from a decoded ERP record.
// Line numbers arrive as either strings or JSON numbers depending on the
// ERP export version, so both are accepted.
func KeyFromPayload(payload map[string]any) (BusinessKey, error) {
	key := BusinessKey{
		OrderID: stringField(payload, FieldOrderID),
		LineNo:  stringField(payload, FieldLineNo),
		PartID:  stringField(payload, FieldPartID),
	}
	if !key.Valid() {
		return BusinessKey{}, fmt.Errorf(
			"record is missing business key fields (%s, %s, %s)",
			FieldOrderID, FieldLineNo, FieldPartID,
		)
	}
	return key, nil
}

func stringField(payload map[string]any, name string) string {
	v, ok := payload[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		// Line numbers are integral; render without a fraction.
		return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.1f", t), ".0"), ".")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
