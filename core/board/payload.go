package board

import (
	"time"

	"github.com/goccy/go-json"
)

// Payload is the wire form of a Record. The document is embedded as raw JSON.
type Payload struct {
	RoomID    string          `json:"room_id"`
	Document  json.RawMessage `json:"document"`
	Timestamp int64           `json:"timestamp"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

func NewPayload(rec Record) Payload {
	p := Payload{RoomID: rec.RoomID, Document: json.RawMessage(rec.Document), Timestamp: rec.Timestamp}
	if !rec.UpdatedAt.IsZero() {
		t := rec.UpdatedAt.UTC()
		p.UpdatedAt = &t
	}
	return p
}

func (p Payload) Record() Record {
	rec := Record{RoomID: p.RoomID, Document: []byte(p.Document), Timestamp: p.Timestamp}
	if p.UpdatedAt != nil {
		rec.UpdatedAt = p.UpdatedAt.UTC()
	}
	return rec
}

// WriteRequest is the body of a whole-record overwrite.
type WriteRequest struct {
	Document  json.RawMessage `json:"document" validate:"required"`
	Timestamp int64           `json:"timestamp" validate:"gt=0"`
}
