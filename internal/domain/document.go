package domain

import "encoding/json"

// Document is a schemaless record persisted in a JSONB column. Payload
// fields are stored as-is; the system enforces no shape beyond what the
// storage layer accepts.
type Document struct {
	ID     string
	Fields map[string]any
}

// MarshalJSON flattens the document so clients see the identifier alongside
// the stored fields.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		out[k] = v
	}
	out["id"] = d.ID
	return json.Marshal(out)
}

// WriteResult is the storage acknowledgment returned by writes. Create and
// update handlers return this instead of the stored entity.
type WriteResult struct {
	Matched    int64  `json:"matchedCount"`
	Modified   int64  `json:"modifiedCount"`
	UpsertedID string `json:"upsertedId,omitempty"`
}
