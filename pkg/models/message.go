package models

// DeletedBody is the placeholder shown in place of a tombstoned message's
// body. Tombstoned messages are retained, never removed, so the deletion
// itself stays visible to the UI.
const DeletedBody = "[message deleted]"

type Message struct {
	ID      string `json:"id"`
	Project string `json:"project"`
	Author  string `json:"author,omitempty"`
	Body    string `json:"body,omitempty"`
	// Server-assigned creation timestamp (ns); ordering key together with ID
	TS int64 `json:"ts"`
	// Deleted marks a soft-deleted (tombstoned) message
	Deleted bool `json:"deleted,omitempty"`
}

// Tombstone returns a copy of m marked deleted with the placeholder body.
func (m Message) Tombstone() Message {
	m.Deleted = true
	m.Body = DeletedBody
	return m
}
