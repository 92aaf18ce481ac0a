package collab

import "time"

// PresenceRecord is the ephemeral liveness state of one connected participant.
// Presence is memory-only and scoped to process lifetime.
type PresenceRecord struct {
	UserID      string       `json:"user_id"`
	DisplayName string       `json:"display_name,omitempty"`
	Role        string       `json:"role"`
	ConnectedAt time.Time    `json:"connected_at"`
	LastSeen    time.Time    `json:"last_seen"`
	Cursor      *CursorState `json:"cursor,omitempty"`
	IsTyping    bool         `json:"is_typing"`
}

// PresencePatch is a partial presence update. Nil fields are left untouched.
type PresencePatch struct {
	DisplayName *string
	Role        *string
	Cursor      *CursorState
	IsTyping    *bool
}

// presenceDirectory keeps presence records in join order. It is not
// self-locking; the owning session's mutex guards all access.
type presenceDirectory struct {
	records map[string]*PresenceRecord
	order   []string
}

func newPresenceDirectory() *presenceDirectory {
	return &presenceDirectory{records: make(map[string]*PresenceRecord)}
}

// upsert merges the patch into the participant's record, creating one if
// absent, and refreshes LastSeen.
func (d *presenceDirectory) upsert(userID string, now time.Time, patch PresencePatch) *PresenceRecord {
	record, ok := d.records[userID]
	if !ok {
		record = &PresenceRecord{
			UserID:      userID,
			ConnectedAt: now,
		}
		d.records[userID] = record
		d.order = append(d.order, userID)
	}

	if patch.DisplayName != nil {
		record.DisplayName = *patch.DisplayName
	}
	if patch.Role != nil {
		record.Role = *patch.Role
	}
	if patch.Cursor != nil {
		record.Cursor = patch.Cursor
	}
	if patch.IsTyping != nil {
		record.IsTyping = *patch.IsTyping
	}
	record.LastSeen = now

	return record
}

func (d *presenceDirectory) get(userID string) (*PresenceRecord, bool) {
	record, ok := d.records[userID]
	return record, ok
}

func (d *presenceDirectory) remove(userID string) bool {
	if _, ok := d.records[userID]; !ok {
		return false
	}
	delete(d.records, userID)
	for i, id := range d.order {
		if id == userID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// list returns record copies ordered by join time.
func (d *presenceDirectory) list() []PresenceRecord {
	out := make([]PresenceRecord, 0, len(d.order))
	for _, id := range d.order {
		if record, ok := d.records[id]; ok {
			out = append(out, *record)
		}
	}
	return out
}

func (d *presenceDirectory) len() int {
	return len(d.records)
}
