package models

import "time"

// Activity is an immutable audit record of a mutation.
type Activity struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID   string    `gorm:"size:36;index" json:"board_id"`
	ListID    string    `gorm:"size:36" json:"list_id"`
	CardID    string    `gorm:"size:36;index" json:"card_id"`
	ActorID   string    `gorm:"size:64;not null" json:"actor_id"`
	Type      string    `gorm:"size:24;not null;index" json:"type"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphRevision is a single-row counter bumped by every transaction that
// changes dependency edges. Its row lock serialises graph mutations.
type GraphRevision struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	Version int64 `json:"version"`
}
