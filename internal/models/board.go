package models

import "time"

// Board is the top-level container owning lists and members.
type Board struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TeamID    string    `gorm:"size:64;index" json:"team_id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedBy string    `gorm:"size:64" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lists   []List        `gorm:"foreignKey:BoardID" json:"lists,omitempty"`
	Members []BoardMember `gorm:"foreignKey:BoardID" json:"members,omitempty"`
}

// BoardMember grants a user access to a board.
type BoardMember struct {
	BoardID   string    `gorm:"primaryKey;size:36" json:"board_id"`
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	Role      string    `gorm:"size:16;default:member" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// List is an ordered column of cards within a board. Position is
// contiguous and zero-based among the lists of one board.
type List struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	BoardID   string    `gorm:"size:36;not null;index:idx_board_position" json:"board_id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Position  int       `gorm:"not null;default:0;index:idx_board_position" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Board *Board `gorm:"foreignKey:BoardID" json:"board,omitempty"`
	Cards []Card `gorm:"foreignKey:ListID" json:"cards,omitempty"`
}

// Label is a board-scoped tag that can be attached to cards.
type Label struct {
	ID      string `gorm:"primaryKey;size:36" json:"id"`
	BoardID string `gorm:"size:36;index" json:"board_id"`
	Name    string `gorm:"size:64;not null" json:"name"`
	Color   string `gorm:"size:16" json:"color"`
}
