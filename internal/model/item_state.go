package model

import "time"

// ItemState is the persisted copy of one raw item from the last published
// snapshot. One row per item, replaced wholesale each poll cycle; this is a
// warm-start cache, not a history table.
type ItemState struct {
	Name       string    `gorm:"primaryKey;size:256"`
	State      *string   `gorm:"size:512"`
	Type       string    `gorm:"size:64"`
	Editable   bool      `gorm:"not null"`
	Label      string    `gorm:"size:256"`
	Category   string    `gorm:"size:128"`
	GroupNames string    `gorm:"size:1024"` // JSON-encoded list
	FetchedAt  time.Time `gorm:"not null;index"`
}
