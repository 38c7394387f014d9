package model

import "time"

// ThingRecord is the persisted copy of one inventory entry from the last
// successful device-inventory refresh. Replaced wholesale per refresh.
type ThingRecord struct {
	UID          string    `gorm:"primaryKey;size:256"`
	Label        string    `gorm:"size:256"`
	TypeUID      string    `gorm:"size:256"`
	BridgeUID    string    `gorm:"size:256"`
	Status       string    `gorm:"size:64"`
	StatusDetail string    `gorm:"size:128"`
	Properties   string    `gorm:"size:4096"` // JSON-encoded map
	ChannelCount int       `gorm:"not null"`
	FetchedAt    time.Time `gorm:"not null;index"`
}
