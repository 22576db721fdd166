package db

import (
	"time"

	"gorm.io/datatypes"
)

// Lead is a prospective customer record. The schema is intentionally
// compact but flexible and can evolve as the product grows.
type Lead struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Name    string `gorm:"index"`
	Email   string
	Phone   string
	Company string

	// Status follows the sales pipeline: new, contacted, qualified,
	// converted, lost.
	Status string `gorm:"index"`

	// Priority drives cache preloading: high-priority leads are warmed
	// into the leads pool at startup.
	Priority string

	AssignedTo string

	// Attributes holds arbitrary key/value pairs (e.g. source, region,
	// deal size) so callers can attach custom fields without schema
	// changes.
	Attributes datatypes.JSONMap `gorm:"type:json"`
}

// Contact is a person attached to a lead.
type Contact struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	LeadID uint `gorm:"index"`

	Name  string
	Email string
	Phone string
	Role  string
}

// CallLog records a single customer call. The rolling 24h window of
// call logs is preloaded into the callLogs cache pool at startup.
type CallLog struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time

	LeadID      uint      `gorm:"index"`
	InitiatedAt time.Time `gorm:"index"`
	DurationSec int
	Direction   string // inbound or outbound
	Outcome     string
	Notes       string
}

// Tables is the fixed entity list enumerated by the backup engine and
// covered by the index advisor's recommendation catalog.
func Tables() []string {
	return []string{"leads", "contacts", "call_logs"}
}
