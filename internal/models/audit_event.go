package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditEvent stores one structured audit record. The whole payload lives in a
// single JSONB column so event-specific fields (failure_reason, otp_expires_at,
// ...) need no schema change.
type AuditEvent struct {
	ID        string            `gorm:"primaryKey;type:uuid" json:"id"`
	Data      datatypes.JSONMap `gorm:"type:jsonb" json:"data"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

// TableName keeps the table name aligned with the log sink the admin UI reads.
func (AuditEvent) TableName() string { return "audit_events" }

func (a *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
