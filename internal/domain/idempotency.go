// Package domain defines the core records exchanged between the spreadsheet
// backend, the local cache, and the scanning UI. This file holds the
// idempotency model persisted in the local store.
package domain

import "time"

// Idempotency records a completed QC submission keyed by
// (inspector_id, barcode, key). Scanners retry aggressively on flaky mobile
// networks; this table lets a retried POST return the originally created
// record instead of appending a duplicate inspection row to the sheet.
type Idempotency struct {
	ID          string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	InspectorID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_inspector_barcode_key,priority:1"`
	Barcode     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_inspector_barcode_key,priority:2"`
	Key         string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_inspector_barcode_key,priority:3"`
	RecordID    string    `gorm:"type:TEXT NOT NULL"`
	Status      int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
