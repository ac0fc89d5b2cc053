// Package domain defines the core records exchanged between the spreadsheet
// backend, the local cache, and the scanning UI. ProductMaster and QCRecord
// are plain JSON-tagged structs; the idempotency model in this package is the
// only type mapped with GORM (the cache itself is stored as opaque JSON blobs,
// see the store package).
package domain

import (
	"strings"
	"time"
)

// QCStatus is the inspection outcome shown to the user. It is never stored in
// the spreadsheet; it is derived from the reason and selling price on every
// read (see InferStatus).
type QCStatus string

const (
	// StatusPass marks an item that cleared inspection.
	StatusPass QCStatus = "Pass"
	// StatusDamage marks an item rejected with a damage reason.
	StatusDamage QCStatus = "Damage"
)

// InferStatus derives the QC outcome from the persisted fields.
//
// An item counts as damaged when a real reason was recorded (non-empty and not
// the "-" placeholder the sheet uses for blank cells) or when its selling
// price is zero. Zero-priced passed items are therefore misclassified; this
// mirrors the backend's behavior and must not be changed unilaterally.
func InferStatus(reason string, sellingPrice float64) QCStatus {
	r := strings.TrimSpace(reason)
	if (r != "" && r != "-") || sellingPrice == 0 {
		return StatusDamage
	}
	return StatusPass
}

// ProductMaster is one row of the master inventory sheet, keyed by barcode.
// The backend treats the barcode as an upsert key; removal from the master set
// happens by exclusion from the next bulk replace.
type ProductMaster struct {
	Barcode     string  `json:"barcode"`
	ProductName string  `json:"productName"`
	CostPrice   float64 `json:"costPrice"`
	UnitPrice   float64 `json:"unitPrice,omitempty"`
	Stock       int     `json:"stock,omitempty"`
	LotNo       string  `json:"lotNo,omitempty"`
	ProductType string  `json:"productType,omitempty"`
	Image       string  `json:"image,omitempty"`
}

// QCRecord is a single inspection outcome. Records are append-only from this
// client's perspective: created on submission, read back via list fetch, never
// updated or deleted.
type QCRecord struct {
	ID           string   `json:"id"`
	Barcode      string   `json:"barcode"`
	ProductName  string   `json:"productName"`
	CostPrice    float64  `json:"costPrice"`
	SellingPrice float64  `json:"sellingPrice"`
	Status       QCStatus `json:"status"`
	Reason       string   `json:"reason,omitempty"`
	Remark       string   `json:"remark,omitempty"`
	ImageURLs    []string `json:"imageUrls"`
	Timestamp    string   `json:"timestamp"` // ISO-8601 instant
	InspectorID  string   `json:"inspectorId"`
	LotNo        string   `json:"lotNo,omitempty"`
	ProductType  string   `json:"productType,omitempty"`
	UnitPrice    float64  `json:"unitPrice,omitempty"`
}

// Time parses the record timestamp. Records with unparsable timestamps sort
// last (zero time) rather than failing the fetch.
func (r QCRecord) Time() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, r.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Inspector is an entry of the persisted users list consumed by the login
// screen. The gateway stores it verbatim; no authentication happens here.
type Inspector struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EditHistoryEntry records one mutation of master data for the audit trail
// shown in the UI. Entries live in the local store only.
type EditHistoryEntry struct {
	Action    string    `json:"action"` // save | bulk_replace | delete | submit_qc
	Barcode   string    `json:"barcode"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
