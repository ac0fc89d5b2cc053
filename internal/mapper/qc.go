// Package mapper translates the backend's loosely-typed row objects into the
// strongly-typed domain records and back. This file maps the QC log sheet.
package mapper

import (
	"encoding/json"
	"sort"

	"github.com/scanline/go-qc-backend/internal/domain"
)

// Synonymous header names per logical QC field, in preference order.
var (
	qcIDKeys           = []string{"id", "ID", "Row", "row"}
	qcBarcodeKeys      = []string{"barcode", "Barcode", "RMS Return Item ID"}
	qcNameKeys         = []string{"productName", "Product Name", "Name"}
	qcCostKeys         = []string{"costPrice", "Cost Price", "Cost"}
	qcSellingKeys      = []string{"sellingPrice", "Selling Price", "Sale Price"}
	qcReasonKeys       = []string{"reason", "Reason"}
	qcRemarkKeys       = []string{"remark", "Remark", "Note"}
	qcImagesKeys       = []string{"imageUrls", "Image URLs", "images", "Images"}
	qcTimestampKeys    = []string{"timestamp", "Timestamp", "Date"}
	qcInspectorKeys    = []string{"inspectorId", "Inspector ID", "Inspector", "inspector"}
	qcLotNoKeys        = []string{"lotNo", "Lot No", "Lot"}
	qcProductTypeKeys  = []string{"productType", "Product Type", "Type"}
	qcUnitPriceKeys    = []string{"unitPrice", "Unit Price"}
)

// QCRecord maps a single backend row to a QCRecord. The boolean is false for
// blank rows (missing both barcode and product name). Status is derived here
// and never read from the row: the sheet has no status column.
func QCRecord(row Row) (domain.QCRecord, bool) {
	rec := domain.QCRecord{
		ID:           str(pick(row, qcIDKeys...)),
		Barcode:      str(pick(row, qcBarcodeKeys...)),
		ProductName:  str(pick(row, qcNameKeys...)),
		CostPrice:    Number(pick(row, qcCostKeys...)),
		SellingPrice: Number(pick(row, qcSellingKeys...)),
		Reason:       str(pick(row, qcReasonKeys...)),
		Remark:       str(pick(row, qcRemarkKeys...)),
		ImageURLs:    ImageURLs(pick(row, qcImagesKeys...)),
		Timestamp:    str(pick(row, qcTimestampKeys...)),
		InspectorID:  str(pick(row, qcInspectorKeys...)),
		LotNo:        str(pick(row, qcLotNoKeys...)),
		ProductType:  NormalizeType(pick(row, qcProductTypeKeys...)),
		UnitPrice:    Number(pick(row, qcUnitPriceKeys...)),
	}
	if rec.Barcode == "" && rec.ProductName == "" {
		return domain.QCRecord{}, false
	}
	rec.Status = domain.InferStatus(rec.Reason, rec.SellingPrice)
	return rec, true
}

// QCRecords maps a row list, silently dropping blank rows.
func QCRecords(rows []Row) []domain.QCRecord {
	out := make([]domain.QCRecord, 0, len(rows))
	for _, r := range rows {
		if rec, ok := QCRecord(r); ok {
			out = append(out, rec)
		}
	}
	return out
}

// QCRow builds the write payload for saveQC. Image URLs are flattened to a
// JSON-encoded array string because the sheet stores them in a single cell,
// and an empty reason is written as the "-" placeholder the sheet uses for
// blank cells (the status derivation on read depends on it).
func QCRow(rec domain.QCRecord) Row {
	reason := rec.Reason
	if reason == "" {
		reason = "-"
	}
	images, err := json.Marshal(rec.ImageURLs)
	if err != nil || rec.ImageURLs == nil {
		images = []byte("[]")
	}
	return Row{
		"id":           rec.ID,
		"barcode":      rec.Barcode,
		"productName":  rec.ProductName,
		"costPrice":    rec.CostPrice,
		"sellingPrice": rec.SellingPrice,
		"reason":       reason,
		"remark":       rec.Remark,
		"imageUrls":    string(images),
		"timestamp":    rec.Timestamp,
		"inspectorId":  rec.InspectorID,
		"lotNo":        rec.LotNo,
		"productType":  rec.ProductType,
		"unitPrice":    rec.UnitPrice,
	}
}

// SortByTimestampDesc orders records newest-first in place and returns the
// slice. Ties keep their incoming order; unparsable timestamps sort last.
func SortByTimestampDesc(recs []domain.QCRecord) []domain.QCRecord {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Time().After(recs[j].Time())
	})
	return recs
}
