package mapper

import (
	"testing"

	"github.com/scanline/go-qc-backend/internal/domain"
)

func TestQCRecord_StatusDerivation(t *testing.T) {
	cases := []struct {
		name string
		row  Row
		want domain.QCStatus
	}{
		{"damage reason", Row{"barcode": "B1", "reason": "cracked", "sellingPrice": "50"}, domain.StatusDamage},
		{"dash reason nonzero price", Row{"barcode": "B1", "reason": "-", "sellingPrice": "50"}, domain.StatusPass},
		{"zero selling price", Row{"barcode": "B1", "reason": "-", "sellingPrice": "0"}, domain.StatusDamage},
		{"absent selling price", Row{"barcode": "B1"}, domain.StatusDamage}, // coerces to 0
		{"clean pass", Row{"barcode": "B1", "sellingPrice": 25.0}, domain.StatusPass},
	}
	for _, tc := range cases {
		rec, ok := QCRecord(tc.row)
		if !ok {
			t.Fatalf("%s: row should map", tc.name)
		}
		if rec.Status != tc.want {
			t.Errorf("%s: status = %q; want %q", tc.name, rec.Status, tc.want)
		}
	}
}

func TestQCRecord_ImageAndHeaderVariants(t *testing.T) {
	rec, ok := QCRecord(Row{
		"Barcode":       "B2",
		"Product Name":  "Kettle",
		"Selling Price": "1,000",
		"Image URLs":    `["http://a/1.jpg","http://a/2.jpg"]`,
		"Inspector ID":  "insp-1",
		"Timestamp":     "2025-05-01T08:00:00Z",
	})
	if !ok {
		t.Fatalf("row should map")
	}
	if rec.Barcode != "B2" || rec.ProductName != "Kettle" || rec.SellingPrice != 1000 {
		t.Fatalf("header variants misread: %+v", rec)
	}
	if len(rec.ImageURLs) != 2 || rec.ImageURLs[0] != "http://a/1.jpg" {
		t.Fatalf("image urls misread: %v", rec.ImageURLs)
	}
	if rec.InspectorID != "insp-1" {
		t.Fatalf("inspector misread: %q", rec.InspectorID)
	}
	if rec.Status != domain.StatusPass {
		t.Fatalf("no reason and nonzero price must be Pass, got %q", rec.Status)
	}
}

func TestQCRecords_DropsBlankRows(t *testing.T) {
	recs := QCRecords([]Row{
		{"barcode": "B1", "sellingPrice": 10.0},
		{"remark": "stray note"},
	})
	if len(recs) != 1 || recs[0].Barcode != "B1" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestQCRow_WritePayload(t *testing.T) {
	row := QCRow(domain.QCRecord{
		Barcode:      "B1",
		ProductName:  "Item",
		SellingPrice: 30,
		ImageURLs:    []string{"http://a/1.jpg"},
		InspectorID:  "insp-2",
	})
	if row["reason"] != "-" {
		t.Fatalf("empty reason must be written as \"-\", got %v", row["reason"])
	}
	if row["imageUrls"] != `["http://a/1.jpg"]` {
		t.Fatalf("image urls must be JSON-encoded: %v", row["imageUrls"])
	}

	// Writing then reading back must keep the derived status consistent.
	rec, ok := QCRecord(row)
	if !ok {
		t.Fatalf("write payload should map back")
	}
	if rec.Status != domain.StatusPass {
		t.Fatalf("round-tripped status = %q; want Pass", rec.Status)
	}
}

func TestSortByTimestampDesc(t *testing.T) {
	recs := []domain.QCRecord{
		{ID: "old", Barcode: "B1", Timestamp: "2025-01-01T00:00:00Z"},
		{ID: "bad", Barcode: "B2", Timestamp: "garbage"},
		{ID: "new", Barcode: "B3", Timestamp: "2025-06-01T00:00:00Z"},
	}
	sorted := SortByTimestampDesc(recs)
	if sorted[0].ID != "new" || sorted[1].ID != "old" || sorted[2].ID != "bad" {
		t.Fatalf("unexpected order: %s, %s, %s", sorted[0].ID, sorted[1].ID, sorted[2].ID)
	}
}
