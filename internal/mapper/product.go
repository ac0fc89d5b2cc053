// Package mapper translates the backend's loosely-typed row objects into the
// strongly-typed domain records and back. This file maps the master
// inventory sheet.
package mapper

import (
	"github.com/scanline/go-qc-backend/internal/domain"
)

// Synonymous header names per logical master-data field, in preference order.
// The first column set reflects the original RMS export; the camelCase keys
// come from rows written back by this client.
var (
	productBarcodeKeys = []string{"RMS Return Item ID", "Barcode", "barcode", "Return Item ID"}
	productNameKeys    = []string{"Product Name", "productName", "Name", "name"}
	costPriceKeys      = []string{"Cost Price", "costPrice", "CostPrice", "Cost", "cost"}
	unitPriceKeys      = []string{"Unit Price", "unitPrice", "UnitPrice", "Price"}
	stockKeys          = []string{"Stock", "stock", "Qty", "qty"}
	lotNoKeys          = []string{"Lot No", "lotNo", "LotNo", "Lot"}
	productTypeKeys    = []string{"Product Type", "productType", "Type"}
	imageKeys          = []string{"Image", "image", "Image URL", "imageUrl"}
)

// Product maps a single backend row to a ProductMaster. The boolean is false
// for blank/malformed rows (missing both barcode and product name), which
// callers must drop.
func Product(row Row) (domain.ProductMaster, bool) {
	p := domain.ProductMaster{
		Barcode:     str(pick(row, productBarcodeKeys...)),
		ProductName: str(pick(row, productNameKeys...)),
		CostPrice:   Number(pick(row, costPriceKeys...)),
		UnitPrice:   Number(pick(row, unitPriceKeys...)),
		Stock:       Integer(pick(row, stockKeys...)),
		LotNo:       str(pick(row, lotNoKeys...)),
		ProductType: NormalizeType(pick(row, productTypeKeys...)),
		Image:       str(pick(row, imageKeys...)),
	}
	if p.Barcode == "" && p.ProductName == "" {
		return domain.ProductMaster{}, false
	}
	return p, true
}

// Products maps a row list, silently dropping blank rows.
func Products(rows []Row) []domain.ProductMaster {
	out := make([]domain.ProductMaster, 0, len(rows))
	for _, r := range rows {
		if p, ok := Product(r); ok {
			out = append(out, p)
		}
	}
	return out
}

// ProductRow builds the write payload for saveProduct/replaceProducts. The
// backend upserts on the barcode and accepts the camelCase keys as-is.
func ProductRow(p domain.ProductMaster) Row {
	return Row{
		"barcode":     p.Barcode,
		"productName": p.ProductName,
		"costPrice":   p.CostPrice,
		"unitPrice":   p.UnitPrice,
		"stock":       p.Stock,
		"lotNo":       p.LotNo,
		"productType": p.ProductType,
		"image":       p.Image,
	}
}

// ProductRows maps a record list to the bulk replace payload.
func ProductRows(ps []domain.ProductMaster) []Row {
	out := make([]Row, 0, len(ps))
	for _, p := range ps {
		out = append(out, ProductRow(p))
	}
	return out
}
