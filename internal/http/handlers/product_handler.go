// Product HTTP handlers.
//
// This file exposes REST endpoints for the master-product resource:
//   - GET    /products                (list, cache-aware)
//   - GET    /products/search        (ranked lookup by barcode or name)
//   - POST   /products               (create or update one row)
//   - PUT    /products/{barcode}     (update one row)
//   - POST   /products/bulk          (replace the whole sheet)
//   - DELETE /products/{barcode}     (delete one row)
//
// Handlers are transport-thin: they validate input, call the sync service,
// and translate results into HTTP responses. Fatal spreadsheet failures map
// onto 502 with a stable code so the client can react to misconfiguration.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/scanline/go-qc-backend/internal/domain"
	"github.com/scanline/go-qc-backend/internal/http/middleware"
	"github.com/scanline/go-qc-backend/internal/search"
	"github.com/scanline/go-qc-backend/internal/services"
	"github.com/scanline/go-qc-backend/internal/sheets"
	"github.com/scanline/go-qc-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ProductService defines master-data operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ProductService interface {
	// FetchMasterData returns the product list, serving the local cache
	// unless force (and, within the TTL window, skipThrottle) is set.
	FetchMasterData(ctx context.Context, force, skipThrottle bool) ([]domain.ProductMaster, error)
	// SaveProduct writes one product row to the sheet.
	SaveProduct(ctx context.Context, p domain.ProductMaster, actor string) error
	// BulkSaveProducts replaces the entire product sheet.
	BulkSaveProducts(ctx context.Context, ps []domain.ProductMaster, actor string) error
	// DeleteProduct removes one row and drops it from the cached snapshot.
	DeleteProduct(ctx context.Context, barcode, actor string) error
}

// InspectionService defines QC-log operations consumed by HTTP handlers.
type InspectionService interface {
	// FetchQCLogs returns inspection records sorted newest first.
	FetchQCLogs(ctx context.Context, force, skipThrottle bool) ([]domain.QCRecord, error)
	// SubmitQCAndRemoveProduct records an inspection and retires the item.
	SubmitQCAndRemoveProduct(ctx context.Context, rec domain.QCRecord) (domain.QCRecord, error)
}

// AdminService defines diagnostics, settings, and roster operations.
type AdminService interface {
	TestAPIConnection(ctx context.Context) error
	TestMasterDataAccess(ctx context.Context) error
	TestQCLogAccess(ctx context.Context) error
	ClearCache(ctx context.Context) error
	Stats(ctx context.Context) (master, qc services.CacheStats, err error)
	APIURL(ctx context.Context) string
	SetAPIURL(ctx context.Context, raw string) error
	Inspectors(ctx context.Context) ([]domain.Inspector, error)
	SetInspectors(ctx context.Context, list []domain.Inspector) error
	EditHistory(ctx context.Context) ([]domain.EditHistoryEntry, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for products, inspections, and admin
// surfaces. It depends on abstract service interfaces to keep transport
// concerns separate from sync logic.
type Handlers struct {
	products    ProductService
	inspections InspectionService
	admin       AdminService

	// db and idemTTL back the idempotent-submission bookkeeping.
	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services. The
// database handle is used only for idempotency records.
func New(products ProductService, inspections InspectionService, admin AdminService, db *gorm.DB, idemTTL time.Duration) *Handlers {
	return &Handlers{
		products:    products,
		inspections: inspections,
		admin:       admin,
		db:          db,
		idemTTL:     idemTTL,
	}
}

// actor returns the identity to attribute mutations to: the inspector header
// when present, otherwise the client IP.
func actor(c *gin.Context) string {
	if id := middleware.InspectorFrom(c); id != "" {
		return id
	}
	return c.ClientIP()
}

// refreshParams reads the force / skip_throttle query parameters shared by
// the list endpoints.
func refreshParams(c *gin.Context) (force, skipThrottle bool) {
	force = utils.BoolDefault(c.Query("force"), false)
	skipThrottle = utils.BoolDefault(c.Query("skip_throttle"), false)
	return
}

// failSync translates a sync-layer error into the HTTP envelope. Validation
// errors become 400s; fatal spreadsheet errors become 502s with a code naming
// the failure class; anything else (cancellation included) gets opCode on 502.
func failSync(c *gin.Context, err error, opCode string) {
	switch {
	case errors.Is(err, services.ErrEmptyBarcode),
		errors.Is(err, services.ErrReasonRequired),
		errors.Is(err, services.ErrInvalidURL),
		errors.Is(err, services.ErrEmptyInspector):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, sheets.ErrEndpointNotFound):
		fail(c, http.StatusBadGateway, ErrCodeEndpointNotConfigured, "spreadsheet endpoint not found")
	case errors.Is(err, sheets.ErrPermissionDenied):
		fail(c, http.StatusBadGateway, ErrCodePermissionDenied, "spreadsheet endpoint denied access")
	case errors.Is(err, sheets.ErrBackend):
		fail(c, http.StatusBadGateway, ErrCodeBackend, err.Error())
	default:
		fail(c, http.StatusBadGateway, opCode, err.Error())
	}
}

//
// DTOs
//

// ProductListResponse wraps the master list with its size.
type ProductListResponse struct {
	Products []domain.ProductMaster `json:"products"`
	Count    int                    `json:"count"`
}

// BulkReplaceRequest is the JSON payload for replacing the product sheet.
type BulkReplaceRequest struct {
	Products []domain.ProductMaster `json:"products"`
}

// SearchResult pairs a matched product with its relevance score.
type SearchResult struct {
	Product domain.ProductMaster `json:"product"`
	Score   float64              `json:"score"`
}

// SearchResponse wraps ranked lookup results.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

//
// Handlers
//

// ListProducts godoc
// @ID          listProducts
// @Summary     List master products
// @Description Returns the master product list. Serves the local cache unless force=true; forced refreshes inside the freshness window are throttled unless skip_throttle=true. Falls back to the stale cache when the spreadsheet is unreachable.
// @Tags        Products
// @Produce     json
//
// @Param       force          query  bool  false "Refresh from the spreadsheet"  default(false)
// @Param       skip_throttle  query  bool  false "Bypass the freshness window"   default(false)
//
// @Success     200  {object}  handlers.ProductListResponse
// @Failure     502  {object}  handlers.ErrorResponse  "Spreadsheet failure"
// @Router      /products [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	force, skipThrottle := refreshParams(c)
	products, err := h.products.FetchMasterData(c.Request.Context(), force, skipThrottle)
	if err != nil {
		failSync(c, err, ErrCodeFetchFailed)
		return
	}
	if products == nil {
		products = []domain.ProductMaster{}
	}
	ok(c, http.StatusOK, ProductListResponse{Products: products, Count: len(products)})
}

// SearchProducts godoc
// @ID          searchProducts
// @Summary     Search master products
// @Description Ranked lookup over the cached master list. Exact barcode matches rank first, then barcode prefixes, then name/type/lot token matches.
// @Tags        Products
// @Produce     json
//
// @Param       q      query  string  true   "Barcode or free text"  example(RMS-1001)
// @Param       limit  query  int     false  "Maximum results"       default(10)
//
// @Success     200  {object}  handlers.SearchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing query"
// @Failure     502  {object}  handlers.ErrorResponse  "Spreadsheet failure"
// @Router      /products/search [get]
func (h *Handlers) SearchProducts(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query parameter q is required")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 10)

	products, err := h.products.FetchMasterData(c.Request.Context(), false, false)
	if err != nil {
		failSync(c, err, ErrCodeFetchFailed)
		return
	}

	entries := make([]search.Entry, 0, len(products))
	for _, p := range products {
		entries = append(entries, search.Entry{
			Barcode: p.Barcode,
			Text:    strings.Join([]string{p.ProductName, p.ProductType, p.LotNo}, " "),
			Ref:     p,
		})
	}
	idx := search.NewIndex(entries)

	results := []SearchResult{}
	for _, r := range idx.TopK(q, limit) {
		p, okCast := r.Product.(domain.ProductMaster)
		if !okCast {
			continue
		}
		results = append(results, SearchResult{Product: p, Score: r.Score})
	}
	ok(c, http.StatusOK, SearchResponse{Results: results})
}

// CreateProduct godoc
// @ID          createProduct
// @Summary     Create or update a product
// @Description Writes one product row to the spreadsheet. The sheet upserts by barcode.
// @Tags        Products
// @Accept      json
// @Produce     json
//
// @Param       X-Inspector-ID  header  string  false "Inspector identity"  example(insp-7)
// @Param       body            body    domain.ProductMaster  true  "Product payload"
//
// @Success     201  {object}  domain.ProductMaster
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Spreadsheet failure"
// @Router      /products [post]
func (h *Handlers) CreateProduct(c *gin.Context) {
	var p domain.ProductMaster
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.products.SaveProduct(c.Request.Context(), p, actor(c)); err != nil {
		failSync(c, err, ErrCodeSaveFailed)
		return
	}
	ok(c, http.StatusCreated, p)
}

// UpdateProduct godoc
// @ID          updateProduct
// @Summary     Update a product
// @Description Writes one product row; the barcode in the path wins over any barcode in the body.
// @Tags        Products
// @Accept      json
// @Produce     json
//
// @Param       X-Inspector-ID  header  string  false "Inspector identity"  example(insp-7)
// @Param       barcode         path    string  true  "Product barcode"     example(RMS-1001)
// @Param       body            body    domain.ProductMaster  true  "Product payload"
//
// @Success     200  {object}  domain.ProductMaster
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Spreadsheet failure"
// @Router      /products/{barcode} [put]
func (h *Handlers) UpdateProduct(c *gin.Context) {
	var p domain.ProductMaster
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p.Barcode = c.Param("barcode")
	if err := h.products.SaveProduct(c.Request.Context(), p, actor(c)); err != nil {
		failSync(c, err, ErrCodeSaveFailed)
		return
	}
	ok(c, http.StatusOK, p)
}

// BulkReplaceProducts godoc
// @ID          bulkReplaceProducts
// @Summary     Replace the product sheet
// @Description Replaces all master-data rows with the given list. An empty list clears the sheet.
// @Tags        Products
// @Accept      json
// @Produce     json
//
// @Param       X-Inspector-ID  header  string  false "Inspector identity"  example(insp-7)
// @Param       body            body    handlers.BulkReplaceRequest  true  "Replacement list"
//
// @Success     200  {object}  handlers.ProductListResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Spreadsheet failure"
// @Router      /products/bulk [post]
func (h *Handlers) BulkReplaceProducts(c *gin.Context) {
	var req BulkReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.products.BulkSaveProducts(c.Request.Context(), req.Products, actor(c)); err != nil {
		failSync(c, err, ErrCodeSaveFailed)
		return
	}
	if req.Products == nil {
		req.Products = []domain.ProductMaster{}
	}
	ok(c, http.StatusOK, ProductListResponse{Products: req.Products, Count: len(req.Products)})
}

// DeleteProduct godoc
// @ID          deleteProduct
// @Summary     Delete a product
// @Description Removes one row from the spreadsheet and drops it from the cached snapshot.
// @Tags        Products
// @Produce     json
//
// @Param       X-Inspector-ID  header  string  false "Inspector identity"  example(insp-7)
// @Param       barcode         path    string  true  "Product barcode"     example(RMS-1001)
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Spreadsheet failure"
// @Router      /products/{barcode} [delete]
func (h *Handlers) DeleteProduct(c *gin.Context) {
	if err := h.products.DeleteProduct(c.Request.Context(), c.Param("barcode"), actor(c)); err != nil {
		failSync(c, err, ErrCodeSaveFailed)
		return
	}
	noContent(c)
}
