// Inspection HTTP handlers.
//
// This file exposes REST endpoints for the QC-log resource:
//   - GET  /qc-logs       (list, cache-aware, newest first)
//   - POST /inspections   (submit an inspection and retire the item)
//
// Submissions are idempotent: when the client sends an Idempotency-Key, a
// completed submission for the same (inspector, barcode, key) tuple is served
// from the local record instead of re-running the sheet writes.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scanline/go-qc-backend/internal/domain"
	"github.com/scanline/go-qc-backend/internal/http/middleware"
	"github.com/scanline/go-qc-backend/internal/services"
	"github.com/scanline/go-qc-backend/internal/store"
)

//
// DTOs
//

// QCLogListResponse wraps the inspection log with its size.
type QCLogListResponse struct {
	Records []domain.QCRecord `json:"records"`
	Count   int               `json:"count"`
}

// SubmitInspectionRequest is the JSON payload for recording an inspection.
// Status is optional: the server infers it from reason and sellingPrice, but
// an explicit "Damage" with neither a reason nor a zero price is rejected
// rather than silently downgraded to "Pass".
type SubmitInspectionRequest struct {
	Barcode      string   `json:"barcode" binding:"required" example:"RMS-1001"`
	ProductName  string   `json:"productName" example:"Wool scarf"`
	CostPrice    float64  `json:"costPrice" example:"450"`
	SellingPrice float64  `json:"sellingPrice" example:"1250.5"`
	Status       string   `json:"status,omitempty" example:"Pass"`
	Reason       string   `json:"reason,omitempty" example:"torn packaging"`
	Remark       string   `json:"remark,omitempty"`
	ImageURLs    []string `json:"imageUrls,omitempty"`
	InspectorID  string   `json:"inspectorId,omitempty" example:"insp-7"`
	LotNo        string   `json:"lotNo,omitempty"`
	ProductType  string   `json:"productType,omitempty"`
	UnitPrice    float64  `json:"unitPrice,omitempty"`
}

// SubmitInspectionResponse carries the persisted record. Replayed is true
// when the response was served from an idempotency record instead of
// re-running the sheet writes.
type SubmitInspectionResponse struct {
	Record   domain.QCRecord `json:"record"`
	Replayed bool            `json:"replayed"`
}

//
// Handlers
//

// ListQCLogs godoc
// @ID          listQCLogs
// @Summary     List inspection records
// @Description Returns QC records sorted newest first. Serves the local cache unless force=true; falls back to the stale cache when the spreadsheet is unreachable.
// @Tags        Inspections
// @Produce     json
//
// @Param       force          query  bool  false "Refresh from the spreadsheet"  default(false)
// @Param       skip_throttle  query  bool  false "Bypass the freshness window"   default(false)
//
// @Success     200  {object}  handlers.QCLogListResponse
// @Failure     502  {object}  handlers.ErrorResponse  "Spreadsheet failure"
// @Router      /qc-logs [get]
func (h *Handlers) ListQCLogs(c *gin.Context) {
	force, skipThrottle := refreshParams(c)
	records, err := h.inspections.FetchQCLogs(c.Request.Context(), force, skipThrottle)
	if err != nil {
		failSync(c, err, ErrCodeFetchFailed)
		return
	}
	if records == nil {
		records = []domain.QCRecord{}
	}
	ok(c, http.StatusOK, QCLogListResponse{Records: records, Count: len(records)})
}

// SubmitInspection godoc
// @ID          submitInspection
// @Summary     Submit an inspection
// @Description Records a QC outcome on the spreadsheet, invalidates the QC cache, and retires the inspected item from the pending sheet. Retried submissions carrying the same Idempotency-Key are served from the stored result.
// @Tags        Inspections
// @Accept      json
// @Produce     json
//
// @Param       X-Inspector-ID   header  string  false "Inspector identity"             example(insp-7)
// @Param       Idempotency-Key  header  string  false "Safe-retry key for this scan"   example(scan-8f14e45f)
// @Param       body             body    handlers.SubmitInspectionRequest  true  "Inspection payload"
//
// @Success     201  {object}  handlers.SubmitInspectionResponse
// @Success     200  {object}  handlers.SubmitInspectionResponse  "Idempotent replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Spreadsheet failure"
// @Router      /inspections [post]
func (h *Handlers) SubmitInspection(c *gin.Context) {
	var req SubmitInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: barcode is required")
		return
	}

	rec := domain.QCRecord{
		Barcode:      strings.TrimSpace(req.Barcode),
		ProductName:  req.ProductName,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		Reason:       req.Reason,
		Remark:       req.Remark,
		ImageURLs:    req.ImageURLs,
		InspectorID:  req.InspectorID,
		LotNo:        req.LotNo,
		ProductType:  req.ProductType,
		UnitPrice:    req.UnitPrice,
	}
	if rec.InspectorID == "" {
		rec.InspectorID = middleware.InspectorFrom(c)
	}

	// An explicit Damage claim must be backed by a reason or a zero price,
	// otherwise the inference would record it as Pass.
	if domain.QCStatus(req.Status) == domain.StatusDamage &&
		domain.InferStatus(rec.Reason, rec.SellingPrice) != domain.StatusDamage {
		failSync(c, services.ErrReasonRequired, ErrCodeSaveFailed)
		return
	}

	ctx := c.Request.Context()
	key, hasKey := middleware.GetIdempotencyKey(c)
	inspector := rec.InspectorID
	if inspector == "" {
		inspector = actor(c)
	}

	if hasKey && h.db != nil {
		if prior, err := store.GetIdempotency(ctx, h.db, inspector, rec.Barcode, key, time.Now().UTC()); err == nil {
			rec.ID = prior.RecordID
			rec.Status = domain.InferStatus(rec.Reason, rec.SellingPrice)
			ok(c, prior.Status, SubmitInspectionResponse{Record: rec, Replayed: true})
			return
		}
	}

	saved, err := h.inspections.SubmitQCAndRemoveProduct(ctx, rec)
	if err != nil {
		failSync(c, err, ErrCodeSaveFailed)
		return
	}

	if hasKey && h.db != nil {
		_, err := store.CreateIdempotency(ctx, h.db, inspector, saved.Barcode, key, saved.ID, http.StatusCreated, h.idemTTL)
		if err != nil && !errors.Is(err, store.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record write failed")
		}
	}

	ok(c, http.StatusCreated, SubmitInspectionResponse{Record: saved, Replayed: false})
}
