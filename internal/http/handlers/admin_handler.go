// Admin HTTP handlers.
//
// This file exposes the operational surface used by the settings screen of
// the scanning app:
//   - GET    /diagnostics/connection    (probe the endpoint)
//   - GET    /diagnostics/master-data  (probe the product sheet)
//   - GET    /diagnostics/qc-logs     (probe the QC sheet)
//   - GET    /cache                   (snapshot stats)
//   - DELETE /cache                   (drop both snapshots)
//   - GET    /settings/endpoint       (effective Apps Script URL)
//   - PUT    /settings/endpoint       (override or reset the URL)
//   - GET    /inspectors              (roster)
//   - PUT    /inspectors              (replace roster)
//   - GET    /history                 (edit audit trail)
//
// Probes run a single bounded request and never retry, so a dead endpoint
// answers quickly instead of hanging the settings screen.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scanline/go-qc-backend/internal/domain"
	"github.com/scanline/go-qc-backend/internal/services"
)

//
// DTOs
//

// DiagnosticsResponse reports one probe outcome. Error carries the failure
// detail when Ok is false.
type DiagnosticsResponse struct {
	Check string `json:"check" example:"master-data"`
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// CacheStatsResponse reports both snapshot states.
type CacheStatsResponse struct {
	Master services.CacheStats `json:"master"`
	QCLogs services.CacheStats `json:"qcLogs"`
}

// EndpointResponse carries the effective Apps Script URL.
type EndpointResponse struct {
	URL string `json:"url" example:"https://script.google.com/macros/s/XXXX/exec"`
}

// EndpointRequest is the JSON payload for overriding the endpoint. An empty
// URL resets to the configured default.
type EndpointRequest struct {
	URL string `json:"url" example:"https://script.google.com/macros/s/XXXX/exec"`
}

// InspectorsRequest is the JSON payload for replacing the roster.
type InspectorsRequest struct {
	Inspectors []domain.Inspector `json:"inspectors"`
}

//
// Handlers
//

// probe runs one diagnostic check and renders the shared response shape.
// Probe failures are reported in-band with 200 so the settings screen can
// show all three lights from one round of requests.
func (h *Handlers) probe(c *gin.Context, check string, run func() error) {
	resp := DiagnosticsResponse{Check: check, Ok: true}
	if err := run(); err != nil {
		resp.Ok = false
		resp.Error = err.Error()
	}
	ok(c, http.StatusOK, resp)
}

// TestConnection godoc
// @ID          testConnection
// @Summary     Probe the spreadsheet endpoint
// @Description Performs a single bounded request against the endpoint without retrying.
// @Tags        Diagnostics
// @Produce     json
// @Success     200  {object}  handlers.DiagnosticsResponse
// @Router      /diagnostics/connection [get]
func (h *Handlers) TestConnection(c *gin.Context) {
	h.probe(c, "connection", func() error { return h.admin.TestAPIConnection(c.Request.Context()) })
}

// TestMasterData godoc
// @ID          testMasterData
// @Summary     Probe master-data access
// @Description Performs a single bounded read of the product sheet.
// @Tags        Diagnostics
// @Produce     json
// @Success     200  {object}  handlers.DiagnosticsResponse
// @Router      /diagnostics/master-data [get]
func (h *Handlers) TestMasterData(c *gin.Context) {
	h.probe(c, "master-data", func() error { return h.admin.TestMasterDataAccess(c.Request.Context()) })
}

// TestQCLogs godoc
// @ID          testQCLogs
// @Summary     Probe QC-log access
// @Description Performs a single bounded read of the QC sheet.
// @Tags        Diagnostics
// @Produce     json
// @Success     200  {object}  handlers.DiagnosticsResponse
// @Router      /diagnostics/qc-logs [get]
func (h *Handlers) TestQCLogs(c *gin.Context) {
	h.probe(c, "qc-logs", func() error { return h.admin.TestQCLogAccess(c.Request.Context()) })
}

// CacheStats godoc
// @ID          cacheStats
// @Summary     Report cache snapshot stats
// @Tags        Admin
// @Produce     json
// @Success     200  {object}  handlers.CacheStatsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cache [get]
func (h *Handlers) CacheStats(c *gin.Context) {
	master, qc, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, CacheStatsResponse{Master: master, QCLogs: qc})
}

// ClearCache godoc
// @ID          clearCache
// @Summary     Drop both cache snapshots
// @Description Clears the master-data and QC-log snapshots. Settings, the roster, and the edit history are untouched.
// @Tags        Admin
// @Success     204  {string}  string  "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /cache [delete]
func (h *Handlers) ClearCache(c *gin.Context) {
	if err := h.admin.ClearCache(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// GetEndpoint godoc
// @ID          getEndpoint
// @Summary     Report the effective Apps Script URL
// @Tags        Settings
// @Produce     json
// @Success     200  {object}  handlers.EndpointResponse
// @Router      /settings/endpoint [get]
func (h *Handlers) GetEndpoint(c *gin.Context) {
	ok(c, http.StatusOK, EndpointResponse{URL: h.admin.APIURL(c.Request.Context())})
}

// SetEndpoint godoc
// @ID          setEndpoint
// @Summary     Override the Apps Script URL
// @Description Stores an endpoint override used by all subsequent sync requests. An empty URL resets to the configured default.
// @Tags        Settings
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.EndpointRequest  true  "New endpoint"
// @Success     200  {object}  handlers.EndpointResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid URL"
// @Router      /settings/endpoint [put]
func (h *Handlers) SetEndpoint(c *gin.Context) {
	var req EndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.admin.SetAPIURL(c.Request.Context(), strings.TrimSpace(req.URL)); err != nil {
		failSync(c, err, ErrCodeSaveFailed)
		return
	}
	ok(c, http.StatusOK, EndpointResponse{URL: h.admin.APIURL(c.Request.Context())})
}

// ListInspectors godoc
// @ID          listInspectors
// @Summary     List the inspector roster
// @Tags        Settings
// @Produce     json
// @Success     200  {object}  handlers.InspectorsRequest
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /inspectors [get]
func (h *Handlers) ListInspectors(c *gin.Context) {
	list, err := h.admin.Inspectors(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, InspectorsRequest{Inspectors: list})
}

// SetInspectors godoc
// @ID          setInspectors
// @Summary     Replace the inspector roster
// @Tags        Settings
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.InspectorsRequest  true  "New roster"
// @Success     200  {object}  handlers.InspectorsRequest
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /inspectors [put]
func (h *Handlers) SetInspectors(c *gin.Context) {
	var req InspectorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.admin.SetInspectors(c.Request.Context(), req.Inspectors); err != nil {
		failSync(c, err, ErrCodeSaveFailed)
		return
	}
	ok(c, http.StatusOK, req)
}

// EditHistory godoc
// @ID          editHistory
// @Summary     List the edit audit trail
// @Description Returns retained mutation records, newest first.
// @Tags        Admin
// @Produce     json
// @Success     200  {array}   domain.EditHistoryEntry
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /history [get]
func (h *Handlers) EditHistory(c *gin.Context) {
	entries, err := h.admin.EditHistory(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, entries)
}
