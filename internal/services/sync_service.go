// Package services – SyncService
//
// This file implements the SyncService, the orchestrator between the local
// key/value store and the spreadsheet endpoint. It owns cache freshness policy
// (TTL windows, force/throttle semantics), stale-cache fallback when the
// remote is unreachable, and the write paths that keep the local view of
// master data consistent after saves, deletes, and QC submissions.
//
// Validation errors (e.g., ErrEmptyBarcode) are returned for predictable
// cases so handlers can map them to HTTP results consistently; errors from
// the sheets client pass through unchanged so handlers can distinguish fatal
// endpoint failures from transient ones.
package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scanline/go-qc-backend/internal/config"
	"github.com/scanline/go-qc-backend/internal/domain"
	"github.com/scanline/go-qc-backend/internal/mapper"
	"github.com/scanline/go-qc-backend/internal/sheets"
	"github.com/scanline/go-qc-backend/internal/store"
)

// Remote is the spreadsheet client contract required by SyncService.
type Remote interface {
	// Call performs a classified, retried request against the endpoint.
	Call(ctx context.Context, action, method string, body map[string]any) (json.RawMessage, error)

	// Probe performs a single bounded request for diagnostics.
	Probe(ctx context.Context, action string) error
}

// SyncService coordinates reads and writes between the local store and the
// spreadsheet endpoint.
type SyncService struct {
	// Store is the local key/value store backing caches and settings.
	Store *store.Store
	// Remote is the spreadsheet client.
	Remote Remote

	// MasterTTL is the freshness window for the master-data cache.
	MasterTTL time.Duration
	// QCLogTTL is the freshness window for the QC-log cache.
	QCLogTTL time.Duration
	// HistoryLimit caps retained edit-history entries.
	HistoryLimit int
	// DefaultURL is the endpoint used when no override is stored.
	DefaultURL string

	// Log emits structured fallback and refresh events.
	Log zerolog.Logger
	// Now is injectable for tests.
	Now func() time.Time
}

// NewSyncService constructs a SyncService from configuration.
func NewSyncService(st *store.Store, remote Remote, cfg config.Config, log zerolog.Logger) *SyncService {
	return &SyncService{
		Store:        st,
		Remote:       remote,
		MasterTTL:    cfg.MasterCacheTTL,
		QCLogTTL:     cfg.QCLogCacheTTL,
		HistoryLimit: cfg.EditHistoryLimit,
		DefaultURL:   cfg.Sheets.DefaultURL,
		Log:          log,
		Now:          time.Now,
	}
}

// FetchMasterData returns the master product list.
//
// A cached snapshot is returned immediately unless force is set. A forced
// refresh within the freshness window is throttled back to the cache unless
// skipThrottle is also set. When the remote fetch fails and a snapshot
// exists, the stale snapshot is served instead of the error.
func (s *SyncService) FetchMasterData(ctx context.Context, force, skipThrottle bool) ([]domain.ProductMaster, error) {
	var cached []domain.ProductMaster
	at, ok, err := s.Store.ReadSnapshot(ctx, store.KeyMasterCache, store.KeyMasterTS, &cached)
	if err != nil {
		s.Log.Warn().Err(err).Msg("master cache read failed, treating as miss")
		ok = false
	}
	if ok && !force {
		return cached, nil
	}
	if ok && !skipThrottle && s.Now().Sub(at) < s.MasterTTL {
		return cached, nil
	}

	raw, err := s.Remote.Call(ctx, "getProducts", http.MethodGet, nil)
	if err != nil {
		return s.fallbackProducts(cached, ok, err)
	}
	rows, err := sheets.Rows(raw)
	if err != nil {
		return s.fallbackProducts(cached, ok, err)
	}
	products := mapper.Products(rows)
	if err := s.Store.WriteSnapshot(ctx, store.KeyMasterCache, store.KeyMasterTS, products, s.Now()); err != nil {
		s.Log.Warn().Err(err).Msg("master cache write failed")
	}
	return products, nil
}

func (s *SyncService) fallbackProducts(cached []domain.ProductMaster, ok bool, err error) ([]domain.ProductMaster, error) {
	if ok {
		s.Log.Warn().Err(err).Int("cached", len(cached)).Msg("master fetch failed, serving stale cache")
		return cached, nil
	}
	return nil, err
}

// FetchQCLogs returns QC records sorted newest first. Cache and fallback
// semantics mirror FetchMasterData with the QC freshness window.
func (s *SyncService) FetchQCLogs(ctx context.Context, force, skipThrottle bool) ([]domain.QCRecord, error) {
	var cached []domain.QCRecord
	at, ok, err := s.Store.ReadSnapshot(ctx, store.KeyQCCache, store.KeyQCTS, &cached)
	if err != nil {
		s.Log.Warn().Err(err).Msg("qc cache read failed, treating as miss")
		ok = false
	}
	if ok && !force {
		return cached, nil
	}
	if ok && !skipThrottle && s.Now().Sub(at) < s.QCLogTTL {
		return cached, nil
	}

	raw, err := s.Remote.Call(ctx, "getQCLogs", http.MethodGet, nil)
	if err != nil {
		return s.fallbackQC(cached, ok, err)
	}
	rows, err := sheets.Rows(raw)
	if err != nil {
		return s.fallbackQC(cached, ok, err)
	}
	recs := mapper.SortByTimestampDesc(mapper.QCRecords(rows))
	if err := s.Store.WriteSnapshot(ctx, store.KeyQCCache, store.KeyQCTS, recs, s.Now()); err != nil {
		s.Log.Warn().Err(err).Msg("qc cache write failed")
	}
	return recs, nil
}

func (s *SyncService) fallbackQC(cached []domain.QCRecord, ok bool, err error) ([]domain.QCRecord, error) {
	if ok {
		s.Log.Warn().Err(err).Int("cached", len(cached)).Msg("qc fetch failed, serving stale cache")
		return cached, nil
	}
	return nil, err
}

// SaveProduct writes a single product row to the sheet. The master cache is
// left untouched; callers refresh when they need the authoritative list.
func (s *SyncService) SaveProduct(ctx context.Context, p domain.ProductMaster, actor string) error {
	if strings.TrimSpace(p.Barcode) == "" {
		return ErrEmptyBarcode
	}
	if _, err := s.Remote.Call(ctx, "saveProduct", http.MethodPost, mapper.ProductRow(p)); err != nil {
		return err
	}
	s.appendHistory(ctx, "save", p.Barcode, actor)
	return nil
}

// BulkSaveProducts replaces the entire product sheet with the given list.
func (s *SyncService) BulkSaveProducts(ctx context.Context, ps []domain.ProductMaster, actor string) error {
	body := map[string]any{"products": mapper.ProductRows(ps)}
	if _, err := s.Remote.Call(ctx, "replaceProducts", http.MethodPost, body); err != nil {
		return err
	}
	s.appendHistory(ctx, "bulk_replace", "", actor)
	return nil
}

// DeleteProduct removes a product row from the sheet and optimistically drops
// it from the cached master snapshot so the UI reflects the delete before the
// next refresh.
func (s *SyncService) DeleteProduct(ctx context.Context, barcode, actor string) error {
	if strings.TrimSpace(barcode) == "" {
		return ErrEmptyBarcode
	}
	body := map[string]any{"barcode": barcode}
	if _, err := s.Remote.Call(ctx, "deleteProduct", http.MethodPost, body); err != nil {
		return err
	}
	s.removeFromMasterCache(ctx, barcode)
	s.appendHistory(ctx, "delete", barcode, actor)
	return nil
}

// SubmitQCAndRemoveProduct records an inspection and retires the inspected
// item: the QC row is appended to the sheet, the QC cache is invalidated, and
// the product is deleted from the pending sheet and the cached master list.
// The returned record carries any server-assigned identifier.
func (s *SyncService) SubmitQCAndRemoveProduct(ctx context.Context, rec domain.QCRecord) (domain.QCRecord, error) {
	if strings.TrimSpace(rec.Barcode) == "" {
		return rec, ErrEmptyBarcode
	}
	rec.Status = domain.InferStatus(rec.Reason, rec.SellingPrice)
	if rec.Timestamp == "" {
		rec.Timestamp = s.Now().UTC().Format(time.RFC3339Nano)
	}
	if len(rec.ImageURLs) > 5 {
		rec.ImageURLs = rec.ImageURLs[:5]
	}

	raw, err := s.Remote.Call(ctx, "saveQC", http.MethodPost, mapper.QCRow(rec))
	if err != nil {
		return rec, err
	}
	var reply struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(raw, &reply) == nil && reply.ID != "" {
		rec.ID = reply.ID
	}

	if err := s.Store.ClearSnapshot(ctx, store.KeyQCCache, store.KeyQCTS); err != nil {
		s.Log.Warn().Err(err).Msg("qc cache invalidation failed")
	}

	// The submission itself succeeded; a failed removal leaves the item on
	// the pending sheet for the next refresh rather than failing the whole op.
	body := map[string]any{"barcode": rec.Barcode}
	if _, err := s.Remote.Call(ctx, "deleteProduct", http.MethodPost, body); err != nil {
		s.Log.Warn().Err(err).Str("barcode", rec.Barcode).Msg("pending-item removal failed after submission")
	} else {
		s.removeFromMasterCache(ctx, rec.Barcode)
	}
	s.appendHistory(ctx, "submit_qc", rec.Barcode, rec.InspectorID)
	return rec, nil
}

func (s *SyncService) removeFromMasterCache(ctx context.Context, barcode string) {
	err := s.Store.Mutate(ctx, store.KeyMasterCache, func(raw string, ok bool) (string, bool, error) {
		if !ok {
			return "", false, nil
		}
		var products []domain.ProductMaster
		if err := json.Unmarshal([]byte(raw), &products); err != nil {
			return raw, true, nil
		}
		kept := products[:0]
		for _, p := range products {
			if p.Barcode != barcode {
				kept = append(kept, p)
			}
		}
		out, err := json.Marshal(kept)
		if err != nil {
			return raw, true, nil
		}
		return string(out), true, nil
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("barcode", barcode).Msg("master cache removal failed")
	}
}

func (s *SyncService) appendHistory(ctx context.Context, action, barcode, actor string) {
	entry := domain.EditHistoryEntry{
		Action:    action,
		Barcode:   barcode,
		Actor:     actor,
		Timestamp: s.Now().UTC(),
	}
	err := s.Store.Mutate(ctx, store.KeyEditHistory, func(raw string, ok bool) (string, bool, error) {
		var entries []domain.EditHistoryEntry
		if ok {
			if err := json.Unmarshal([]byte(raw), &entries); err != nil {
				entries = nil
			}
		}
		entries = append([]domain.EditHistoryEntry{entry}, entries...)
		if s.HistoryLimit > 0 && len(entries) > s.HistoryLimit {
			entries = entries[:s.HistoryLimit]
		}
		out, err := json.Marshal(entries)
		if err != nil {
			return raw, ok, err
		}
		return string(out), true, nil
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("action", action).Msg("edit history append failed")
	}
}

// EditHistory returns the retained audit trail, newest first.
func (s *SyncService) EditHistory(ctx context.Context) ([]domain.EditHistoryEntry, error) {
	var entries []domain.EditHistoryEntry
	if _, err := s.Store.GetJSON(ctx, store.KeyEditHistory, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.EditHistoryEntry{}
	}
	return entries, nil
}

// clampURL validates an endpoint override before it is stored.
func clampURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}
	return raw, nil
}
