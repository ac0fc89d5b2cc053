package services

import (
	"context"
	"strings"
	"time"

	"github.com/scanline/go-qc-backend/internal/domain"
	"github.com/scanline/go-qc-backend/internal/store"
)

// CacheStats summarizes one cached snapshot for the diagnostics surface.
type CacheStats struct {
	Entries   int        `json:"entries"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
}

// APIURL returns the effective endpoint: the stored override when present,
// otherwise the configured default.
func (s *SyncService) APIURL(ctx context.Context) string {
	var override string
	ok, err := s.Store.GetJSON(ctx, store.KeyAPIURL, &override)
	if err != nil {
		s.Log.Warn().Err(err).Msg("endpoint override read failed, using default")
		return s.DefaultURL
	}
	if ok && strings.TrimSpace(override) != "" {
		return override
	}
	return s.DefaultURL
}

// SetAPIURL stores an endpoint override. An empty value clears the override
// so the configured default applies again.
func (s *SyncService) SetAPIURL(ctx context.Context, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return s.Store.Delete(ctx, store.KeyAPIURL)
	}
	u, err := clampURL(raw)
	if err != nil {
		return err
	}
	return s.Store.PutJSON(ctx, store.KeyAPIURL, u)
}

// TestAPIConnection performs a single bounded probe against the endpoint.
func (s *SyncService) TestAPIConnection(ctx context.Context) error {
	return s.Remote.Probe(ctx, "testConnection")
}

// TestMasterDataAccess probes the master-data sheet specifically.
func (s *SyncService) TestMasterDataAccess(ctx context.Context) error {
	return s.Remote.Probe(ctx, "getProducts")
}

// TestQCLogAccess probes the QC-log sheet specifically.
func (s *SyncService) TestQCLogAccess(ctx context.Context) error {
	return s.Remote.Probe(ctx, "getQCLogs")
}

// ClearCache drops both snapshots. Settings, inspectors, and the edit
// history are untouched.
func (s *SyncService) ClearCache(ctx context.Context) error {
	if err := s.Store.ClearSnapshot(ctx, store.KeyMasterCache, store.KeyMasterTS); err != nil {
		return err
	}
	return s.Store.ClearSnapshot(ctx, store.KeyQCCache, store.KeyQCTS)
}

// Stats reports entry counts and fetch times for both caches.
func (s *SyncService) Stats(ctx context.Context) (master, qc CacheStats, err error) {
	n, at, err := s.Store.SnapshotStats(ctx, store.KeyMasterCache, store.KeyMasterTS)
	if err != nil {
		return master, qc, err
	}
	master = CacheStats{Entries: n, FetchedAt: at}
	n, at, err = s.Store.SnapshotStats(ctx, store.KeyQCCache, store.KeyQCTS)
	if err != nil {
		return master, qc, err
	}
	qc = CacheStats{Entries: n, FetchedAt: at}
	return master, qc, nil
}

// Inspectors returns the locally stored inspector roster.
func (s *SyncService) Inspectors(ctx context.Context) ([]domain.Inspector, error) {
	var list []domain.Inspector
	if _, err := s.Store.GetJSON(ctx, store.KeyUsers, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Inspector{}
	}
	return list, nil
}

// SetInspectors replaces the inspector roster.
func (s *SyncService) SetInspectors(ctx context.Context, list []domain.Inspector) error {
	for _, ins := range list {
		if strings.TrimSpace(ins.ID) == "" {
			return ErrEmptyInspector
		}
	}
	return s.Store.PutJSON(ctx, store.KeyUsers, list)
}
