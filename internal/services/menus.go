package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"canteen-menu-service/internal/queue"
	"canteen-menu-service/internal/store"
	"canteen-menu-service/pkg/menu"

	"go.uber.org/zap"
)

var ErrPublishingDisabled = errors.New("object store not configured")

const (
	overviewPrefix    = "menus/overview/"
	overviewLatestKey = overviewPrefix + "latest.json"
	snapshotsToKeep   = 10
)

type Publisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error
}

type Notifier interface {
	BookingUpdated(bookingID int64, message any)
}

type OverviewCache interface {
	GetOverview(ctx context.Context) ([]byte, bool, error)
	SetOverview(ctx context.Context, data []byte) error
	InvalidateOverview(ctx context.Context) error
}

type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string, cacheControl string) (string, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeleteKey(ctx context.Context, key string) error
}

// Menus owns catalog assembly and every write to a booking's selection set.
// Publisher, Notifier, Cache and Objects are optional.
type Menus struct {
	store  store.Store
	logger *zap.Logger

	publisher Publisher
	notifier  Notifier
	cache     OverviewCache
	objects   ObjectStore
	now       func() time.Time

	driftMu   sync.Mutex
	driftSeen map[menu.Drift]struct{}
}

type Option func(*Menus)

func WithPublisher(p Publisher) Option {
	return func(m *Menus) { m.publisher = p }
}

func WithNotifier(n Notifier) Option {
	return func(m *Menus) { m.notifier = n }
}

func WithOverviewCache(c OverviewCache) Option {
	return func(m *Menus) { m.cache = c }
}

func WithObjectStore(o ObjectStore) Option {
	return func(m *Menus) { m.objects = o }
}

func WithClock(now func() time.Time) Option {
	return func(m *Menus) { m.now = now }
}

func NewMenus(st store.Store, logger *zap.Logger, opts ...Option) *Menus {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Menus{
		store:     st,
		logger:    logger,
		now:       time.Now,
		driftSeen: make(map[menu.Drift]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Menus) Store() store.Store {
	return m.store
}

// Catalog loads the flat tables and assembles the tree. Each distinct
// drift is logged and published once per process.
func (m *Menus) Catalog(ctx context.Context) (*menu.Catalog, error) {
	tables, err := m.store.LoadTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog tables: %w", err)
	}
	return menu.BuildCatalog(tables, func(d menu.Drift) { m.reportDrift(ctx, d) }), nil
}

func (m *Menus) reportDrift(ctx context.Context, d menu.Drift) {
	m.driftMu.Lock()
	_, seen := m.driftSeen[d]
	m.driftSeen[d] = struct{}{}
	m.driftMu.Unlock()
	if seen {
		return
	}

	m.logger.Warn("catalog drift",
		zap.String("kind", string(d.Kind)),
		zap.Int64("id", d.ID),
		zap.Int64("refId", d.RefID),
	)

	if m.publisher == nil {
		return
	}
	event := queue.CatalogDriftEvent{
		Type:       queue.CatalogDriftRK,
		Kind:       string(d.Kind),
		ID:         d.ID,
		RefID:      d.RefID,
		DetectedAt: m.now().UTC(),
	}
	if err := m.publisher.PublishJSON(ctx, queue.EventsExchange, queue.CatalogDriftRK, event); err != nil {
		m.logger.Warn("publish catalog drift failed", zap.Error(err))
	}
}

// Overview returns the JSON encoded catalog tree, served from the cache
// when one is configured.
func (m *Menus) Overview(ctx context.Context) (json.RawMessage, error) {
	if m.cache != nil {
		data, ok, err := m.cache.GetOverview(ctx)
		if err != nil {
			m.logger.Warn("overview cache read failed", zap.Error(err))
		} else if ok {
			return data, nil
		}
	}

	catalog, err := m.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(catalog.Lists())
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.SetOverview(ctx, data); err != nil {
			m.logger.Warn("overview cache write failed", zap.Error(err))
		}
	}
	return data, nil
}

// CatalogChanged must be called after every catalog write.
func (m *Menus) CatalogChanged(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.InvalidateOverview(ctx); err != nil {
		m.logger.Warn("overview cache invalidation failed", zap.Error(err))
	}
}

type OverviewSnapshot struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	LatestURL   string    `json:"latestUrl"`
	PublishedAt time.Time `json:"publishedAt"`
}

// PublishOverview uploads an immutable timestamped snapshot plus a short
// lived latest.json, then prunes old snapshots.
func (m *Menus) PublishOverview(ctx context.Context) (OverviewSnapshot, error) {
	if m.objects == nil {
		return OverviewSnapshot{}, ErrPublishingDisabled
	}

	// Bypass the cache so the snapshot reflects the database.
	catalog, err := m.Catalog(ctx)
	if err != nil {
		return OverviewSnapshot{}, err
	}
	body, err := json.Marshal(catalog.Lists())
	if err != nil {
		return OverviewSnapshot{}, err
	}

	publishedAt := m.now().UTC()
	key := overviewPrefix + publishedAt.Format("20060102T150405.000Z") + ".json"
	url, err := m.objects.PutObject(ctx, key, body, "application/json", "")
	if err != nil {
		return OverviewSnapshot{}, fmt.Errorf("upload overview snapshot: %w", err)
	}
	latestURL, err := m.objects.PutObject(ctx, overviewLatestKey, body, "application/json", "public, max-age=60")
	if err != nil {
		return OverviewSnapshot{}, fmt.Errorf("upload latest overview: %w", err)
	}

	m.pruneSnapshots(ctx)

	return OverviewSnapshot{Key: key, URL: url, LatestURL: latestURL, PublishedAt: publishedAt}, nil
}

func (m *Menus) pruneSnapshots(ctx context.Context) {
	keys, err := m.objects.ListKeys(ctx, overviewPrefix)
	if err != nil {
		m.logger.Warn("list overview snapshots failed", zap.Error(err))
		return
	}
	snapshots := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != overviewLatestKey {
			snapshots = append(snapshots, key)
		}
	}
	if len(snapshots) <= snapshotsToKeep {
		return
	}
	for _, key := range snapshots[:len(snapshots)-snapshotsToKeep] {
		if err := m.objects.DeleteKey(ctx, key); err != nil {
			m.logger.Warn("delete overview snapshot failed", zap.String("key", key), zap.Error(err))
		}
	}
}
