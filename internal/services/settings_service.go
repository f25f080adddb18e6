package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deepscout/internal/database"
	"deepscout/internal/logging"
	"deepscout/pkg/settings"

	gocache "github.com/patrickmn/go-cache"
)

// SettingsService persists the per-account settings document. Every query is
// keyed by the authenticated account id; cross-account access is structurally
// impossible at this boundary.
type SettingsService struct {
	db     *database.DB
	cache  *gocache.Cache
	pubsub *PubSubService
}

// NewSettingsService creates the service. pubsub may be nil when Redis is not
// configured.
func NewSettingsService(db *database.DB, cacheTTL time.Duration, pubsub *PubSubService) *SettingsService {
	return &SettingsService{
		db:     db,
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		pubsub: pubsub,
	}
}

// Get returns the account's document, creating a default one the first time
// the account is observed. Legacy or malformed stored shapes are repaired and
// the repaired shape persisted, so each migration runs at most once.
func (s *SettingsService) Get(ctx context.Context, accountID string) (*settings.Document, error) {
	if cached, ok := s.cache.Get(accountID); ok {
		return cached.(*settings.Document), nil
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT settings FROM user_settings WHERE user_id = ?", accountID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		doc := settings.NewDefaultDocument()
		if err := s.store(ctx, accountID, doc, true); err != nil {
			return nil, err
		}
		logging.WithAccount(accountID).Info("created default settings")
		s.cache.SetDefault(accountID, doc)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	doc, migrated := settings.Normalize(raw)
	if migrated {
		settingsMigrationsTotal.Inc()
		logging.WithAccount(accountID).Info("migrated legacy settings document")
		if err := s.store(ctx, accountID, doc, false); err != nil {
			return nil, err
		}
	}

	s.cache.SetDefault(accountID, doc)
	return doc, nil
}

// Upsert normalizes and stores a full document for the account, then
// publishes a settings-changed event.
func (s *SettingsService) Upsert(ctx context.Context, accountID string, raw []byte) (*settings.Document, error) {
	doc, _ := settings.Normalize(raw)
	if err := s.store(ctx, accountID, doc, false); err != nil {
		return nil, err
	}

	s.cache.SetDefault(accountID, doc)
	settingsWritesTotal.Inc()
	if s.pubsub != nil {
		s.pubsub.PublishSettingsUpdated(ctx, accountID)
	}
	return doc, nil
}

// Reset overwrites the account's document with a brand-new default one.
func (s *SettingsService) Reset(ctx context.Context, accountID string) (*settings.Document, error) {
	doc := settings.NewDefaultDocument()
	if err := s.store(ctx, accountID, doc, false); err != nil {
		return nil, err
	}

	s.cache.SetDefault(accountID, doc)
	if s.pubsub != nil {
		s.pubsub.PublishSettingsUpdated(ctx, accountID)
	}
	return doc, nil
}

// Invalidate drops the cached document, e.g. after an out-of-band write.
func (s *SettingsService) Invalidate(accountID string) {
	s.cache.Delete(accountID)
}

// store writes the document row. insert skips the update branch for the
// first-sight path. Select-then-write inside a transaction keeps the SQL
// portable across SQLite and MySQL.
func (s *SettingsService) store(ctx context.Context, accountID string, doc *settings.Document, insert bool) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	exists := false
	if !insert {
		var one int
		err = tx.QueryRowContext(ctx,
			"SELECT 1 FROM user_settings WHERE user_id = ?", accountID).Scan(&one)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check settings row: %w", err)
		}
		exists = err == nil
	}

	if exists {
		_, err = tx.ExecContext(ctx,
			"UPDATE user_settings SET settings = ?, updated_at = ? WHERE user_id = ?",
			payload, now, accountID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO user_settings (user_id, settings, created_at, updated_at) VALUES (?, ?, ?, ?)",
			accountID, payload, now, now)
	}
	if err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}

	return tx.Commit()
}

// SweepLegacyDocuments re-normalizes every stored document and persists the
// ones that changed, so the legacy migration eventually reaches dormant
// accounts. Returns the number of migrated documents.
func (s *SettingsService) SweepLegacyDocuments(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id, settings FROM user_settings")
	if err != nil {
		return 0, fmt.Errorf("failed to list settings rows: %w", err)
	}
	defer rows.Close()

	type pending struct {
		accountID string
		doc       *settings.Document
	}
	var migrate []pending
	for rows.Next() {
		var accountID string
		var raw []byte
		if err := rows.Scan(&accountID, &raw); err != nil {
			return 0, fmt.Errorf("failed to scan settings row: %w", err)
		}
		if doc, changed := settings.Normalize(raw); changed {
			migrate = append(migrate, pending{accountID, doc})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate settings rows: %w", err)
	}

	for _, p := range migrate {
		if err := s.store(ctx, p.accountID, p.doc, false); err != nil {
			return 0, err
		}
		s.cache.Delete(p.accountID)
		settingsMigrationsTotal.Inc()
	}
	if len(migrate) > 0 {
		slog.Info("settings sweep migrated documents", "count", len(migrate))
	}
	return len(migrate), nil
}
