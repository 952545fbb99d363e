package guildconf

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"raidward/internal/storage"

	"go.uber.org/zap"
)

// Store serves per-guild configs merged over process defaults. Reads come
// from an in-memory cache of immutable values; Apply replaces the cached
// value wholesale after the merged document has been persisted, so readers
// never observe a half-merged config.
type Store struct {
	mu       sync.RWMutex
	applyMu  sync.Mutex
	cache    map[string]Config
	defaults Config
	db       *storage.Store
	logger   *zap.Logger
}

func NewStore(db *storage.Store, defaults Config, logger *zap.Logger) *Store {
	return &Store{
		cache:    make(map[string]Config),
		defaults: defaults,
		db:       db,
		logger:   logger,
	}
}

// Load pulls every stored guild document into the cache. An empty table is
// "no guilds configured yet", not an error. A document that fails to decode
// is skipped so one corrupt row cannot keep the process down.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.db.ListGuildConfigs(ctx)
	if err != nil {
		return fmt.Errorf("load guild configs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for guildID, doc := range raw {
		cfg, err := s.decode(doc)
		if err != nil {
			s.logger.Warn("skipping undecodable guild config", zap.String("guild_id", guildID), zap.Error(err))
			continue
		}
		s.cache[guildID] = cfg
	}
	return nil
}

// Get never fails: an unknown guild gets the defaults.
func (s *Store) Get(guildID string) Config {
	s.mu.RLock()
	cfg, ok := s.cache[guildID]
	s.mu.RUnlock()
	if ok {
		return cfg
	}
	return s.defaults.Clone()
}

// Apply merges the patch over the guild's current config, persists the
// merged document synchronously, and only then publishes it to readers. A
// persistence failure leaves the cached config untouched. applyMu serializes
// writers without making readers wait on storage I/O.
func (s *Store) Apply(ctx context.Context, guildID string, patch Patch) (Config, error) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	merged := s.Get(guildID).Merge(patch)

	doc, err := json.Marshal(merged)
	if err != nil {
		return Config{}, fmt.Errorf("encode guild config: %w", err)
	}
	if err := s.db.PutGuildConfig(ctx, guildID, doc); err != nil {
		return Config{}, fmt.Errorf("persist guild config: %w", err)
	}

	s.mu.Lock()
	s.cache[guildID] = merged
	s.mu.Unlock()
	return merged, nil
}

// decode merges a stored partial document over the defaults. Unknown fields
// are ignored, missing fields keep their default value.
func (s *Store) decode(doc []byte) (Config, error) {
	cfg := s.defaults.Clone()
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
