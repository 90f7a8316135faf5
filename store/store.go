// Package store keeps conversion results for a short while so they could be
// downloaded once.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"djc/common"
	"djc/config"
)

// ErrNotFound is returned when artifact was never stored, already taken or expired.
var ErrNotFound = errors.New("artifact not found")

// Artifact is a single downloadable result.
type Artifact struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Store keeps artifacts under random keys. Take is one-shot: artifact is
// removed from the store when returned.
type Store interface {
	Put(ctx context.Context, a Artifact) (string, error)
	Take(ctx context.Context, key string) (Artifact, error)
	Close() error
}

// Open creates store of configured kind.
func Open(cfg *config.StoreConfig, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("store")

	switch cfg.Kind {
	case common.StoreKindMemory:
		return NewMemory(cfg.MaxEntries, cfg.TTL, log), nil
	case common.StoreKindSqlite:
		return NewSQLite(cfg.SQLitePath, cfg.TTL, log)
	case common.StoreKindS3:
		return NewS3(&cfg.S3, cfg.TTL, log)
	}
	return nil, fmt.Errorf("unsupported store kind %q", cfg.Kind)
}

func newKey() string {
	return uuid.NewString()
}

// validKey rejects anything which could not have been produced by newKey.
func validKey(key string) bool {
	_, err := uuid.Parse(key)
	return err == nil
}

func expiresAt(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}
