package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
)

const profileKeyPrefix = "printx:printer_profile:"

// ProfileCache is a read-through Redis cache in front of a ProfileProvider.
// Redis failures degrade to reading the source directly.
type ProfileCache struct {
	client *redis.Client
	source printer.ProfileProvider
	ttl    time.Duration
	logger *zap.Logger
}

var _ printer.ProfileProvider = (*ProfileCache)(nil)

func NewProfileCache(client *redis.Client, source printer.ProfileProvider, ttl time.Duration, logger *zap.Logger) *ProfileCache {
	return &ProfileCache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

func profileKey(printerID uuid.UUID) string {
	return profileKeyPrefix + printerID.String()
}

// GetProfile implements printer.ProfileProvider
func (c *ProfileCache) GetProfile(ctx context.Context, printerID uuid.UUID) (*printer.Profile, error) {
	key := profileKey(printerID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p printer.Profile
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		c.logger.Warn("discarding undecodable cached profile", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("profile cache read failed", zap.String("key", key), zap.Error(err))
	}

	p, err := c.source.GetProfile(ctx, printerID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("profile cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return p, nil
}

// Invalidate drops the cached profile after the owner edits it
func (c *ProfileCache) Invalidate(ctx context.Context, printerID uuid.UUID) error {
	if err := c.client.Del(ctx, profileKey(printerID)).Err(); err != nil {
		return fmt.Errorf("invalidate profile %s: %w", printerID, err)
	}
	return nil
}
