package kv

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ReconcileUnboundedAntispam deletes anti-spam rings that lost their TTL.
// A ring without expiry would block its user forever once full.
func (c *Client) ReconcileUnboundedAntispam(ctx context.Context) (int, error) {
	keys, err := c.ScanKeys(ctx, AntispamPattern)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, key := range keys {
		ttl, err := c.TTL(ctx, key)
		if err != nil {
			return deleted, err
		}
		if ttl != NoExpiry {
			continue
		}
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", key, err)
		}
		deleted++
	}

	log.WithFields(log.Fields{
		"scanned": len(keys),
		"deleted": deleted,
	}).Info("Reconciled anti-spam keys")
	return deleted, nil
}
