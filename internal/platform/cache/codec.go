package cache

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
)

// Mode selects the read policy for the typed helpers.
type Mode int

const (
	ModeGetOrFetch Mode = iota
	ModeStaleWhileRevalidate
)

// Load is the typed form of GetOrFetch / StaleWhileRevalidate. Values are
// stored as JSON so every Backend can hold them.
func Load[T any](ctx context.Context, c *Client, mode Mode, key string, tier Tier, fetch func(context.Context) (T, error)) (T, Result, error) {
	var zero T

	fetcher := func(fetchCtx context.Context) ([]byte, error) {
		value, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		raw, err := sonic.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		return raw, nil
	}

	var (
		res Result
		err error
	)
	switch mode {
	case ModeStaleWhileRevalidate:
		res, err = c.StaleWhileRevalidate(ctx, key, tier, fetcher)
	default:
		res, err = c.GetOrFetch(ctx, key, tier, fetcher)
	}
	if err != nil {
		return zero, res, err
	}

	var out T
	if err := sonic.Unmarshal(res.Value, &out); err != nil {
		return zero, res, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, res, nil
}

// Store writes a value directly, bypassing fetch. Used to re-cache data under
// a longer tier once it is known to be final.
func Store[T any](ctx context.Context, c *Client, key string, tier Tier, value T) error {
	if !c.enabled {
		return nil
	}
	raw, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = c.backend.Put(ctx, Entry{
		Key:        c.fullKey(key),
		Value:      raw,
		CreatedAt:  c.now(),
		TTL:        tier.TTL,
		SoftTTL:    tier.SoftTTL,
		Generation: c.gens.Next(),
	})
	return err
}
