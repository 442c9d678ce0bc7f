package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Kind names a family of cached artifacts.
type Kind string

const (
	KindNotes    Kind = "notes"
	KindTest     Kind = "test"
	KindPlaylist Kind = "playlist"
)

// CacheKey identifies an artifact. Notes use (VideoID, PlaylistID), tests add
// UserID, playlist metadata uses PlaylistID alone.
type CacheKey struct {
	VideoID    string
	PlaylistID string
	UserID     string
}

func (k CacheKey) validate(kind Kind) error {
	fields := map[string]string{}
	if k.PlaylistID == "" {
		fields["playlist_id"] = "required"
	}
	switch kind {
	case KindNotes:
		if k.VideoID == "" {
			fields["video_id"] = "required"
		}
	case KindTest:
		if k.VideoID == "" {
			fields["video_id"] = "required"
		}
		if k.UserID == "" {
			fields["user_id"] = "required"
		}
	case KindPlaylist:
	default:
		fields["kind"] = fmt.Sprintf("unknown artifact kind %q", kind)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ArtifactTable is the remote cache table for one kind. Put must replace the
// whole row for the key.
type ArtifactTable[T any] interface {
	Get(ctx context.Context, key CacheKey) (T, bool, error)
	Put(ctx context.Context, key CacheKey, artifact T) error
}

// HotCache is an optional read-through layer in front of a table.
type HotCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Del(ctx context.Context, keys ...string) error
}

type GenerationCache[T any] struct {
	kind  Kind
	table ArtifactTable[T]
	hot   HotCache
	log   *zap.Logger
}

func NewGenerationCache[T any](kind Kind, table ArtifactTable[T], hot HotCache, log *zap.Logger) *GenerationCache[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &GenerationCache[T]{kind: kind, table: table, hot: hot, log: log.With(zap.String("cache", string(kind)))}
}

func (c *GenerationCache[T]) Kind() Kind { return c.kind }

// Lookup reads the artifact without generating anything.
func (c *GenerationCache[T]) Lookup(ctx context.Context, key CacheKey) (T, bool, error) {
	var zero T
	if err := key.validate(c.kind); err != nil {
		return zero, false, err
	}

	hotKey := HotKey(c.kind, key)
	if c.hot != nil {
		var v T
		ok, err := c.hot.Get(ctx, hotKey, &v)
		if err != nil {
			c.log.Warn("hot cache read failed", zap.Error(err))
		} else if ok {
			return v, true, nil
		}
	}

	v, ok, err := c.table.Get(ctx, key)
	if err != nil {
		return zero, false, &TransientNetworkError{Op: "cache." + string(c.kind) + ".get", Err: err}
	}
	if ok && c.hot != nil {
		if err := c.hot.Set(ctx, hotKey, v); err != nil {
			c.log.Warn("hot cache fill failed", zap.Error(err))
		}
	}
	return v, ok, nil
}

// GetOrGenerate returns the cached artifact for key, or runs generate and
// stores its result. force skips the lookup. A failed generate writes nothing.
// The bool reports a cache hit.
func (c *GenerationCache[T]) GetOrGenerate(ctx context.Context, key CacheKey, force bool, generate func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T
	if err := key.validate(c.kind); err != nil {
		return zero, false, err
	}

	if !force {
		v, ok, err := c.Lookup(ctx, key)
		switch {
		case err != nil:
			c.log.Warn("cache lookup failed, generating", zap.Error(err))
		case ok:
			return v, true, nil
		}
	}

	v, err := generate(ctx)
	if err != nil {
		return zero, false, err
	}

	if err := c.table.Put(ctx, key, v); err != nil {
		c.log.Warn("cache write failed", zap.Error(err))
		return v, false, nil
	}
	if c.hot != nil {
		if err := c.hot.Set(ctx, HotKey(c.kind, key), v); err != nil {
			c.log.Warn("hot cache write failed", zap.Error(err))
		}
	}
	return v, false, nil
}

// Invalidate drops the hot copy for key. Callers that change a row behind the
// cache's back must call it so later lookups read the table.
func (c *GenerationCache[T]) Invalidate(ctx context.Context, key CacheKey) error {
	if c.hot == nil {
		return nil
	}
	return c.hot.Del(ctx, HotKey(c.kind, key))
}
