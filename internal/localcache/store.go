// Package localcache persists the last known copy of each collection, and the
// session, as JSON strings under plain string keys.
package localcache

import (
	"context"
	"errors"
)

var ErrStoreClosed = errors.New("local store closed")

// Store is a string key/value store. Get reports found=false for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
