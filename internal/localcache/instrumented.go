package localcache

import "context"

// Observer times a store operation; observability.Prom satisfies it.
type Observer interface {
	ObserveStore(op string, fn func() error) error
}

type instrumented struct {
	next Store
	obs  Observer
}

// Instrument wraps next so every operation is reported to obs.
func Instrument(next Store, obs Observer) Store {
	if obs == nil {
		return next
	}
	return &instrumented{next: next, obs: obs}
}

func (s *instrumented) Get(ctx context.Context, key string) (v string, found bool, err error) {
	err = s.obs.ObserveStore("get", func() error {
		var innerErr error
		v, found, innerErr = s.next.Get(ctx, key)
		return innerErr
	})
	return v, found, err
}

func (s *instrumented) Set(ctx context.Context, key, value string) error {
	return s.obs.ObserveStore("set", func() error {
		return s.next.Set(ctx, key, value)
	})
}

func (s *instrumented) Delete(ctx context.Context, key string) error {
	return s.obs.ObserveStore("delete", func() error {
		return s.next.Delete(ctx, key)
	})
}
