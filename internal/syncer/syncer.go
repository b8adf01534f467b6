// Package syncer keeps the three collections in step between the local cache
// and the remote store: reads prefer the remote and fall back to the cache,
// writes land in the cache first and are pushed to the remote without waiting.
package syncer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/teamflow/internal/actorctx"
	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/geocoder89/teamflow/internal/domain/project"
	"github.com/geocoder89/teamflow/internal/domain/task"
	"github.com/geocoder89/teamflow/internal/localcache"
	"github.com/geocoder89/teamflow/internal/remote"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	SourceRemote   = "remote"
	SourceCache    = "cache"
	SourceFallback = "fallback"

	PushSent       = "sent"
	PushFailed     = "failed"
	PushSuperseded = "superseded"
)

// Metrics receives sync outcomes; observability.SyncStats satisfies it.
type Metrics interface {
	ObserveFetch(collection, source string)
	PushStarted(collection string)
	ObservePush(collection, result string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveFetch(string, string)               {}
func (noopMetrics) PushStarted(string)                        {}
func (noopMetrics) ObservePush(string, string, time.Duration) {}

type Options struct {
	// Prefix namespaces the cache keys: "<prefix>_users" and so on.
	Prefix      string
	PushTimeout time.Duration

	// PushAttempts bounds how often one push is tried; 1 disables retries.
	PushAttempts int
	RetryBase    time.Duration

	Logger  *slog.Logger
	Metrics Metrics
}

type Client struct {
	cache        localcache.Store
	remote       remote.Store
	prefix       string
	pushTimeout  time.Duration
	pushAttempts int
	retryBase    time.Duration
	log          *slog.Logger
	metrics      Metrics
	tracer       trace.Tracer

	pushes sync.WaitGroup

	genMu   sync.Mutex
	gen     map[remote.Collection]uint64 // latest dispatched push per collection
	pending map[remote.Collection]int    // pushes not yet finished
}

// New builds a client. A nil remote means no remote store is configured and
// every read is served from the local cache.
func New(cache localcache.Store, rs remote.Store, opts Options) *Client {
	if opts.Prefix == "" {
		opts.Prefix = "teamflow"
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = 15 * time.Second
	}
	if opts.PushAttempts <= 0 {
		opts.PushAttempts = 1
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}

	return &Client{
		cache:        cache,
		remote:       rs,
		prefix:       opts.Prefix,
		pushTimeout:  opts.PushTimeout,
		pushAttempts: opts.PushAttempts,
		retryBase:    opts.RetryBase,
		log:          opts.Logger,
		metrics:      opts.Metrics,
		tracer:       otel.Tracer("teamflow/syncer"),
		gen:          make(map[remote.Collection]uint64),
		pending:      make(map[remote.Collection]int),
	}
}

func (c *Client) Key(col remote.Collection) string {
	return c.prefix + "_" + string(col)
}

func (c *Client) RemoteConfigured() bool {
	return c.remote != nil
}

// FetchCollection returns the collection as a JSON array. It never fails:
// remote problems degrade to the cached copy, and a missing cache to "[]".
// While a push of col is in flight the cache is the newer copy, so it is
// served as is and never overwritten by the remote.
func (c *Client) FetchCollection(ctx context.Context, col remote.Collection) json.RawMessage {
	ctx, span := c.tracer.Start(ctx, "syncer.FetchCollection", trace.WithAttributes(
		attribute.String("collection", string(col)),
	))
	defer span.End()

	if c.remote == nil {
		c.metrics.ObserveFetch(string(col), SourceCache)
		span.SetAttributes(attribute.String("source", SourceCache))
		return c.readCache(ctx, col)
	}

	gen, inFlight := c.pushState(col)
	if inFlight {
		c.log.DebugContext(ctx, "push in flight, serving local copy", "collection", col)
		c.metrics.ObserveFetch(string(col), SourceCache)
		span.SetAttributes(attribute.String("source", SourceCache), attribute.Bool("push_in_flight", true))
		return c.readCache(ctx, col)
	}

	data, err := c.remote.Fetch(ctx, col)
	if err != nil {
		c.log.WarnContext(ctx, "collection fetch failed, using local copy", "collection", col, "err", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("source", SourceFallback))
		c.metrics.ObserveFetch(string(col), SourceFallback)
		return c.readCache(ctx, col)
	}

	// a save landed while the read was out; the response predates it
	if now, inFlight := c.pushState(col); inFlight || now != gen {
		c.log.DebugContext(ctx, "remote read raced a save, serving local copy", "collection", col)
		c.metrics.ObserveFetch(string(col), SourceCache)
		span.SetAttributes(attribute.String("source", SourceCache), attribute.Bool("push_in_flight", true))
		return c.readCache(ctx, col)
	}

	if err := c.cache.Set(ctx, c.Key(col), string(data)); err != nil {
		c.log.ErrorContext(ctx, "local cache write failed", "collection", col, "err", err)
	}

	span.SetAttributes(attribute.String("source", SourceRemote))
	c.metrics.ObserveFetch(string(col), SourceRemote)
	return data
}

// SaveCollection writes data through to the local cache and, when a remote is
// configured, dispatches a push of the full list. The push outcome is only
// logged: a lost push survives solely as the cached copy.
func (c *Client) SaveCollection(ctx context.Context, col remote.Collection, data json.RawMessage) {
	if err := c.cache.Set(ctx, c.Key(col), string(data)); err != nil {
		c.log.ErrorContext(ctx, "local cache write failed", "collection", col, "err", err)
	}

	if c.remote == nil {
		return
	}

	c.genMu.Lock()
	c.gen[col]++
	c.pending[col]++
	gen := c.gen[col]
	c.genMu.Unlock()

	c.metrics.PushStarted(string(col))
	c.pushes.Add(1)

	// the push outlives the request that triggered it
	pushCtx := context.WithoutCancel(ctx)

	go func() {
		defer c.pushes.Done()
		defer c.pushDone(col)
		c.push(pushCtx, col, data, gen)
	}()
}

// pushState returns the latest dispatched generation of col and whether any
// push of it is still running.
func (c *Client) pushState(col remote.Collection) (uint64, bool) {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.gen[col], c.pending[col] > 0
}

func (c *Client) pushDone(col remote.Collection) {
	c.genMu.Lock()
	c.pending[col]--
	c.genMu.Unlock()
}

// superseded reports whether a newer push of col was dispatched after gen.
// A retry must never overwrite the remote with an older full list.
func (c *Client) superseded(col remote.Collection, gen uint64) bool {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.gen[col] != gen
}

func (c *Client) push(ctx context.Context, col remote.Collection, data json.RawMessage, gen uint64) {
	ctx, cancel := context.WithTimeout(ctx, c.pushTimeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "syncer.push", trace.WithAttributes(
		attribute.String("collection", string(col)),
		attribute.Int("bytes", len(data)),
	))
	defer span.End()

	start := time.Now()
	err := c.remote.SaveAll(ctx, col, data)

	for attempt := 1; err != nil && attempt < c.pushAttempts; attempt++ {
		if !sleepCtx(ctx, backoff(c.retryBase, attempt-1)) {
			break
		}
		if c.superseded(col, gen) {
			c.log.DebugContext(ctx, "dropping retry, newer push dispatched", "collection", col, "err", err)
			span.SetAttributes(attribute.Bool("superseded", true))
			c.metrics.ObservePush(string(col), PushSuperseded, time.Since(start))
			return
		}

		c.log.WarnContext(ctx, "retrying collection push", "collection", col, "attempt", attempt+1, "err", err)
		err = c.remote.SaveAll(ctx, col, data)
	}
	elapsed := time.Since(start)

	if err != nil {
		actor, _ := actorctx.AccountIDFrom(ctx)
		c.log.ErrorContext(ctx, "collection push failed", "collection", col, "actor", actor, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "push failed")
		c.metrics.ObservePush(string(col), PushFailed, elapsed)
		return
	}

	c.log.DebugContext(ctx, "collection pushed", "collection", col, "latency_ms", elapsed.Milliseconds())
	c.metrics.ObservePush(string(col), PushSent, elapsed)
}

// Wait blocks until every dispatched push has finished or ctx is done.
func (c *Client) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		c.pushes.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) readCache(ctx context.Context, col remote.Collection) json.RawMessage {
	v, found, err := c.cache.Get(ctx, c.Key(col))
	if err != nil {
		c.log.ErrorContext(ctx, "local cache read failed", "collection", col, "err", err)
		return json.RawMessage("[]")
	}
	if !found {
		return json.RawMessage("[]")
	}
	return json.RawMessage(v)
}

func (c *Client) Accounts(ctx context.Context) []account.Account {
	return fetchList[account.Account](ctx, c, remote.Users)
}

func (c *Client) Projects(ctx context.Context) []project.Project {
	return fetchList[project.Project](ctx, c, remote.Projects)
}

func (c *Client) Tasks(ctx context.Context) []task.Task {
	return fetchList[task.Task](ctx, c, remote.Tasks)
}

func (c *Client) SaveAccounts(ctx context.Context, accounts []account.Account) {
	saveList(ctx, c, remote.Users, accounts)
}

func (c *Client) SaveProjects(ctx context.Context, projects []project.Project) {
	saveList(ctx, c, remote.Projects, projects)
}

func (c *Client) SaveTasks(ctx context.Context, tasks []task.Task) {
	saveList(ctx, c, remote.Tasks, tasks)
}

func fetchList[T any](ctx context.Context, c *Client, col remote.Collection) []T {
	raw := c.FetchCollection(ctx, col)

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.ErrorContext(ctx, "collection is not decodable, treating as empty", "collection", col, "err", err)
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

func saveList[T any](ctx context.Context, c *Client, col remote.Collection, items []T) {
	if items == nil {
		items = []T{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		c.log.ErrorContext(ctx, "collection is not encodable", "collection", col, "err", err)
		return
	}

	c.SaveCollection(ctx, col, data)
}
