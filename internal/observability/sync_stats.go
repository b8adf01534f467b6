package observability

import (
	"sync/atomic"
	"time"
)

// SyncStats counts remote sync outcomes for /readyz and, when a Prom is
// attached, mirrors them into Prometheus.
type SyncStats struct {
	prom *Prom

	fetchRemote    atomic.Uint64
	fetchCache     atomic.Uint64
	fetchFallback  atomic.Uint64
	pushSent       atomic.Uint64
	pushFailed     atomic.Uint64
	pushSuperseded atomic.Uint64
	inFlight       atomic.Int64

	// nanoseconds
	pushCount atomic.Uint64
	pushTotal atomic.Int64
	pushMax   atomic.Int64
	lastFail  atomic.Int64 // unix nanos of the latest failed push
}

func NewSyncStats(prom *Prom) *SyncStats {
	return &SyncStats{prom: prom}
}

func (s *SyncStats) ObserveFetch(collection, source string) {
	switch source {
	case "remote":
		s.fetchRemote.Add(1)
	case "cache":
		s.fetchCache.Add(1)
	case "fallback":
		s.fetchFallback.Add(1)
	}

	if s.prom != nil {
		s.prom.SyncFetchTotal.WithLabelValues(collection, source).Inc()
	}
}

func (s *SyncStats) PushStarted(collection string) {
	s.inFlight.Add(1)

	if s.prom != nil {
		s.prom.SyncPushesInFlight.Inc()
	}
}

func (s *SyncStats) ObservePush(collection, result string, d time.Duration) {
	s.inFlight.Add(-1)

	switch result {
	case "sent":
		s.pushSent.Add(1)
	case "superseded":
		s.pushSuperseded.Add(1)
	default:
		s.pushFailed.Add(1)
		s.lastFail.Store(time.Now().UnixNano())
	}

	ns := d.Nanoseconds()
	s.pushCount.Add(1)
	s.pushTotal.Add(ns)

	for {
		curr := s.pushMax.Load()

		if ns <= curr {
			break
		}

		if s.pushMax.CompareAndSwap(curr, ns) {
			break
		}
	}

	if s.prom != nil {
		s.prom.SyncPushesInFlight.Dec()
		s.prom.SyncPushTotal.WithLabelValues(collection, result).Inc()
		s.prom.SyncPushDuration.WithLabelValues(collection, result).Observe(d.Seconds())
	}
}

type SyncStatsSnapshot struct {
	FetchRemote     uint64        `json:"fetchRemote"`
	FetchCache      uint64        `json:"fetchCache"`
	FetchFallback   uint64        `json:"fetchFallback"`
	PushSent        uint64        `json:"pushSent"`
	PushFailed      uint64        `json:"pushFailed"`
	PushSuperseded  uint64        `json:"pushSuperseded"`
	PushesInFlight  int64         `json:"pushesInFlight"`
	AveragePush     time.Duration `json:"averagePushNs"`
	MaxPush         time.Duration `json:"maxPushNs"`
	LastPushFailure *time.Time    `json:"lastPushFailure,omitempty"`
}

func (s *SyncStats) Snapshot() SyncStatsSnapshot {
	count := s.pushCount.Load()
	total := s.pushTotal.Load()

	var avg time.Duration

	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	snap := SyncStatsSnapshot{
		FetchRemote:    s.fetchRemote.Load(),
		FetchCache:     s.fetchCache.Load(),
		FetchFallback:  s.fetchFallback.Load(),
		PushSent:       s.pushSent.Load(),
		PushFailed:     s.pushFailed.Load(),
		PushSuperseded: s.pushSuperseded.Load(),
		PushesInFlight: s.inFlight.Load(),
		AveragePush:    avg,
		MaxPush:        time.Duration(s.pushMax.Load()),
	}

	if ns := s.lastFail.Load(); ns > 0 {
		t := time.Unix(0, ns).UTC()
		snap.LastPushFailure = &t
	}

	return snap
}
