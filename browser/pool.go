// Package browser implements the live CDP-bridge harness: a pool of
// browser tabs the hybrid/selector/navguard pipeline runs against when
// driving a real page instead of a posted HTML fixture. Grounded on
// the teacher's scraper package (browser lifecycle, stealth launch
// flags, request hijacking) and engine/adaptive_pool.go (the
// memory-pressure-scaled resource pool), both retextured from
// fetch-a-page-and-return-HTML to hold-a-tab-open-for-continuous-
// cosmetic-filtering.
package browser

import (
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hybridguard/filterengine/config"
)

// maxConsecutiveSyncFailures bounds how many times in a row a tab may
// fail to push a completed filtering pass back onto the live page
// (Tab.Sync/Tab.Snapshot) before it is retired outright. This is
// stricter and non-decaying compared to errScore: a tab that cannot
// sync is not merely flaky the way a failed navigation is, it is
// actively serving the site's unfiltered DOM to whoever is looking at
// it, so a run of sync failures forces a retirement errScore alone
// would not yet require.
const maxConsecutiveSyncFailures = 3

// TabHandle wraps one pooled browser tab with health-tracking
// metadata, used to decide when a tab has accumulated enough errors,
// reuse, or age to be retired, or has gone silently unable to deliver
// filtering output to be retired immediately regardless of those.
type TabHandle struct {
	ID       int64
	errScore float64
	useCount int
	created  time.Time
	mu       sync.Mutex

	consecutiveSyncFailures int
}

func newTabHandle(id int64) *TabHandle {
	return &TabHandle{ID: id, created: time.Now()}
}

// RecordSuccess decreases the error score (floored at 0). Used for
// pool-level outcomes: acquiring and navigating the tab succeeded.
func (h *TabHandle) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore = math.Max(0, h.errScore-0.5)
}

// RecordFailure increases the error score. Used for pool-level
// outcomes: acquiring or navigating the tab failed.
func (h *TabHandle) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore += 1.0
}

// RecordSyncOutcome tracks whether the most recent filtering pass
// (Tab.Snapshot + Tab.Sync) actually reached the live page, separate
// from the generic pool-level errScore. synced=false runs accumulate
// toward maxConsecutiveSyncFailures with no recovery credit for an
// occasional good pass in between; synced=true resets the streak.
func (h *TabHandle) RecordSyncOutcome(synced bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if synced {
		h.consecutiveSyncFailures = 0
		return
	}
	h.consecutiveSyncFailures++
}

// shouldRetire reports whether the tab has accumulated enough errors,
// reuse, or age to be closed and replaced rather than handed out
// again, or has failed to sync its filtering output too many times in
// a row to keep serving traffic unsupervised.
func (h *TabHandle) shouldRetire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consecutiveSyncFailures >= maxConsecutiveSyncFailures {
		return true
	}
	if h.errScore >= 3.0 {
		return true
	}
	if h.useCount >= 50 {
		return true
	}
	return time.Since(h.created) >= 50*time.Minute
}

// TabFactory opens a new tab and returns a handle ID the caller uses
// to look it up in its own bookkeeping (e.g. a rod.Page registry).
type TabFactory func() (int64, error)

// TabDestroyer closes the tab identified by id.
type TabDestroyer func(id int64)

// TabPool manages a pool of browser tab handles, scaling between
// config.AdaptivePoolConfig's MinPages and HardMax as memory pressure
// and utilization change.
type TabPool struct {
	cfg       config.AdaptivePoolConfig
	factory   TabFactory
	destroyer TabDestroyer

	idle    chan *TabHandle
	mu      sync.Mutex
	all     map[int64]*TabHandle
	nextID  atomic.Int64
	active  atomic.Int32
	stopped chan struct{}
	logger  *slog.Logger
}

// NewTabPool creates and starts a TabPool, pre-creating cfg.MinPages
// tabs via factory.
func NewTabPool(cfg config.AdaptivePoolConfig, factory TabFactory, destroyer TabDestroyer, logger *slog.Logger) (*TabPool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinPages < 1 {
		cfg.MinPages = 1
	}
	if cfg.HardMax < cfg.MinPages {
		cfg.HardMax = cfg.MinPages
	}
	if cfg.MemThreshold <= 0 {
		cfg.MemThreshold = 0.9
	}
	if cfg.ScaleStep <= 0 {
		cfg.ScaleStep = 0.05
	}

	tp := &TabPool{
		cfg:       cfg,
		factory:   factory,
		destroyer: destroyer,
		idle:      make(chan *TabHandle, cfg.HardMax),
		all:       make(map[int64]*TabHandle),
		stopped:   make(chan struct{}),
		logger:    logger,
	}

	for i := 0; i < cfg.MinPages; i++ {
		h, err := tp.createHandle()
		if err != nil {
			logger.Warn("browser: failed to pre-create tab", "error", err)
			continue
		}
		tp.idle <- h
	}

	go tp.scalingLoop()
	return tp, nil
}

// Get acquires a tab handle, creating one if under HardMax, else
// blocking until one is returned.
func (tp *TabPool) Get() (*TabHandle, error) {
	select {
	case h := <-tp.idle:
		tp.active.Add(1)
		return h, nil
	default:
	}

	tp.mu.Lock()
	if len(tp.all) < tp.cfg.HardMax {
		h, err := tp.createHandleLocked()
		tp.mu.Unlock()
		if err == nil {
			tp.active.Add(1)
			return h, nil
		}
	} else {
		tp.mu.Unlock()
	}

	h := <-tp.idle
	tp.active.Add(1)
	return h, nil
}

// Put returns a tab handle to the pool, retiring it instead if its
// health metrics say it should no longer be reused. A retired handle
// is replaced only when the pool has dropped below MinPages.
func (tp *TabPool) Put(h *TabHandle, success bool) {
	tp.active.Add(-1)

	if success {
		h.RecordSuccess()
	} else {
		h.RecordFailure()
	}

	if h.shouldRetire() {
		tp.logger.Debug("browser: retiring tab", "id", h.ID, "useCount", h.useCount)
		tp.destroyHandle(h)

		tp.mu.Lock()
		if len(tp.all) < tp.cfg.MinPages {
			if newH, err := tp.createHandleLocked(); err == nil {
				tp.mu.Unlock()
				tp.idle <- newH
				return
			}
		}
		tp.mu.Unlock()
		return
	}

	tp.idle <- h
}

// Size returns the number of live tab handles.
func (tp *TabPool) Size() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.all)
}

// ActiveCount returns the number of tabs currently checked out.
func (tp *TabPool) ActiveCount() int {
	return int(tp.active.Load())
}

// Stop halts the scaling loop and closes every tracked tab.
func (tp *TabPool) Stop() {
	close(tp.stopped)

drainLoop:
	for {
		select {
		case h := <-tp.idle:
			tp.destroyHandle(h)
		default:
			break drainLoop
		}
	}

	tp.mu.Lock()
	for id, h := range tp.all {
		tp.destroyer(h.ID)
		delete(tp.all, id)
	}
	tp.mu.Unlock()
}

func (tp *TabPool) createHandle() (*TabHandle, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.createHandleLocked()
}

func (tp *TabPool) createHandleLocked() (*TabHandle, error) {
	id, err := tp.factory()
	if err != nil {
		return nil, err
	}
	h := newTabHandle(id)
	tp.all[id] = h
	return h, nil
}

func (tp *TabPool) destroyHandle(h *TabHandle) {
	tp.mu.Lock()
	delete(tp.all, h.ID)
	tp.mu.Unlock()
	tp.destroyer(h.ID)
}

func (tp *TabPool) scalingLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-tp.stopped:
			return
		case <-ticker.C:
			tp.scaleCheck()
		}
	}
}

func (tp *TabPool) scaleCheck() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var memPressure float64
	if m.HeapSys > 0 {
		memPressure = float64(m.HeapInuse) / float64(m.HeapSys)
	}

	tp.mu.Lock()
	totalSize := len(tp.all)
	tp.mu.Unlock()

	active := int(tp.active.Load())
	var activeRate float64
	if totalSize > 0 {
		activeRate = float64(active) / float64(totalSize)
	}

	if memPressure > tp.cfg.MemThreshold {
		shrinkCount := int(math.Ceil(float64(totalSize) * tp.cfg.ScaleStep))
		for i := 0; i < shrinkCount; i++ {
			tp.mu.Lock()
			if len(tp.all) <= tp.cfg.MinPages {
				tp.mu.Unlock()
				break
			}
			tp.mu.Unlock()

			select {
			case h := <-tp.idle:
				tp.destroyHandle(h)
			default:
				return
			}
		}
	} else if activeRate > 0.8 {
		growCount := int(math.Ceil(float64(totalSize) * tp.cfg.ScaleStep))
		for i := 0; i < growCount; i++ {
			tp.mu.Lock()
			if len(tp.all) >= tp.cfg.HardMax {
				tp.mu.Unlock()
				break
			}
			h, err := tp.createHandleLocked()
			tp.mu.Unlock()
			if err != nil {
				tp.logger.Warn("browser: failed to grow pool", "error", err)
				break
			}
			tp.idle <- h
		}
	}
}
