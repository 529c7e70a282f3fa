package rulesource

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/rulecache"
	"github.com/hybridguard/filterengine/rules"
	"github.com/hybridguard/filterengine/store"
)

// EasyListDom is the RuleSource that pulls the full cosmetic list from
// a remote mirror and memoizes it for rulecache.TTLEasyList (spec.md
// §4.3). Unlike Default/Custom it owns a network fetch, so it races two
// fetchEngines the way the teacher's engine.Dispatcher races its
// Engine implementations (engine/dispatcher.go), remembering whichever
// engine won for a given mirror host (engine/domain_memory.go) so
// later fetches skip straight to it.
type EasyListDom struct {
	cache  *rulecache.Cache
	parser *rules.Parser
	logger *slog.Logger

	resourceURL string
	memory      *domainMemory
	plain       fetchEngine
	chrome      fetchEngine

	// staggerDelay is how long the race waits before launching the
	// second (non-remembered) engine, giving the remembered engine a
	// head start instead of always paying both round trips.
	staggerDelay time.Duration
}

// NewEasyListDom builds an EasyListDom source fetching resourceURL.
func NewEasyListDom(resourceURL string, cache *rulecache.Cache, parser *rules.Parser, logger *slog.Logger) *EasyListDom {
	return &EasyListDom{
		cache:        cache,
		parser:       parser,
		logger:       orDefault(logger),
		resourceURL:  resourceURL,
		memory:       newDomainMemory(),
		plain:        newPlainEngine(),
		chrome:       newChromeTLSEngine(),
		staggerDelay: 400 * time.Millisecond,
	}
}

func (e *EasyListDom) Name() string              { return "easylist" }
func (e *EasyListDom) ExecutorKind() ExecutorKind { return ExecutorHybrid }

func (e *EasyListDom) Invalidate(ctx context.Context) {
	e.cache.Invalidate(ctx, e.Name())
	e.memory.forget(e.resourceURL)
}

// Fetch implements spec.md §4.3: on success, rules are reparsed and
// persisted with version "1.0" and the current fetch time; on total
// failure the last-known cache entry is served stale, and only if
// none exists does Fetch return an empty set. Fetch itself never
// returns an error to the caller — network failure is not a caller
// error, it's a degraded-mode condition (spec.md §7's graceful
// degradation policy).
func (e *EasyListDom) Fetch(ctx context.Context) ([]models.Rule, error) {
	if entry, ok := e.cache.Get(ctx, e.Name(), rulecache.TTLEasyList); ok {
		return entry.Rules, nil
	}

	payload, engineName, err := e.race(ctx)
	if err != nil {
		if entry, ok := e.cache.Get(ctx, e.Name(), 0); ok {
			e.logger.Warn("rulesource: easylist fetch failed, serving stale cache", "error", err)
			return entry.Rules, nil
		}
		e.logger.Error("rulesource: easylist fetch failed, no cache available", "error", err)
		return nil, nil
	}

	e.memory.remember(e.resourceURL, engineName)
	parsed := e.parser.ParseCosmetic(splitLines(payload))
	e.cache.Put(e.Name(), models.CacheEntry{
		Rules:       parsed,
		LastFetched: time.Now(),
		Version:     "1.0",
	})
	return parsed, nil
}

// race runs the remembered engine (if any) first with a head start,
// then falls back to — or races against — the other engine. The
// first successful fetch wins; both engines' errors are joined only
// when neither succeeds.
func (e *EasyListDom) race(ctx context.Context) (string, string, error) {
	remembered, hasMemory := e.memory.remembered(e.resourceURL)

	primary, secondary := e.chrome, e.plain
	if hasMemory && remembered == e.plain.name() {
		primary, secondary = e.plain, e.chrome
	}

	type result struct {
		payload string
		engine  string
		err     error
	}

	resultCh := make(chan result, 2)
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	launch := func(eng fetchEngine) {
		payload, err := eng.fetch(raceCtx, e.resourceURL)
		resultCh <- result{payload: payload, engine: eng.name(), err: err}
	}

	go launch(primary)

	secondaryStarted := make(chan struct{})
	go func() {
		if !hasMemory {
			// No prior success for this host: don't wait, race both
			// immediately (engine/dispatcher.go's default "race all"
			// behavior for an unseen target).
		} else {
			timer := time.NewTimer(e.staggerDelay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-raceCtx.Done():
				close(secondaryStarted)
				return
			}
		}
		close(secondaryStarted)
		launch(secondary)
	}()

	var errs []error
	for i := 0; i < 2; i++ {
		select {
		case res := <-resultCh:
			if res.err == nil {
				cancel()
				return res.payload, res.engine, nil
			}
			errs = append(errs, res.err)
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
		if i == 0 {
			// Ensure the second engine has at least had a chance to
			// start before we give up after only the first result.
			<-secondaryStarted
		}
	}

	return "", "", errors.Join(errs...)
}
