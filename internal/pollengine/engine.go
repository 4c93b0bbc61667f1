// Package pollengine implements PollEngine: the single-threaded
// cooperative scheduler that owns per-subscription runtime state, drives
// the tick loop, fetches entries, dedups and filters them, delivers
// survivors, and advances watermarks.
package pollengine

import (
	"context"
	"sync"
	"time"

	"x2discord/internal/audit"
	"x2discord/internal/filter"
	"x2discord/internal/logging"
	"x2discord/internal/model"
	"x2discord/internal/ratelimit"
)

// tickInterval is the inter-tick sleep (step 5 of the tick loop).
const tickInterval = 1 * time.Second

// emptySleep is how long the loop sleeps when the subscription list is
// empty (step 2).
const emptySleep = 5 * time.Second

// maxResultsSteadyState is the page size requested once a watermark
// exists; first polls request only 1 (the newest entry) to seed state
// without ever delivering a backlog.
const maxResultsSteadyState = 5
const maxResultsFirstPoll = 1

// Engine drives the poll/filter/dedup/deliver loop described in spec §4.1.
type Engine struct {
	subs       model.SubStore
	watermarks model.WatermarkStore
	dedup      model.DedupStore
	feed       model.FeedClient
	notifier   model.Notifier
	rateGate   *ratelimit.Gate
	ledger     *audit.Ledger
	log        *logging.Logger

	now func() time.Time

	// states is touched only by the tick goroutine; no locking required.
	states map[model.Key]*model.PollState

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs an Engine. ledger and logger may be nil; a nil ledger
// disables audit recording and a nil logger falls back to the global one.
func New(subs model.SubStore, watermarks model.WatermarkStore, dedup model.DedupStore, feedClient model.FeedClient, notifier model.Notifier, rateGate *ratelimit.Gate, ledger *audit.Ledger, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.L()
	}
	if rateGate == nil {
		rateGate = ratelimit.New()
	}
	return &Engine{
		subs:       subs,
		watermarks: watermarks,
		dedup:      dedup,
		feed:       feedClient,
		notifier:   notifier,
		rateGate:   rateGate,
		ledger:     ledger,
		log:        logger,
		now:        time.Now,
		states:     make(map[model.Key]*model.PollState),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called or ctx is cancelled.
// Idempotent start is not required; callers should invoke Start from a
// single goroutine.
func (e *Engine) Start(ctx context.Context) {
	defer close(e.doneCh)

	for {
		if e.stopped(ctx) {
			return
		}

		subs, err := e.subs.List()
		if err != nil {
			e.log.Warn("subscription list failed", logging.Error(err))
			if e.sleep(ctx, emptySleep) {
				return
			}
			continue
		}

		if len(subs) == 0 {
			if e.sleep(ctx, emptySleep) {
				return
			}
			continue
		}

		now := e.now()
		var sent, filtered, errs int
		for _, sub := range subs {
			result := e.maybePoll(sub, now)
			sent += result.sent
			filtered += result.filtered
			if result.erred {
				errs++
			}
		}
		e.log.Info("tick complete",
			logging.Int("subscriptions_seen", len(subs)),
			logging.Int("sent", sent),
			logging.Int("filtered", filtered),
			logging.Int("errors", errs),
		)

		if e.sleep(ctx, tickInterval) {
			return
		}
	}
}

// Stop cooperatively requests termination and blocks until the in-flight
// tick completes.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	<-e.doneCh
}

func (e *Engine) stopped(ctx context.Context) bool {
	select {
	case <-e.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep waits for d, or returns true early if a stop was requested.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-e.stopCh:
		return true
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

type tickResult struct {
	sent     int
	filtered int
	erred    bool
}

// maybePoll implements maybe_poll(sub, now): seed state, consult RateGate,
// and run poll() only when the subscription is actually due.
func (e *Engine) maybePoll(sub model.Subscription, now time.Time) tickResult {
	key := model.Key{ChannelID: sub.ChannelID, Account: sub.Account}
	state, ok := e.states[key]
	if !ok {
		state = &model.PollState{BackoffMultiplier: 1}
		e.states[key] = state
	}

	if !state.HasLastID {
		if sub.LastTweetID != "" {
			state.LastID = sub.LastTweetID
			state.HasLastID = true
		} else if id, found, err := e.watermarks.Get(sub.ChannelID, sub.Account); err == nil && found {
			state.LastID = id
			state.HasLastID = true
		} else if err != nil {
			e.log.Warn("watermark read failed", logging.Error(err), logging.String("account", sub.Account))
		}
	}

	if okSpacing, earliest := e.rateGate.CheckSpacing(sub.Account, now); !okSpacing {
		if earliest.After(state.NextRun) {
			state.NextRun = earliest
		}
		return tickResult{}
	}

	if now.Before(state.NextRun) {
		return tickResult{}
	}

	return e.poll(sub, state, now)
}

// poll implements poll(sub, state): fetch, classify failures, and on
// success run the steady-state/first-poll dedup+filter+deliver pipeline.
func (e *Engine) poll(sub model.Subscription, state *model.PollState, now time.Time) tickResult {
	maxResults := maxResultsSteadyState
	if !state.HasLastID {
		maxResults = maxResultsFirstPoll
	}

	e.rateGate.RecordCall(sub.Account, now)

	entries, err := e.feed.Fetch(sub.Account, maxResults)
	if err != nil {
		return e.handleFetchError(sub, state, now, err)
	}

	state.NextRun = now.Add(time.Duration(sub.IntervalSeconds) * time.Second)
	state.BackoffMultiplier = 1

	if len(entries) == 0 {
		return tickResult{}
	}

	latestID := entries[0].ID

	if !state.HasLastID {
		state.LastID = latestID
		state.HasLastID = true
		if err := e.watermarks.Set(sub.ChannelID, sub.Account, latestID); err != nil {
			e.log.Warn("watermark write failed", logging.Error(err), logging.String("account", sub.Account))
		}
		return tickResult{}
	}

	type survivor struct {
		entry   model.Entry
		sendKey string
		idKey   string
		linkKey string
	}

	var survivors []survivor
	var filteredCount int

	for _, entry := range entries {
		if entry.ID == state.LastID {
			break
		}
		if entry.ID == "" && entry.Link == "" {
			e.log.Debug("malformed entry skipped", logging.String("account", sub.Account))
			continue
		}

		idKey := entry.ID
		linkKey := entry.Link

		if e.dedup.Contains(sub.ChannelID, idKey) || (linkKey != "" && e.dedup.Contains(sub.ChannelID, linkKey)) {
			continue
		}

		if !filter.ShouldInclude(entry, sub) {
			filteredCount++
			continue
		}

		sendKey := idKey
		if linkKey != "" {
			sendKey = linkKey
		}
		survivors = append(survivors, survivor{entry: entry, sendKey: sendKey, idKey: idKey, linkKey: linkKey})
	}

	// Invariant: the watermark advances even when every candidate was
	// filtered out, or the next tick would re-examine the same entries.
	state.LastID = latestID
	if err := e.watermarks.Set(sub.ChannelID, sub.Account, latestID); err != nil {
		e.log.Warn("watermark write failed", logging.Error(err), logging.String("account", sub.Account))
	}

	result := tickResult{filtered: filteredCount}

	for i := len(survivors) - 1; i >= 0; i-- {
		s := survivors[i]
		if err := e.notifier.Send(sub.ChannelID, sub.ThreadID, sub.Account, s.entry.Text, s.entry.Link); err != nil {
			e.log.Warn("send failed", logging.Error(err), logging.String("account", sub.Account))
			result.erred = true
			continue
		}
		e.dedup.Add(sub.ChannelID, s.sendKey)
		if s.idKey != "" && s.idKey != s.sendKey {
			e.dedup.Add(sub.ChannelID, s.idKey)
		}
		if s.linkKey != "" && s.linkKey != s.sendKey {
			e.dedup.Add(sub.ChannelID, s.linkKey)
		}
		if e.ledger != nil {
			if err := e.ledger.Record(sub.ChannelID, sub.Account, s.entry.ID, s.entry.Link); err != nil {
				e.log.Warn("ledger write failed", logging.Error(err))
			}
		}
		result.sent++
	}

	return result
}

func (e *Engine) handleFetchError(sub model.Subscription, state *model.PollState, now time.Time, err error) tickResult {
	fe, ok := err.(*model.FetchError)
	if !ok {
		state.NextRun = now.Add(time.Duration(sub.IntervalSeconds) * time.Second)
		e.log.Warn("fetch failed", logging.Error(err), logging.String("account", sub.Account))
		return tickResult{erred: true}
	}

	switch fe.StatusCode {
	case 429:
		delay, nextMultiplier := ratelimit.Backoff(sub.IntervalSeconds, state.BackoffMultiplier, fe.RetryAfterSeconds, fe.HasRetryAfter)
		candidate := now.Add(delay)
		if candidate.After(state.NextRun) {
			state.NextRun = candidate
		}
		state.BackoffMultiplier = nextMultiplier
		e.log.Warn("rate limited", logging.String("account", sub.Account))
	case 403:
		seconds := sub.IntervalSeconds
		if seconds < 60 {
			seconds = 60
		}
		state.NextRun = now.Add(time.Duration(seconds) * time.Second)
		e.log.Warn("forbidden", logging.String("account", sub.Account))
	default:
		state.NextRun = now.Add(time.Duration(sub.IntervalSeconds) * time.Second)
		e.log.Warn("upstream fetch error", logging.Error(fe), logging.String("account", sub.Account))
	}

	return tickResult{erred: true}
}
