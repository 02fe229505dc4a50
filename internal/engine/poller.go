package engine

import (
	"context"
	"errors"
	"time"

	"consentgate/pkg/platform/sentinel"
)

// pollIntervals is the adaptive configuration-refresh cadence: short while
// the device is mid-decision, long once a valid consent is on record,
// shortest in an explicit preview context.
type pollIntervals struct {
	Short   time.Duration
	Long    time.Duration
	Preview time.Duration
}

var defaultPollIntervals = pollIntervals{
	Short:   time.Minute,
	Long:    15 * time.Minute,
	Preview: 10 * time.Second,
}

// StartPolling begins the periodic configuration refresh. Polling stops on
// context cancellation, StopPolling, or a gone configuration.
func (e *Engine) StartPolling(ctx context.Context) {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()
	if e.pollStop != nil {
		return
	}
	e.pollStop = make(chan struct{})
	e.pollDone = make(chan struct{})
	go e.pollLoop(ctx, e.pollStop, e.pollDone)
}

// StopPolling halts the refresh loop and waits for it to exit.
func (e *Engine) StopPolling() {
	e.pollMu.Lock()
	stop, done := e.pollStop, e.pollDone
	e.pollStop, e.pollDone = nil, nil
	e.pollMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (e *Engine) pollLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	timer := time.NewTimer(e.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-timer.C:
		}

		e.mu.Lock()
		err := e.refreshConfigLocked(ctx)
		e.mu.Unlock()

		if errors.Is(err, sentinel.ErrGone) {
			// The configuration no longer exists; this instance is done.
			e.logger.Warn("widget configuration gone, stopping refresh")
			e.mu.Lock()
			if terr := e.transition(StateError); terr != nil {
				e.logger.Warn("transition to error state refused", "error", terr.Error())
			}
			e.mu.Unlock()
			return
		}
		if err != nil {
			e.logger.Warn("configuration refresh failed", "error", err.Error())
		}

		timer.Reset(e.nextInterval())
	}
}

// nextInterval picks the cadence from the current decision state.
func (e *Engine) nextInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap != nil && e.snap.Features.Preview {
		return e.intervals.Preview
	}
	if e.consent != nil && e.consent.Decided() && !e.consent.IsExpired(e.now(), e.consentDurationLocked()) {
		return e.intervals.Long
	}
	return e.intervals.Short
}

func (e *Engine) consentDurationLocked() time.Duration {
	if e.snap == nil {
		return 0
	}
	return e.snap.Features.ConsentDuration
}
