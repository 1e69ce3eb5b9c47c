package service

import (
	"context"
	"errors"
	"time"

	"github.com/looplab/fsm"
)

// PollBudget is a named polling configuration: how many attempts a phase
// gets and how far apart they are. Verification resolves quickly
// (registry lookup) while mint/transfer/disconnect/delete wait on
// on-chain confirmation, hence the asymmetric budgets.
type PollBudget struct {
	MaxAttempts int
	Interval    time.Duration

	// MaxWaits caps how many inter-attempt waits occur. Zero means wait
	// after every attempt except the last. The removal flows stop
	// sleeping after the 19th attempt.
	MaxWaits int
}

var (
	verifyPoll   = PollBudget{MaxAttempts: 10, Interval: 5 * time.Second}
	mintPoll     = PollBudget{MaxAttempts: 30, Interval: 5 * time.Second}
	transferPoll = PollBudget{MaxAttempts: 30, Interval: 4 * time.Second}
	removalPoll  = PollBudget{MaxAttempts: 30, Interval: 5 * time.Second, MaxWaits: 19}
)

// Poll states and events.
const (
	statePolling   = "polling"
	stateSucceeded = "succeeded"
	stateExhausted = "exhausted"

	eventSucceed = "succeed"
	eventExhaust = "exhaust"
)

// errPollExhausted marks attempt-budget exhaustion, distinguishable from
// a hard transport error. Callers map it to their phase verdict.
var errPollExhausted = errors.New("poll attempts exhausted")

// probeFunc runs one polling attempt. done stops the poll as succeeded;
// a non-nil error aborts the poll immediately.
type probeFunc func(ctx context.Context, attempt int) (done bool, err error)

type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext waits for d unless the context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// pollUntil drives probe through the budget. Attempts are strictly
// sequential; nothing runs concurrently with another attempt.
func pollUntil(ctx context.Context, budget PollBudget, sleep sleepFunc, probe probeFunc) error {
	m := fsm.NewFSM(
		statePolling,
		fsm.Events{
			{Name: eventSucceed, Src: []string{statePolling}, Dst: stateSucceeded},
			{Name: eventExhaust, Src: []string{statePolling}, Dst: stateExhausted},
		},
		fsm.Callbacks{},
	)

	for attempt := 1; m.Is(statePolling); attempt++ {
		done, err := probe(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			if err := m.Event(ctx, eventSucceed); err != nil {
				return err
			}
			break
		}
		if attempt == budget.MaxAttempts {
			if err := m.Event(ctx, eventExhaust); err != nil {
				return err
			}
			break
		}
		if budget.MaxWaits > 0 && attempt > budget.MaxWaits {
			continue
		}
		if err := sleep(ctx, budget.Interval); err != nil {
			return err
		}
	}

	if m.Is(stateExhausted) {
		return errPollExhausted
	}
	return nil
}
