package session

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
)

// UntilIdle makes ReceiveLoop run until one poll interval passes without a
// frame, with no overall budget.
const UntilIdle time.Duration = -1

// ReceiveLoop reads and dispatches inbound frames.
//
// A total of 0 waits, without deadline, for exactly one frame. A positive
// total keeps reading while budget remains, waiting at most the poll
// interval (or the remaining budget, if smaller) for each frame; a wait
// that times out ends the loop normally. UntilIdle behaves like a positive
// total with unlimited budget.
//
// The loop returns nil when the hub closes the connection. Transport
// failures return homee.ErrStreamError, undecodable frames
// homee.ErrMalformedMessage, and dispatch failures their own error.
//
// Parameters:
//   - ctx: Cancels the wait
//   - total: 0, a positive budget, or UntilIdle
//
// Returns:
//   - error: nil on idle, budget exhausted or hub close; otherwise the failure
func (s *Session) ReceiveLoop(ctx context.Context, total time.Duration) error {
	pump, dispatcher, err := s.receiver()
	if err != nil {
		return err
	}

	if total == 0 {
		_, err := s.receiveOne(ctx, pump, dispatcher, 0)
		return err
	}

	remaining := total
	for {
		wait := s.cfg.PollInterval
		if total > 0 {
			if remaining <= 0 {
				return nil
			}
			wait = min(wait, remaining)
		}

		started := time.Now()
		more, err := s.receiveOne(ctx, pump, dispatcher, wait)
		if err != nil || !more {
			return err
		}
		if total > 0 {
			remaining -= time.Since(started)
		}
	}
}

// receiver returns the read side for the receive loop. Unlike live it lets
// the loop drain frames queued before the socket failed.
func (s *Session) receiver() (*readPump, *Dispatcher, error) {
	s.mu.RLock()
	pump, state := s.pump, s.state
	s.mu.RUnlock()
	if state != StateConnected || pump == nil || pump.stopped() {
		return nil, nil, homee.ErrNotConnected
	}
	d, err := s.activeDispatcher()
	if err != nil {
		return nil, nil, err
	}
	return pump, d, nil
}

// receiveOne waits up to wait (forever when wait is 0) for one frame and
// handles it. It reports whether the loop should continue.
func (s *Session) receiveOne(ctx context.Context, pump *readPump, d *Dispatcher, wait time.Duration) (bool, error) {
	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-pump.done:
		return false, homee.ErrNotConnected
	case <-timeout:
		return false, nil
	case f, ok := <-pump.frames:
		if !ok {
			return false, nil
		}
		return s.handleFrame(d, f)
	}
}

func (s *Session) handleFrame(d *Dispatcher, f frame) (bool, error) {
	if f.err != nil {
		if isClosedError(f.err) {
			s.logger.Info("homee closed the connection", "reason", f.err.Error())
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", homee.ErrStreamError, f.err)
	}

	if f.kind != websocket.TextMessage {
		return true, nil
	}
	if err := d.DispatchJSON(f.data); err != nil {
		return false, err
	}
	s.framesHandled.Add(1)
	return true, nil
}
