package conn

import (
	"sync"
	"sync/atomic"

	"github.com/shrek82/projectdb/transport"
)

// State is the lifecycle state of the managed handle.
type State int32

const (
	StateUnopened State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// handle is one logical connection. It is the transport observer of its
// session; once detached, late events are dropped.
type handle struct {
	id       uint64
	state    atomic.Int32
	detached atomic.Bool
	released atomic.Bool
	sess     transport.Session
	onEvent  func(h *handle, from, to State, err error)

	mu  sync.Mutex
	err error
}

func newHandle(id uint64, onEvent func(h *handle, from, to State, err error)) *handle {
	h := &handle{id: id, onEvent: onEvent}
	h.state.Store(int32(StateConnecting))
	return h
}

func (h *handle) State() State {
	return State(h.state.Load())
}

// transition moves from one of the given states to next.
func (h *handle) transition(next State, from ...State) (State, bool) {
	for {
		cur := State(h.state.Load())
		allowed := false
		for _, f := range from {
			if cur == f {
				allowed = true
				break
			}
		}
		if !allowed {
			return cur, false
		}
		if h.state.CompareAndSwap(int32(cur), int32(next)) {
			return cur, true
		}
	}
}

func (h *handle) Ended() {
	if h.detached.Load() {
		return
	}
	if prev, ok := h.transition(StateClosed, StateConnecting, StateOpen); ok && h.onEvent != nil {
		h.onEvent(h, prev, StateClosed, nil)
	}
}

func (h *handle) Failed(err error) {
	if h.detached.Load() {
		return
	}
	h.setErr(err)
	if prev, ok := h.transition(StateErrored, StateConnecting, StateOpen); ok && h.onEvent != nil {
		h.onEvent(h, prev, StateErrored, err)
	}
}

func (h *handle) setErr(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

func (h *handle) lastErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// release cancels in-flight work, detaches the observer and closes the
// session. It runs at most once; detach and close happen even if cancel panics.
func (h *handle) release() (err error) {
	if !h.released.CompareAndSwap(false, true) {
		return nil
	}
	defer func() {
		h.detached.Store(true)
		if h.sess != nil {
			err = h.sess.Close()
		}
	}()
	if h.sess != nil {
		h.sess.Cancel()
	}
	return nil
}
