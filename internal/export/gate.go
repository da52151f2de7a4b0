package export

import (
	"context"
	"errors"
	"sync"
)

// State is the phase of an export session.
type State int

const (
	Idle State = iota
	Pending
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrReset     = errors.New("export session was reset")
	ErrNoSession = errors.New("no export in progress")
)

// Ticket identifies the session a decode belongs to. Signals carrying a
// ticket from an earlier session are ignored.
type Ticket struct {
	gen uint64
}

// Progress is what the export dialog shows while images load.
type Progress struct {
	State  State `json:"state"`
	Loaded int   `json:"loaded"`
	Total  int   `json:"total"`
}

type event int

const (
	evBegin event = iota
	evSignal
	evReset
)

// Gate counts decode completions for the current export session and opens
// once every expected image is accounted for. All state changes go through
// transition. The zero value is an Idle gate.
type Gate struct {
	mu       sync.Mutex
	state    State
	gen      uint64
	expected int
	received int
	ready    chan struct{}
	done     chan struct{}
}

func (g *Gate) transition(ev event, t Ticket, n int) (Ticket, bool) {
	switch ev {
	case evBegin:
		g.abandon()
		g.gen++
		g.state, g.expected, g.received = Pending, n, 0
		g.ready, g.done = make(chan struct{}), make(chan struct{})
	case evSignal:
		if g.state != Pending || t.gen != g.gen || g.received >= g.expected {
			return Ticket{gen: g.gen}, false
		}
		g.received++
		if g.received == g.expected {
			g.state = Ready
			close(g.ready)
		}
	case evReset:
		g.abandon()
		g.gen++
		g.state, g.expected, g.received = Idle, 0, 0
		g.ready, g.done = nil, nil
	}
	return Ticket{gen: g.gen}, true
}

// abandon wakes waiters of the current session.
func (g *Gate) abandon() {
	if g.done != nil {
		close(g.done)
	}
}

// Begin starts a session expecting n decodes. n == 0 never becomes Ready.
func (g *Gate) Begin(n int) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, _ := g.transition(evBegin, Ticket{}, n)
	return t
}

// Signal records one finished decode, successful or not. It reports whether
// the signal counted.
func (g *Gate) Signal(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.transition(evSignal, t, 0)
	return ok
}

func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transition(evReset, Ticket{}, 0)
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) Progress() Progress {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Progress{State: g.state, Loaded: g.received, Total: g.expected}
}

// Wait blocks until the current session is Ready. It returns ErrReset if
// the session is reset or replaced first.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if g.state == Idle {
		g.mu.Unlock()
		return ErrNoSession
	}
	ready, done := g.ready, g.done
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-done:
		return ErrReset
	case <-ctx.Done():
		return ctx.Err()
	}
}
