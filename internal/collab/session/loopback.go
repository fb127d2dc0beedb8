package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/collabedit/internal/collab/codec"
	"github.com/dshills/collabedit/internal/collab/docstate"
	"github.com/dshills/collabedit/internal/collab/proto"
	"github.com/dshills/collabedit/internal/collab/user"
	"github.com/dshills/collabedit/internal/logging"
)

// Loopback is an in-process session hosting several participants of one
// document. It is safe for concurrent use.
type Loopback struct {
	mu      sync.Mutex
	state   *docstate.State
	palette *user.Palette
	peers   []*Peer
	logger  *logging.Logger
}

// NewLoopback creates an in-process session for a document with initial
// text. A nil codec selects UTF-8.
func NewLoopback(name, text string, c *codec.Codec, logger *logging.Logger) *Loopback {
	if logger == nil {
		logger = logging.Null()
	}
	return &Loopback{
		state:   docstate.New(name, text, c),
		palette: user.NewPalette(),
		logger:  logger.WithComponent("loopback").WithField("doc", name),
	}
}

// Text returns the authoritative content.
func (l *Loopback) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Text()
}

// Join adds a participant. Operations of other participants reach handler
// through post, called from a goroutine owned by the participant; the
// participant's own operations reach it synchronously. With a nil post,
// other participants' operations run handler on the submitting goroutine.
func (l *Loopback) Join(name string, handler Handler, post Poster) (*Peer, Snapshot, error) {
	if handler == nil {
		return nil, Snapshot{}, fmt.Errorf("%w: nil handler", ErrHandshake)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	p := &Peer{
		lb:      l,
		user:    user.New(name, l.palette.Next()),
		handler: handler,
		post:    post,
	}
	if post != nil {
		p.out = newOutbox()
		go p.pump(l.logger)
	}
	l.peers = append(l.peers, p)
	l.logger.Info("%s joined", p.user)

	snap := Snapshot{
		Text:     l.state.Text(),
		Encoding: l.state.Codec().Name(),
		Revision: l.state.Revision(),
	}
	for _, other := range l.peers {
		snap.Users = append(snap.Users, other.user)
	}
	return p, snap, nil
}

// submit applies a change on behalf of origin and distributes the result.
// Deliveries to other participants are queued under l.mu, so every peer
// sees operations in the order they were linearized, and handed to their
// Poster by the peer's pump without holding any Loopback lock.
func (l *Loopback) submit(origin *Peer, apply func(*docstate.State) (proto.Operation, error)) error {
	l.mu.Lock()
	if origin.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	op, err := apply(l.state)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	author := origin.user
	var direct []func()
	for _, p := range l.peers {
		if p == origin {
			continue
		}
		h := p.handler
		fn := func() { h(op, author) }
		if p.out == nil {
			direct = append(direct, fn)
			continue
		}
		p.out.push(fn)
	}
	l.mu.Unlock()

	origin.handler(op, author)
	for _, fn := range direct {
		fn()
	}
	return nil
}

// Flush blocks until every queued delivery has been handed to its
// participant's Poster.
func (l *Loopback) Flush() {
	l.mu.Lock()
	peers := append([]*Peer(nil), l.peers...)
	l.mu.Unlock()
	for _, p := range peers {
		if p.out != nil {
			p.out.wait()
		}
	}
}

// Close removes every participant and stops their pumps. Pending deliveries
// are discarded.
func (l *Loopback) Close() error {
	l.mu.Lock()
	peers := append([]*Peer(nil), l.peers...)
	l.mu.Unlock()
	for _, p := range peers {
		l.leave(p)
	}
	return nil
}

func (l *Loopback) leave(p *Peer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for i, other := range l.peers {
		if other == p {
			l.peers = append(l.peers[:i], l.peers[i+1:]...)
			break
		}
	}
	if p.out != nil {
		p.out.stop()
	}
	l.state.Forget(p.user.ID)
	l.logger.Info("%s left", p.user)
}

// outbox is a participant's FIFO of pending deliveries.
type outbox struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	inflight bool
	stopped  bool
}

func newOutbox() *outbox {
	o := &outbox{}
	o.cond = sync.NewCond(&o.mu)
	return o
}

func (o *outbox) push(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	o.queue = append(o.queue, fn)
	o.cond.Broadcast()
}

// next takes the pending batch, waiting for one. It returns nil once the
// outbox is stopped.
func (o *outbox) next() []func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight = false
	o.cond.Broadcast()
	for len(o.queue) == 0 && !o.stopped {
		o.cond.Wait()
	}
	if o.stopped {
		return nil
	}
	batch := o.queue
	o.queue = nil
	o.inflight = true
	return batch
}

func (o *outbox) wait() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for (len(o.queue) > 0 || o.inflight) && !o.stopped {
		o.cond.Wait()
	}
}

func (o *outbox) stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
	o.queue = nil
	o.cond.Broadcast()
}

// pump hands queued deliveries to post in order until the outbox stops.
func (p *Peer) pump(logger *logging.Logger) {
	for {
		batch := p.out.next()
		if batch == nil {
			return
		}
		for _, fn := range batch {
			if err := p.post(fn); err != nil {
				logger.Warn("dropping delivery for %s: %v", p.user.Name, err)
			}
		}
	}
}

// Peer is a participant of a Loopback session.
type Peer struct {
	lb      *Loopback
	user    user.User
	handler Handler
	post    Poster
	out     *outbox
	closed  bool
}

// User returns the user assigned on join.
func (p *Peer) User() user.User {
	return p.user
}

// Codec returns the codec of the session.
func (p *Peer) Codec() *codec.Codec {
	return p.lb.state.Codec()
}

// Send submits an operation authored by the peer's user.
func (p *Peer) Send(_ context.Context, op proto.Operation) error {
	op.UserID = p.user.ID
	return p.lb.submit(p, func(s *docstate.State) (proto.Operation, error) {
		return s.Apply(op)
	})
}

// Undo reverts the peer's last operation.
func (p *Peer) Undo(_ context.Context) error {
	return p.lb.submit(p, func(s *docstate.State) (proto.Operation, error) {
		return s.Undo(p.user.ID)
	})
}

// Redo reapplies the peer's last undone operation.
func (p *Peer) Redo(_ context.Context) error {
	return p.lb.submit(p, func(s *docstate.State) (proto.Operation, error) {
		return s.Redo(p.user.ID)
	})
}

// Close leaves the session.
func (p *Peer) Close() error {
	p.lb.leave(p)
	return nil
}
