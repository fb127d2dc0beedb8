package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/collabedit/internal/collab/codec"
	"github.com/dshills/collabedit/internal/collab/docstate"
	"github.com/dshills/collabedit/internal/collab/proto"
	"github.com/dshills/collabedit/internal/collab/relay"
	"github.com/dshills/collabedit/internal/collab/user"
	"github.com/dshills/collabedit/internal/logging"
)

// document is one shared document and its connected participants.
type document struct {
	name        string
	logger      *logging.Logger
	relay       relay.Relay
	relayCancel func()

	mu      sync.Mutex
	state   *docstate.State
	palette *user.Palette
	peers   []*peer
	remote  map[uuid.UUID]user.User // participants of other hub instances
}

func newDocument(name, text string, c *codec.Codec, historyLimit int, r relay.Relay, logger *logging.Logger) *document {
	state := docstate.New(name, text, c)
	state.SetHistoryLimit(historyLimit)
	return &document{
		name:    name,
		logger:  logger.WithField("doc", name),
		relay:   r,
		state:   state,
		palette: user.NewPalette(),
		remote:  make(map[uuid.UUID]user.User),
	}
}

func (d *document) text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Text()
}

// join registers a participant and queues its welcome message.
func (d *document) join(p *peer, name string) error {
	d.mu.Lock()
	p.user = user.New(name, d.palette.Next())

	users := make([]user.User, 0, len(d.peers)+len(d.remote)+1)
	for _, other := range d.peers {
		users = append(users, other.user)
	}
	for _, u := range d.remote {
		users = append(users, u)
	}
	users = append(users, p.user)

	welcome, err := proto.Encode(proto.Message{
		Type:     proto.TypeWelcome,
		User:     &p.user,
		Users:    users,
		Text:     d.state.Text(),
		Encoding: d.state.Codec().Name(),
		Revision: d.state.Revision(),
	})
	if err != nil {
		d.mu.Unlock()
		return err
	}
	announce, err := proto.Encode(proto.Message{Type: proto.TypeUserJoined, User: &p.user})
	if err != nil {
		d.mu.Unlock()
		return err
	}

	p.enqueue(welcome)
	d.broadcastLocked(announce, nil)
	d.peers = append(d.peers, p)
	d.mu.Unlock()

	d.logger.Info("%s joined", p.user)
	d.publish(announce)
	return nil
}

// leave removes a participant and announces it.
func (d *document) leave(p *peer) {
	d.mu.Lock()
	if !d.removeLocked(p) {
		d.mu.Unlock()
		return
	}
	d.state.Forget(p.user.ID)
	announce, err := proto.Encode(proto.Message{Type: proto.TypeUserLeft, User: &p.user})
	if err == nil {
		d.broadcastLocked(announce, nil)
	}
	d.mu.Unlock()

	d.logger.Info("%s left", p.user)
	if err == nil {
		d.publish(announce)
	}
}

// apply linearizes an operation from p and forwards it to everyone else.
// The sender already applied it locally.
func (d *document) apply(p *peer, op proto.Operation) {
	op.UserID = p.user.ID
	d.commit(p, func() (proto.Operation, error) { return d.state.Apply(op) }, false)
}

// undo reverts p's last operation and sends the result to everyone.
func (d *document) undo(p *peer) {
	d.commit(p, func() (proto.Operation, error) { return d.state.Undo(p.user.ID) }, true)
}

// redo reapplies p's last undone operation and sends the result to everyone.
func (d *document) redo(p *peer) {
	d.commit(p, func() (proto.Operation, error) { return d.state.Redo(p.user.ID) }, true)
}

func (d *document) commit(p *peer, fn func() (proto.Operation, error), includeOrigin bool) {
	d.mu.Lock()
	op, err := fn()
	if err != nil {
		d.mu.Unlock()
		d.logger.Warn("rejected request from %s: %v", p.user.Name, err)
		d.sendError(p, err)
		return
	}
	msg, err := proto.Encode(proto.Message{Type: proto.TypeOp, Op: &op})
	if err != nil {
		d.mu.Unlock()
		d.logger.Error("encoding %s: %v", op, err)
		return
	}
	except := p
	if includeOrigin {
		except = nil
	}
	d.broadcastLocked(msg, except)
	d.mu.Unlock()

	d.logger.Debug("applied %s", op)
	d.publish(msg)
}

func (d *document) sendError(p *peer, err error) {
	msg, encErr := proto.Encode(proto.Message{Type: proto.TypeError, Error: err.Error()})
	if encErr != nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLocked(p) {
		p.enqueue(msg)
	}
}

// handleRelayed applies a message from another hub instance.
func (d *document) handleRelayed(payload []byte) {
	m, err := proto.Decode(payload)
	if err != nil {
		d.logger.Warn("ignoring relayed message: %v", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch m.Type {
	case proto.TypeOp:
		if m.Op == nil {
			return
		}
		op, err := d.state.Apply(*m.Op)
		if err != nil {
			d.logger.Warn("dropping relayed %s: %v", m.Op, err)
			return
		}
		msg, err := proto.Encode(proto.Message{Type: proto.TypeOp, Op: &op})
		if err != nil {
			return
		}
		d.broadcastLocked(msg, nil)

	case proto.TypeUserJoined, proto.TypeUserLeft:
		if m.User == nil {
			return
		}
		if m.Type == proto.TypeUserJoined {
			d.remote[m.User.ID] = *m.User
		} else {
			delete(d.remote, m.User.ID)
			d.state.Forget(m.User.ID)
		}
		d.broadcastLocked(payload, nil)
	}
}

func (d *document) publish(msg []byte) {
	if d.relay == nil {
		return
	}
	if err := d.relay.Publish(context.Background(), d.name, msg); err != nil {
		d.logger.Warn("relay publish failed: %v", err)
	}
}

// broadcastLocked queues msg for every participant except one. Participants
// that cannot keep up are disconnected. Caller holds d.mu.
func (d *document) broadcastLocked(msg []byte, except *peer) {
	var slow []*peer
	for _, p := range d.peers {
		if p == except {
			continue
		}
		if !p.enqueue(msg) {
			slow = append(slow, p)
		}
	}
	for _, p := range slow {
		d.logger.Warn("disconnecting slow client %s", p.user.Name)
		d.removeLocked(p)
	}
}

// removeLocked detaches p and stops its writer. Caller holds d.mu.
func (d *document) removeLocked(p *peer) bool {
	for i, other := range d.peers {
		if other == p {
			d.peers = append(d.peers[:i], d.peers[i+1:]...)
			p.stop()
			return true
		}
	}
	return false
}

func (d *document) hasLocked(p *peer) bool {
	for _, other := range d.peers {
		if other == p {
			return true
		}
	}
	return false
}

func (d *document) participants() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.peers)
}

func (d *document) close() {
	d.mu.Lock()
	peers := append([]*peer(nil), d.peers...)
	for _, p := range peers {
		d.removeLocked(p)
	}
	d.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.Close()
	}
	if d.relayCancel != nil {
		d.relayCancel()
	}
}
