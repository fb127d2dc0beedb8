package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dshills/collabedit/internal/collab/proto"
	"github.com/dshills/collabedit/internal/collab/user"
)

const (
	sendQueueSize = 256
	writeWait     = 10 * time.Second
)

// peer is one websocket connection to a document.
type peer struct {
	conn *websocket.Conn
	user user.User
	send chan []byte
	once sync.Once
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{conn: conn, send: make(chan []byte, sendQueueSize)}
}

// enqueue queues msg without blocking. Only called while the peer is
// attached to its document.
func (p *peer) enqueue(msg []byte) bool {
	select {
	case p.send <- msg:
		return true
	default:
		return false
	}
}

func (p *peer) stop() {
	p.once.Do(func() { close(p.send) })
}

func (p *peer) writePump() {
	defer p.conn.Close()
	for msg := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// serve runs the join handshake and then reads requests until the
// connection ends.
func (s *Server) serve(d *document, conn *websocket.Conn) {
	log := s.logger.WithField("doc", d.name).WithField("remote", conn.RemoteAddr())

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.JoinTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Debug("no join message: %v", err)
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	m, err := proto.Decode(data)
	if err != nil || m.Type != proto.TypeJoin {
		reject(conn, "expected join message")
		return
	}

	p := newPeer(conn)
	if err := d.join(p, m.Name); err != nil {
		log.Error("join failed: %v", err)
		reject(conn, err.Error())
		return
	}
	go p.writePump()
	defer d.leave(p)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read: %v", err)
			}
			return
		}
		m, err := proto.Decode(data)
		if err != nil {
			d.sendError(p, err)
			continue
		}

		switch m.Type {
		case proto.TypeOp:
			if m.Op == nil {
				d.sendError(p, proto.ErrInvalidOperation)
				continue
			}
			d.apply(p, *m.Op)
		case proto.TypeUndo:
			d.undo(p)
		case proto.TypeRedo:
			d.redo(p)
		default:
			d.sendError(p, &unexpectedError{m.Type})
		}
	}
}

type unexpectedError struct {
	typ proto.MessageType
}

func (e *unexpectedError) Error() string {
	return "unexpected message type " + string(e.typ)
}

func reject(conn *websocket.Conn, reason string) {
	if msg, err := proto.Encode(proto.Message{Type: proto.TypeError, Error: reason}); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, msg)
	}
	_ = conn.Close()
}
