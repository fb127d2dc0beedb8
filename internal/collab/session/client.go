package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dshills/collabedit/internal/collab/codec"
	"github.com/dshills/collabedit/internal/collab/proto"
	"github.com/dshills/collabedit/internal/collab/user"
	"github.com/dshills/collabedit/internal/logging"
)

// ClientConfig configures a websocket session client.
type ClientConfig struct {
	// URL of the document on a hub, e.g. ws://host:7420/docs/notes.
	URL string
	// Name is the nickname to join with.
	Name string
	// MaxRetries is the number of dial attempts after the first one.
	MaxRetries uint64
	// HandshakeTimeout bounds the wait for the welcome message.
	HandshakeTimeout time.Duration
	// Logger receives connection diagnostics.
	Logger *logging.Logger
}

// DefaultClientConfig returns the client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxRetries:       5,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Client is a session participant connected to a hub over a websocket.
type Client struct {
	cfg    ClientConfig
	logger *logging.Logger
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	state   State
	self    user.User
	users   *user.Directory
	codec   *codec.Codec
	handler Handler
	post    Poster
	started bool
	err     error

	done chan struct{}
}

// Dial connects to a hub, joins the document and returns the client with
// the document snapshot. Call Start to begin receiving operations.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, Snapshot, error) {
	defaults := DefaultClientConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Null()
	}

	c := &Client{
		cfg:    cfg,
		logger: cfg.Logger.WithComponent("session").WithField("url", cfg.URL),
		state:  StateDisconnected,
		users:  user.NewDirectory(),
		done:   make(chan struct{}),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, Snapshot{}, err
	}
	c.conn = conn
	c.setState(StateSynchronizing)

	snap, err := c.handshake(ctx)
	if err != nil {
		_ = conn.Close()
		c.setState(StateDisconnected)
		return nil, Snapshot{}, err
	}
	return c, snap, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	attempt := 0
	op := func() error {
		attempt++
		var err error
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			c.logger.Debug("dial attempt %d failed: %v", attempt, err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("dialing %s after %d attempts: %w", c.cfg.URL, attempt, err)
	}
	return conn, nil
}

func (c *Client) handshake(ctx context.Context) (Snapshot, error) {
	if err := c.write(ctx, proto.Message{Type: proto.TypeJoin, Name: c.cfg.Name}); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	c.setState(StateJoining)

	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	m, err := proto.Decode(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	switch {
	case m.Type == proto.TypeError:
		return Snapshot{}, fmt.Errorf("%w: %s", ErrRejected, m.Error)
	case m.Type != proto.TypeWelcome || m.User == nil:
		return Snapshot{}, fmt.Errorf("%w: unexpected %q message", ErrHandshake, m.Type)
	}

	cd, err := codec.Lookup(m.Encoding)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	c.mu.Lock()
	c.self = *m.User
	c.codec = cd
	for _, u := range m.Users {
		c.users.Put(u)
	}
	c.users.Put(c.self)
	c.mu.Unlock()

	c.logger.Info("joined as %s", c.self)
	return Snapshot{
		Text:     m.Text,
		Encoding: cd.Name(),
		Revision: m.Revision,
		Users:    m.Users,
	}, nil
}

// Start begins delivering operations of other participants to handler
// through post, and moves the client to StateRunning.
func (c *Client) Start(handler Handler, post Poster) {
	c.mu.Lock()
	if c.started || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.handler = handler
	c.post = post
	c.started = true
	c.state = StateRunning
	c.mu.Unlock()

	go c.readPump()
}

func (c *Client) readPump() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.state == StateClosed
			if !closing {
				c.state = StateDisconnected
				c.err = err
			}
			c.mu.Unlock()
			if !closing && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("connection lost: %v", err)
			}
			return
		}

		m, err := proto.Decode(data)
		if err != nil {
			c.logger.Warn("ignoring message: %v", err)
			continue
		}
		c.dispatch(m)
	}
}

func (c *Client) dispatch(m proto.Message) {
	switch m.Type {
	case proto.TypeOp:
		if m.Op == nil {
			return
		}
		op := *m.Op
		c.mu.Lock()
		author := c.author(op.UserID)
		handler, post := c.handler, c.post
		c.mu.Unlock()
		if err := deliver(post, func() { handler(op, author) }); err != nil {
			c.logger.Warn("dropping %s: %v", op, err)
		}

	case proto.TypeUserJoined:
		if m.User != nil {
			c.mu.Lock()
			c.users.Put(*m.User)
			c.mu.Unlock()
			c.logger.Info("%s joined", m.User.Name)
		}

	case proto.TypeUserLeft:
		if m.User != nil {
			c.mu.Lock()
			c.users.Remove(m.User.ID)
			c.mu.Unlock()
			c.logger.Info("%s left", m.User.Name)
		}

	case proto.TypeError:
		c.logger.Warn("hub rejected request: %s", m.Error)

	default:
		c.logger.Debug("ignoring %q message", m.Type)
	}
}

// author resolves a user ID. Caller holds c.mu.
func (c *Client) author(id uuid.UUID) user.User {
	if u, ok := c.users.Get(id); ok {
		return u
	}
	return user.User{ID: id}
}

// Send submits a local operation and echoes it to the handler.
func (c *Client) Send(ctx context.Context, op proto.Operation) error {
	c.mu.Lock()
	if err := c.runningLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	op.UserID = c.self.ID
	self, handler := c.self, c.handler
	c.mu.Unlock()

	if err := c.write(ctx, proto.Message{Type: proto.TypeOp, Op: &op}); err != nil {
		return err
	}
	handler(op, self)
	return nil
}

// Undo asks the hub to revert the user's last operation. The resulting
// operation arrives like any other.
func (c *Client) Undo(ctx context.Context) error {
	return c.request(ctx, proto.TypeUndo)
}

// Redo asks the hub to reapply the user's last undone operation.
func (c *Client) Redo(ctx context.Context) error {
	return c.request(ctx, proto.TypeRedo)
}

func (c *Client) request(ctx context.Context, t proto.MessageType) error {
	c.mu.Lock()
	err := c.runningLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.write(ctx, proto.Message{Type: t})
}

func (c *Client) runningLocked() error {
	switch c.state {
	case StateRunning:
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return fmt.Errorf("%w: %s", ErrNotRunning, c.state)
	}
}

func (c *Client) write(ctx context.Context, m proto.Message) error {
	data, err := proto.Encode(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer func() { _ = c.conn.SetWriteDeadline(time.Time{}) }()
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close leaves the session and waits for the read pump to stop.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	started := c.started
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	if started {
		<-c.done
	}
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

// Self returns the user assigned by the hub.
func (c *Client) Self() user.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// Codec returns the session text codec.
func (c *Client) Codec() *codec.Codec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codec
}

// Users returns the participants currently known.
func (c *Client) Users() []user.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.users.All()
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed when the read pump stops.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.state = s
	}
}
