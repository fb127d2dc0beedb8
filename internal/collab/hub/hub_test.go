package hub

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/dshills/collabedit/internal/collab/proto"
	"github.com/dshills/collabedit/internal/collab/relay"
)

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Close()
		srv.Close()
	})
	return s, srv
}

func wsURL(srv *httptest.Server, doc string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/docs/" + doc
}

func connect(t *testing.T, srv *httptest.Server, doc string) *testClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, doc), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func join(t *testing.T, srv *httptest.Server, doc, name string) (*testClient, proto.Message) {
	t.Helper()
	c := connect(t, srv, doc)
	c.send(proto.Message{Type: proto.TypeJoin, Name: name})
	welcome := c.read()
	if welcome.Type != proto.TypeWelcome {
		t.Fatalf("expected welcome, got %+v", welcome)
	}
	return c, welcome
}

func (c *testClient) send(m proto.Message) {
	c.t.Helper()
	data, err := proto.Encode(m)
	if err != nil {
		c.t.Fatalf("Encode: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("WriteMessage: %v", err)
	}
}

func (c *testClient) read() proto.Message {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("ReadMessage: %v", err)
	}
	m, err := proto.Decode(data)
	if err != nil {
		c.t.Fatalf("Decode(%s): %v", data, err)
	}
	return m
}

func (c *testClient) insert(offset int, text string) {
	c.t.Helper()
	op := proto.Operation{Kind: proto.KindInsert, Offset: offset, Length: len([]rune(text)), Chunk: []byte(text)}
	c.send(proto.Message{Type: proto.TypeOp, Op: &op})
}

func TestServer_Welcome(t *testing.T) {
	s, srv := newTestServer(t, Config{})
	if err := s.Open("notes", "hello"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, welcome := join(t, srv, "notes", "alice")
	if welcome.User == nil || welcome.User.Name != "alice" {
		t.Fatalf("self = %+v", welcome.User)
	}
	if welcome.Text != "hello" || welcome.Encoding != "UTF-8" {
		t.Errorf("snapshot = %q %q", welcome.Text, welcome.Encoding)
	}
	if len(welcome.Users) != 1 || welcome.Users[0].ID != welcome.User.ID {
		t.Errorf("users = %+v", welcome.Users)
	}

	if err := s.Open("notes", ""); err == nil {
		t.Error("expected ErrDocumentExists")
	}
}

func TestServer_BroadcastsToOthers(t *testing.T) {
	s, srv := newTestServer(t, Config{})
	if err := s.Open("notes", "hello"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	a, welcomeA := join(t, srv, "notes", "alice")
	b, welcomeB := join(t, srv, "notes", "bob")
	if len(welcomeB.Users) != 2 {
		t.Errorf("bob sees %d users, expected 2", len(welcomeB.Users))
	}
	if m := a.read(); m.Type != proto.TypeUserJoined || m.User.Name != "bob" {
		t.Fatalf("expected user-joined for bob, got %+v", m)
	}

	a.insert(5, " world")
	m := b.read()
	if m.Type != proto.TypeOp || m.Op == nil {
		t.Fatalf("expected op, got %+v", m)
	}
	if m.Op.UserID != welcomeA.User.ID || m.Op.Offset != 5 || string(m.Op.Chunk) != " world" || m.Op.Revision != 1 {
		t.Errorf("op = %+v", *m.Op)
	}
	if text, _ := s.Text("notes"); text != "hello world" {
		t.Errorf("Text() = %q", text)
	}

	// The sender is not echoed its own op; the next thing it sees is the
	// result of its undo, which goes to everyone.
	a.send(proto.Message{Type: proto.TypeUndo})
	for _, c := range []*testClient{a, b} {
		m := c.read()
		if m.Type != proto.TypeOp || !m.Op.IsErase() || m.Op.Offset != 5 || m.Op.Length != 6 {
			t.Errorf("expected undo erase, got %+v", m)
		}
	}
	if text, _ := s.Text("notes"); text != "hello" {
		t.Errorf("Text() after undo = %q", text)
	}
}

func TestServer_RejectsInvalidOperations(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	a, _ := join(t, srv, "notes", "alice")

	tests := []struct {
		name string
		send func()
	}{
		{"out of range", func() {
			op := proto.Operation{Kind: proto.KindErase, Offset: 3, Length: 1}
			a.send(proto.Message{Type: proto.TypeOp, Op: &op})
		}},
		{"nothing to undo", func() { a.send(proto.Message{Type: proto.TypeUndo}) }},
		{"unexpected type", func() { a.send(proto.Message{Type: proto.TypeJoin, Name: "again"}) }},
		{"op without body", func() { a.send(proto.Message{Type: proto.TypeOp}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.send()
			if m := a.read(); m.Type != proto.TypeError || m.Error == "" {
				t.Errorf("expected error message, got %+v", m)
			}
		})
	}
}

func TestServer_RequiresJoin(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	c := connect(t, srv, "notes")
	c.send(proto.Message{Type: proto.TypeUndo})

	if m := c.read(); m.Type != proto.TypeError {
		t.Fatalf("expected error, got %+v", m)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := c.conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed")
	}
}

func TestServer_AnnouncesLeave(t *testing.T) {
	_, srv := newTestServer(t, Config{})
	a, _ := join(t, srv, "notes", "alice")
	b, welcomeB := join(t, srv, "notes", "bob")
	_ = a.read() // bob joined

	_ = b.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = b.conn.Close()

	m := a.read()
	if m.Type != proto.TypeUserLeft || m.User.ID != welcomeB.User.ID {
		t.Errorf("expected user-left for bob, got %+v", m)
	}
}

func TestServer_HTTPEndpoints(t *testing.T) {
	s, srv := newTestServer(t, Config{})
	_ = s.Open("b-notes", "second")
	_ = s.Open("a-notes", "first")

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	code, body := get("/docs")
	if code != http.StatusOK {
		t.Fatalf("GET /docs = %d", code)
	}
	names := gjson.Get(body, "documents").Array()
	if len(names) != 2 || names[0].String() != "a-notes" || names[1].String() != "b-notes" {
		t.Errorf("documents = %s", body)
	}

	if code, body := get("/docs/a-notes"); code != http.StatusOK || body != "first" {
		t.Errorf("GET /docs/a-notes = %d %q", code, body)
	}
	if code, _ := get("/docs/missing"); code != http.StatusNotFound {
		t.Errorf("GET /docs/missing = %d, expected 404", code)
	}
}

func TestServer_UnknownEncoding(t *testing.T) {
	if _, err := New(Config{Encoding: "no-such-encoding"}); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestServer_Relay(t *testing.T) {
	broker := relay.NewBroker()
	s1, srv1 := newTestServer(t, Config{Relay: broker.Relay()})
	s2, srv2 := newTestServer(t, Config{Relay: broker.Relay()})

	a, _ := join(t, srv1, "shared", "alice")
	b, _ := join(t, srv2, "shared", "bob")

	if m := a.read(); m.Type != proto.TypeUserJoined || m.User.Name != "bob" {
		t.Fatalf("expected relayed user-joined, got %+v", m)
	}

	a.insert(0, "hi")
	if m := b.read(); m.Type != proto.TypeOp || string(m.Op.Chunk) != "hi" {
		t.Fatalf("expected relayed op, got %+v", m)
	}

	t1, _ := s1.Text("shared")
	t2, _ := s2.Text("shared")
	if t1 != "hi" || t2 != "hi" {
		t.Errorf("texts = %q, %q", t1, t2)
	}
}
