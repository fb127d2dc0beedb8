// Package hub serves shared documents to session clients over websockets.
//
// Each document lives at /docs/{name}. The hub holds the authoritative text,
// assigns every joining client a user, linearizes operations in arrival
// order and broadcasts them to the other participants.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/tidwall/sjson"

	"github.com/dshills/collabedit/internal/collab/codec"
	"github.com/dshills/collabedit/internal/collab/relay"
	"github.com/dshills/collabedit/internal/logging"
)

// ErrDocumentExists is returned by Open for a name already in use.
var ErrDocumentExists = errors.New("document already exists")

// Config configures a Server.
type Config struct {
	// Encoding is the text encoding announced to clients.
	Encoding string
	// HistoryLimit bounds the undo history per user.
	HistoryLimit int
	// JoinTimeout bounds the wait for a client's join message.
	JoinTimeout time.Duration
	// Relay, when set, shares documents with other hub instances.
	Relay relay.Relay
	// Logger receives hub diagnostics.
	Logger *logging.Logger
}

// DefaultConfig returns the hub defaults.
func DefaultConfig() Config {
	return Config{
		Encoding:    codec.DefaultEncoding,
		JoinTimeout: 10 * time.Second,
	}
}

// Server is a websocket hub for shared documents.
type Server struct {
	cfg      Config
	codec    *codec.Codec
	logger   *logging.Logger
	router   *mux.Router
	upgrader websocket.Upgrader

	mu     sync.Mutex
	docs   map[string]*document
	closed bool
}

// New creates a hub.
func New(cfg Config) (*Server, error) {
	defaults := DefaultConfig()
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaults.JoinTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Null()
	}
	cd, err := codec.Lookup(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		codec:  cd,
		logger: cfg.Logger.WithComponent("hub"),
		docs:   make(map[string]*document),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/docs", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/docs/{name:[A-Za-z0-9._-]+}", s.handleDocument).Methods(http.MethodGet)
	s.router = r
	return s, nil
}

// Handler returns the HTTP handler of the hub.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Open creates a document with initial text.
func (s *Server) Open(name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDocumentExists, name)
	}
	d, err := s.newDocument(name, text)
	if err != nil {
		return err
	}
	s.docs[name] = d
	return nil
}

// Documents returns the names of open documents, sorted.
func (s *Server) Documents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Text returns the current content of a document.
func (s *Server) Text(name string) (string, bool) {
	s.mu.Lock()
	d, ok := s.docs[name]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	return d.text(), true
}

// Close disconnects every client and detaches from the relay.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	docs := make([]*document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.Unlock()

	for _, d := range docs {
		d.close()
	}
	return nil
}

// document returns the named document, creating it empty on first use.
func (s *Server) document(name string) (*document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("hub closed")
	}
	if d, ok := s.docs[name]; ok {
		return d, nil
	}
	d, err := s.newDocument(name, "")
	if err != nil {
		return nil, err
	}
	s.docs[name] = d
	return d, nil
}

// newDocument creates a document. Caller holds s.mu.
func (s *Server) newDocument(name, text string) (*document, error) {
	d := newDocument(name, text, s.codec, s.cfg.HistoryLimit, s.cfg.Relay, s.logger)
	if s.cfg.Relay != nil {
		cancel, err := s.cfg.Relay.Subscribe(context.Background(), name, d.handleRelayed)
		if err != nil {
			return nil, fmt.Errorf("subscribing %s to relay: %w", name, err)
		}
		d.relayCancel = cancel
	}
	s.logger.Info("opened document %s", name)
	return d, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	body := []byte(`{"documents":[]}`)
	for _, name := range s.Documents() {
		body, _ = sjson.SetBytes(body, "documents.-1", name)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if !websocket.IsWebSocketUpgrade(r) {
		text, ok := s.Text(name)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(text))
		return
	}

	d, err := s.document(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed: %v", err)
		return
	}
	s.serve(d, conn)
}
