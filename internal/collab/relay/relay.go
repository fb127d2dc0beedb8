// Package relay fans document messages out between hub instances that
// serve the same documents.
package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrClosed is returned when using a closed relay.
var ErrClosed = errors.New("relay closed")

// Relay carries raw messages for a document between hub instances. A relay
// never hands an instance back its own messages.
type Relay interface {
	// Publish sends payload to every other instance subscribed to doc.
	Publish(ctx context.Context, doc string, payload []byte) error
	// Subscribe calls fn for every payload published to doc by another
	// instance until the returned cancel function is called.
	Subscribe(ctx context.Context, doc string, fn func(payload []byte)) (cancel func(), err error)
	// Close releases the relay.
	Close() error
}

// Channel returns the channel name used for a document.
func Channel(doc string) string {
	return "collabedit:doc:" + doc
}

// wrap tags payload with the publishing instance.
func wrap(origin string, payload []byte) ([]byte, error) {
	out, err := sjson.SetBytes([]byte(`{}`), "origin", origin)
	if err != nil {
		return nil, err
	}
	out, err = sjson.SetRawBytes(out, "payload", payload)
	if err != nil {
		return nil, fmt.Errorf("wrapping relay payload: %w", err)
	}
	return out, nil
}

// unwrap returns the origin and payload of a wrapped message.
func unwrap(data []byte) (origin string, payload []byte, ok bool) {
	if !gjson.ValidBytes(data) {
		return "", nil, false
	}
	r := gjson.ParseBytes(data)
	p := r.Get("payload")
	if !p.Exists() {
		return "", nil, false
	}
	return r.Get("origin").String(), []byte(p.Raw), true
}
