// Package codec converts document text to and from the byte encoding a
// collaborative session is configured with.
package codec

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncoding is used when a session does not name one.
const DefaultEncoding = "UTF-8"

// Errors returned by codec operations.
var (
	// ErrUnknownEncoding is returned when no encoder exists for a name.
	ErrUnknownEncoding = errors.New("unknown text encoding")

	// ErrEncoderUnavailable is returned when text cannot be represented in
	// the session encoding.
	ErrEncoderUnavailable = errors.New("encoder unavailable for text")

	// ErrDecode is returned when received bytes are not valid in the
	// session encoding.
	ErrDecode = errors.New("cannot decode text")
)

// Codec encodes and decodes text for one named encoding.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// UTF8 returns the default codec.
func UTF8() *Codec {
	return &Codec{name: DefaultEncoding, enc: unicode.UTF8}
}

// Lookup returns the codec for an IANA encoding name ("UTF-8",
// "ISO-8859-1", "windows-1252", ...). An empty name selects UTF-8.
func Lookup(name string) (*Codec, error) {
	if name == "" || strings.EqualFold(name, DefaultEncoding) || strings.EqualFold(name, "utf8") {
		return UTF8(), nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
	if enc == nil {
		// Known to the index but not implemented by x/text.
		return nil, fmt.Errorf("%w: %s (unsupported)", ErrUnknownEncoding, name)
	}
	canonical, err := ianaindex.MIME.Name(enc)
	if err != nil {
		if canonical, err = ianaindex.IANA.Name(enc); err != nil {
			canonical = name
		}
	}
	return &Codec{name: canonical, enc: enc}, nil
}

// Name returns the canonical encoding name.
func (c *Codec) Name() string {
	return c.name
}

// Encode converts text to the session encoding.
func (c *Codec) Encode(text string) ([]byte, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: invalid UTF-8 input", ErrEncoderUnavailable)
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %v", ErrEncoderUnavailable, c.name, err)
	}
	return out, nil
}

// Decode converts bytes in the session encoding to text.
func (c *Codec) Decode(chunk []byte) (string, error) {
	if c.enc == unicode.UTF8 {
		if !utf8.Valid(chunk) {
			return "", fmt.Errorf("%w (%s)", ErrDecode, c.name)
		}
		return string(chunk), nil
	}
	out, err := c.enc.NewDecoder().Bytes(chunk)
	if err != nil {
		return "", fmt.Errorf("%w (%s): %v", ErrDecode, c.name, err)
	}
	return string(out), nil
}

// Len returns the number of characters chunk decodes to.
func (c *Codec) Len(chunk []byte) (int, error) {
	text, err := c.Decode(chunk)
	if err != nil {
		return 0, err
	}
	return utf8.RuneCountInString(text), nil
}
