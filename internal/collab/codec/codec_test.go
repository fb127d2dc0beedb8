package codec

import (
	"errors"
	"testing"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "UTF-8", false},
		{"utf-8", "UTF-8", false},
		{"ISO-8859-1", "ISO-8859-1", false},
		{"latin1", "ISO-8859-1", false},
		{"no-such-encoding", "", true},
	}

	for _, tt := range tests {
		c, err := Lookup(tt.name)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownEncoding) {
				t.Errorf("Lookup(%q): expected ErrUnknownEncoding, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Lookup(%q) failed: %v", tt.name, err)
			continue
		}
		if c.Name() != tt.want {
			t.Errorf("Lookup(%q).Name() = %q, want %q", tt.name, c.Name(), tt.want)
		}
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	latin1, err := Lookup("ISO-8859-1")
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}

	for _, c := range []*Codec{UTF8(), latin1} {
		b, err := c.Encode("héllo\n")
		if err != nil {
			t.Fatalf("%s: Encode() failed: %v", c.Name(), err)
		}
		s, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s: Decode() failed: %v", c.Name(), err)
		}
		if s != "héllo\n" {
			t.Errorf("%s: round trip gave %q", c.Name(), s)
		}
		if n, _ := c.Len(b); n != 6 {
			t.Errorf("%s: Len() = %d, want 6", c.Name(), n)
		}
	}

	if b, _ := latin1.Encode("é"); len(b) != 1 {
		t.Errorf("latin1 should encode é in one byte, got %d", len(b))
	}
}

func TestCodec_EncoderUnavailable(t *testing.T) {
	latin1, _ := Lookup("ISO-8859-1")

	if _, err := latin1.Encode("price: €5"); !errors.Is(err, ErrEncoderUnavailable) {
		t.Errorf("expected ErrEncoderUnavailable, got %v", err)
	}
	if _, err := UTF8().Encode(string([]byte{0xff})); !errors.Is(err, ErrEncoderUnavailable) {
		t.Errorf("expected ErrEncoderUnavailable for invalid input, got %v", err)
	}
}

func TestCodec_DecodeInvalidUTF8(t *testing.T) {
	if _, err := UTF8().Decode([]byte{0xc3}); !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}
