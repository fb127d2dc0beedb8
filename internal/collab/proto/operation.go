// Package proto defines the operations exchanged with a collaborative session
// and the JSON messages that carry them over a connection.
package proto

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind distinguishes insertions from erasures.
type Kind uint8

const (
	// KindInsert inserts Chunk at Offset.
	KindInsert Kind = iota + 1
	// KindErase removes Length characters at Offset.
	KindErase
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindErase:
		return "erase"
	default:
		return "unknown"
	}
}

func parseKind(s string) Kind {
	switch s {
	case "insert":
		return KindInsert
	case "erase":
		return KindErase
	default:
		return 0
	}
}

// ErrInvalidOperation is returned by Validate.
var ErrInvalidOperation = errors.New("invalid operation")

// Operation is the unit exchanged with the session. Offsets and lengths
// count characters; Chunk holds inserted text in the session encoding.
type Operation struct {
	Kind   Kind
	Offset int
	Length int
	Chunk  []byte
	UserID uuid.UUID

	// Revision is assigned by the session when it linearizes the operation.
	// Zero for operations that have not been accepted yet.
	Revision uint64
}

// NewInsert creates an insertion of length characters encoded in chunk.
func NewInsert(offset int, chunk []byte, length int, userID uuid.UUID) Operation {
	return Operation{Kind: KindInsert, Offset: offset, Length: length, Chunk: chunk, UserID: userID}
}

// NewErase creates an erasure.
func NewErase(offset, length int, userID uuid.UUID) Operation {
	return Operation{Kind: KindErase, Offset: offset, Length: length, UserID: userID}
}

// IsInsert reports whether op is an insertion.
func (op Operation) IsInsert() bool {
	return op.Kind == KindInsert
}

// IsErase reports whether op is an erasure.
func (op Operation) IsErase() bool {
	return op.Kind == KindErase
}

// String returns a compact description for logs.
func (op Operation) String() string {
	switch op.Kind {
	case KindInsert:
		return fmt.Sprintf("insert@%d+%d(%dB) by %s", op.Offset, op.Length, len(op.Chunk), op.UserID)
	case KindErase:
		return fmt.Sprintf("erase@%d-%d by %s", op.Offset, op.Length, op.UserID)
	default:
		return "invalid operation"
	}
}

// Validate checks the shape of the operation, not its fit to a document.
func (op Operation) Validate() error {
	switch {
	case op.Kind != KindInsert && op.Kind != KindErase:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidOperation, op.Kind)
	case op.Offset < 0:
		return fmt.Errorf("%w: negative offset %d", ErrInvalidOperation, op.Offset)
	case op.Length < 0:
		return fmt.Errorf("%w: negative length %d", ErrInvalidOperation, op.Length)
	case op.Kind == KindInsert && len(op.Chunk) == 0:
		return fmt.Errorf("%w: empty insertion", ErrInvalidOperation)
	case op.UserID == uuid.Nil:
		return fmt.Errorf("%w: missing user", ErrInvalidOperation)
	}
	return nil
}
