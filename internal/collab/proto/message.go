package proto

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/collabedit/internal/collab/user"
)

// MessageType identifies a message on the wire.
type MessageType string

// Message types.
const (
	// TypeJoin is sent by a client to enter a session under a nickname.
	TypeJoin MessageType = "join"
	// TypeWelcome answers a join with the assigned user and a snapshot.
	TypeWelcome MessageType = "welcome"
	// TypeUserJoined announces another participant.
	TypeUserJoined MessageType = "user-joined"
	// TypeUserLeft announces a participant leaving.
	TypeUserLeft MessageType = "user-left"
	// TypeOp carries an operation in either direction.
	TypeOp MessageType = "op"
	// TypeUndo asks the session to undo the sender's last operation.
	TypeUndo MessageType = "undo"
	// TypeRedo asks the session to redo the sender's last undone operation.
	TypeRedo MessageType = "redo"
	// TypeError reports a rejected request.
	TypeError MessageType = "error"
)

// ErrMalformedMessage is returned when a message cannot be decoded.
var ErrMalformedMessage = errors.New("malformed message")

// Message is the envelope of everything sent over a session connection.
// Only the fields relevant to Type are set.
type Message struct {
	Type     MessageType
	Name     string      // join
	User     *user.User  // welcome (self), user-joined, user-left
	Users    []user.User // welcome
	Text     string      // welcome snapshot
	Encoding string      // welcome
	Revision uint64      // welcome
	Op       *Operation  // op
	Error    string      // error
}

// Encode serializes m as JSON.
func Encode(m Message) ([]byte, error) {
	buf := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			buf, err = sjson.SetBytes(buf, path, v)
		}
	}
	setRaw := func(path string, raw []byte) {
		if err == nil {
			buf, err = sjson.SetRawBytes(buf, path, raw)
		}
	}

	set("type", string(m.Type))
	if m.Name != "" {
		set("name", m.Name)
	}
	if m.User != nil {
		setRaw("user", encodeUser(*m.User))
	}
	if m.Users != nil {
		raw := []byte{'['}
		for i, u := range m.Users {
			if i > 0 {
				raw = append(raw, ',')
			}
			raw = append(raw, encodeUser(u)...)
		}
		raw = append(raw, ']')
		setRaw("users", raw)
	}
	if m.Type == TypeWelcome {
		set("text", m.Text)
		set("encoding", m.Encoding)
		set("revision", m.Revision)
	}
	if m.Op != nil {
		set("op.kind", m.Op.Kind.String())
		set("op.offset", m.Op.Offset)
		set("op.length", m.Op.Length)
		if len(m.Op.Chunk) > 0 {
			set("op.chunk", base64.StdEncoding.EncodeToString(m.Op.Chunk))
		}
		set("op.user", m.Op.UserID.String())
		if m.Op.Revision > 0 {
			set("op.revision", m.Op.Revision)
		}
	}
	if m.Error != "" {
		set("error", m.Error)
	}

	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", m.Type, err)
	}
	return buf, nil
}

func encodeUser(u user.User) []byte {
	raw := []byte(`{}`)
	raw, _ = sjson.SetBytes(raw, "id", u.ID.String())
	raw, _ = sjson.SetBytes(raw, "name", u.Name)
	raw, _ = sjson.SetBytes(raw, "color", u.HexColor())
	return raw
}

// Decode parses a JSON message.
func Decode(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return Message{}, fmt.Errorf("%w: invalid JSON", ErrMalformedMessage)
	}
	root := gjson.ParseBytes(data)

	m := Message{
		Type:     MessageType(root.Get("type").String()),
		Name:     root.Get("name").String(),
		Text:     root.Get("text").String(),
		Encoding: root.Get("encoding").String(),
		Revision: root.Get("revision").Uint(),
		Error:    root.Get("error").String(),
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	if u := root.Get("user"); u.Exists() {
		decoded, err := decodeUser(u)
		if err != nil {
			return Message{}, err
		}
		m.User = &decoded
	}

	if users := root.Get("users"); users.IsArray() {
		m.Users = []user.User{}
		var err error
		users.ForEach(func(_, v gjson.Result) bool {
			var u user.User
			if u, err = decodeUser(v); err != nil {
				return false
			}
			m.Users = append(m.Users, u)
			return true
		})
		if err != nil {
			return Message{}, err
		}
	}

	if op := root.Get("op"); op.Exists() {
		decoded, err := decodeOperation(op)
		if err != nil {
			return Message{}, err
		}
		m.Op = &decoded
	}

	return m, nil
}

func decodeUser(r gjson.Result) (user.User, error) {
	id, err := uuid.Parse(r.Get("id").String())
	if err != nil {
		return user.User{}, fmt.Errorf("%w: user id: %v", ErrMalformedMessage, err)
	}
	u := user.User{ID: id, Name: r.Get("name").String()}
	if c := r.Get("color").String(); c != "" {
		color, err := user.ParseColor(c)
		if err != nil {
			return user.User{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		u.Color = color
	}
	return u, nil
}

func decodeOperation(r gjson.Result) (Operation, error) {
	op := Operation{
		Kind:     parseKind(r.Get("kind").String()),
		Offset:   int(r.Get("offset").Int()),
		Length:   int(r.Get("length").Int()),
		Revision: r.Get("revision").Uint(),
	}
	if s := r.Get("chunk").String(); s != "" {
		chunk, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Operation{}, fmt.Errorf("%w: chunk: %v", ErrMalformedMessage, err)
		}
		op.Chunk = chunk
	}
	id, err := uuid.Parse(r.Get("user").String())
	if err != nil {
		return Operation{}, fmt.Errorf("%w: op user: %v", ErrMalformedMessage, err)
	}
	op.UserID = id
	return op, nil
}
