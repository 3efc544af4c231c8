// Package ipc speaks Discord's local RPC protocol: length-prefixed JSON
// frames over the discord-ipc-N unix socket or Windows named pipe.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Opcode uint32

const (
	OpHandshake Opcode = 0
	OpFrame     Opcode = 1
	OpClose     Opcode = 2
	OpPing      Opcode = 3
	OpPong      Opcode = 4
)

const (
	protocolVersion = 1
	maxPayload      = 1 << 20
	ioTimeout       = 5 * time.Second
	maxSockets      = 10
)

var (
	ErrNoSocket       = errors.New("discord ipc: no socket found (is Discord running?)")
	ErrClosed         = errors.New("discord ipc: connection closed by peer")
	ErrPayloadTooLong = errors.New("discord ipc: payload too large")
)

// RPCError is an error reply from the Discord client.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("discord ipc: error %d: %s", e.Code, e.Message)
}

type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
}

type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

type handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

type command struct {
	Cmd   string       `json:"cmd"`
	Args  activityArgs `json:"args"`
	Nonce string       `json:"nonce"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity,omitempty"`
}

type reply struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`
}

// Conn is a handshaken connection. It is not safe for concurrent use beyond
// Close racing a pending call.
type Conn struct {
	mu       sync.Mutex
	conn     net.Conn
	clientID string
	pid      int
	closed   bool
}

// Open performs the handshake over an established stream. The stream is
// closed if the handshake fails.
func Open(nc net.Conn, clientID string) (*Conn, error) {
	c := &Conn{conn: nc, clientID: clientID, pid: os.Getpid()}
	if err := c.handshake(); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) handshake() error {
	payload, err := json.Marshal(handshake{V: protocolVersion, ClientID: c.clientID})
	if err != nil {
		return err
	}
	if err := c.writeFrame(OpHandshake, payload); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if _, err := c.readReply(); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	return nil
}

// SetActivity replaces the displayed activity.
func (c *Conn) SetActivity(a *Activity) error {
	return c.call(a)
}

// ClearActivity removes any displayed activity.
func (c *Conn) ClearActivity() error {
	return c.call(nil)
}

func (c *Conn) call(a *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	nonce := uuid.NewString()
	payload, err := json.Marshal(command{
		Cmd:   "SET_ACTIVITY",
		Args:  activityArgs{PID: c.pid, Activity: a},
		Nonce: nonce,
	})
	if err != nil {
		return err
	}
	if err := c.writeFrame(OpFrame, payload); err != nil {
		return err
	}
	for {
		r, err := c.readReply()
		if err != nil {
			return err
		}
		// Discord may interleave dispatches; only our nonce answers the call.
		if r.Nonce == nonce || (r.Nonce == "" && r.Cmd != "DISPATCH") {
			return nil
		}
	}
}

// Close sends a best-effort close frame and releases the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = writeFrame(c.conn, OpClose, []byte("{}"))
	return c.conn.Close()
}

func (c *Conn) writeFrame(op Opcode, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(ioTimeout)); err != nil {
		return err
	}
	return writeFrame(c.conn, op, payload)
}

// readReply reads frames until a command reply arrives, answering pings.
func (c *Conn) readReply() (*reply, error) {
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(ioTimeout)); err != nil {
			return nil, err
		}
		op, payload, err := readFrame(c.conn)
		if err != nil {
			return nil, err
		}
		switch op {
		case OpFrame:
			var r reply
			if err := json.Unmarshal(payload, &r); err != nil {
				return nil, fmt.Errorf("discord ipc: bad reply: %w", err)
			}
			if r.Evt == "ERROR" {
				rpcErr := &RPCError{}
				if err := json.Unmarshal(r.Data, rpcErr); err != nil {
					rpcErr.Message = string(r.Data)
				}
				return nil, rpcErr
			}
			return &r, nil
		case OpPing:
			if err := c.writeFrame(OpPong, payload); err != nil {
				return nil, err
			}
		case OpClose:
			var rpcErr RPCError
			if err := json.Unmarshal(payload, &rpcErr); err == nil && rpcErr.Message != "" {
				return nil, fmt.Errorf("%w: %s", ErrClosed, rpcErr.Message)
			}
			return nil, ErrClosed
		default:
			// pongs and unknown opcodes carry nothing we need
		}
	}
}

func writeFrame(w io.Writer, op Opcode, payload []byte) error {
	if len(payload) > maxPayload {
		return ErrPayloadTooLong
	}
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(op))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) (Opcode, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	op := Opcode(binary.LittleEndian.Uint32(header[0:4]))
	n := binary.LittleEndian.Uint32(header[4:8])
	if n > maxPayload {
		return 0, nil, ErrPayloadTooLong
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return op, payload, nil
}
