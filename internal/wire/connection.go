// Package wire owns the TCP socket and the framed binary protocol: reading
// a command byte plus a big-endian length-prefixed body, writing a status
// byte or a status-prefixed data payload, and the password handshake run
// immediately after accept.
package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"strings"
	"time"

	"github.com/atopx/tinyq/internal/statuscode"
)

// authTimeout bounds how long the handshake read may take before the
// connection is failed with AUTH_ERR.
const authTimeout = 30 * time.Second

// authBufSize is the maximum number of secret bytes read during the
// handshake; the wire protocol carries no length prefix for it.
const authBufSize = 64

// Connection wraps one accepted TCP socket with a buffered writer. It has
// no state between commands beyond the socket itself: the command loop is
// stateless by design.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	remote string

	maxBodySize uint32
}

// New wraps conn for framed protocol I/O. maxBodySize bounds body reads
// performed by ReadBody.
func New(conn net.Conn, maxBodySize uint32) *Connection {
	return &Connection{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		writer:      bufio.NewWriter(conn),
		remote:      conn.RemoteAddr().String(),
		maxBodySize: maxBodySize,
	}
}

// RemoteAddr returns the peer address, for logging.
func (c *Connection) RemoteAddr() string {
	return c.remote
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// Auth runs the handshake: write INPUT_PASSWORD, read up to authBufSize
// bytes within authTimeout, compare the trimmed value against secret.
func (c *Connection) Auth(secret string) error {
	if err := c.WriteCode(statuscode.InputPassword); err != nil {
		return statuscode.New(statuscode.ServerInternalErr)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		return statuscode.New(statuscode.ServerInternalErr)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, authBufSize)
	n, err := c.reader.Read(buf)
	if err != nil {
		// A deadline expiry and any other read failure both fail with AUTH_ERR.
		return statuscode.New(statuscode.AuthErr)
	}

	got := strings.TrimSpace(string(buf[:n]))
	if got != secret {
		return statuscode.New(statuscode.AuthErr)
	}

	if err := c.WriteCode(statuscode.Success); err != nil {
		return statuscode.New(statuscode.ServerInternalErr)
	}
	return nil
}

// ReadCommand reads one command-tag byte followed by its body. It does not
// interpret the body; callers hand (tag, body) to command.Parse.
func (c *Connection) ReadCommand() (tag byte, body []byte, err error) {
	tag, err = c.reader.ReadByte()
	if err != nil {
		return 0, nil, statuscode.New(statuscode.CmdParseErr)
	}
	body, err = c.ReadBody()
	if err != nil {
		return tag, nil, err
	}
	return tag, body, nil
}

// ReadBody reads a 4-byte big-endian length followed by exactly that many
// bytes. A declared length over maxBodySize is rejected before any body
// buffer is allocated.
func (c *Connection) ReadBody() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.reader, lenBuf[:]); err != nil {
		return nil, statuscode.New(statuscode.BodySizeParseErr)
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > c.maxBodySize {
		return nil, statuscode.New(statuscode.BodySizeInvalErr)
	}
	if size == 0 {
		return nil, nil
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, statuscode.New(statuscode.BodyParseErr)
	}
	return body, nil
}

// WriteCode writes a single status byte and flushes.
func (c *Connection) WriteCode(code statuscode.Code) error {
	if err := c.writer.WriteByte(byte(code)); err != nil {
		return err
	}
	return c.writer.Flush()
}

// WriteData writes SUCCESS, a 4-byte big-endian length, then data, and
// flushes. Used for every reply that carries a payload.
func (c *Connection) WriteData(data []byte) error {
	if err := c.writer.WriteByte(byte(statuscode.Success)); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := c.writer.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := c.writer.Write(data); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}
