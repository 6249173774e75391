// Package client is a Go client for the tinyq broker's binary TCP protocol:
// connect, authenticate with the shared secret, then issue the six wire
// commands described in the broker's protocol specification.
package client

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Status codes, mirroring internal/statuscode. Duplicated here rather than
// imported so this package stays usable as a standalone client library with
// no dependency on the broker's internal packages.
const (
	statusSuccess       = 0
	statusCmdParseErr   = 10
	statusCmdInvalErr   = 11
	statusBodySizeParse = 20
	statusBodySizeInval = 21
	statusBodyParseErr  = 30
	statusBodyInvalErr  = 31
	statusAuthErr       = 40
	statusAuthTimeout   = 41
	statusServerErr     = 50
	statusServerBusy    = 51
	statusInputPassword = 100
)

const (
	tagCreateConsumeTopic   = 1
	tagCreateBroadcastTopic = 2
	tagPublish              = 3
	tagSubscribe            = 4
	tagClear                = 200
	tagDelete               = 201
)

// StatusError wraps a non-success status byte returned by the broker.
type StatusError struct {
	Code byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tinyq: server returned status %d", e.Code)
}

// Client is a connection to one tinyq broker. It is not safe for concurrent
// use by multiple goroutines: the wire protocol is a strict request/reply
// (or request/stream) sequence per connection.
type Client struct {
	addr     string
	password string

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

// New creates a client for the broker at addr, authenticating with password
// on Connect.
func New(addr, password string) *Client {
	return &Client{addr: addr, password: password}
}

// Connect dials addr and runs the password handshake described in §4.1 of
// the protocol spec: the server sends INPUT_PASSWORD first, then expects the
// shared secret back.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", c.addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("tinyq: dial %s: %w", c.addr, err)
	}

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	status, err := reader.ReadByte()
	if err != nil {
		conn.Close()
		return fmt.Errorf("tinyq: read handshake prompt: %w", err)
	}
	if status != statusInputPassword {
		conn.Close()
		return &StatusError{Code: status}
	}

	if _, err := writer.WriteString(c.password); err != nil {
		conn.Close()
		return fmt.Errorf("tinyq: write password: %w", err)
	}
	if err := writer.Flush(); err != nil {
		conn.Close()
		return fmt.Errorf("tinyq: flush password: %w", err)
	}

	status, err = reader.ReadByte()
	if err != nil {
		conn.Close()
		return fmt.Errorf("tinyq: read auth result: %w", err)
	}
	if status != statusSuccess {
		conn.Close()
		return &StatusError{Code: status}
	}

	c.conn = conn
	c.reader = reader
	c.writer = writer
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// writeFrame writes one command frame: tag byte, 4-byte big-endian body
// length, then body. Caller must hold c.mu.
func (c *Client) writeFrame(tag byte, body []byte) error {
	if c.conn == nil {
		return fmt.Errorf("tinyq: not connected")
	}
	if err := c.writer.WriteByte(tag); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := c.writer.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := c.writer.Write(body); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}

// readStatus reads a single reply status byte. Caller must hold c.mu.
func (c *Client) readStatus() (byte, error) {
	return c.reader.ReadByte()
}

// simpleCommand writes tag+body and expects a bare status-byte reply.
func (c *Client) simpleCommand(tag byte, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeFrame(tag, body); err != nil {
		return err
	}
	status, err := c.readStatus()
	if err != nil {
		return err
	}
	if status != statusSuccess {
		return &StatusError{Code: status}
	}
	return nil
}

// CreateConsumeTopic ensures topic exists in consume (backlog) mode.
func (c *Client) CreateConsumeTopic(topic string) error {
	return c.simpleCommand(tagCreateConsumeTopic, []byte(topic))
}

// CreateBroadcastTopic ensures topic exists in broadcast mode. Every topic
// holds both structures regardless of which creation command named it; the
// two tags exist for client-side documentation of intent.
func (c *Client) CreateBroadcastTopic(topic string) error {
	return c.simpleCommand(tagCreateBroadcastTopic, []byte(topic))
}

// Publish appends payload to topic's backlog and broadcasts it to live
// subscribers.
func (c *Client) Publish(topic string, payload []byte) error {
	if strings.IndexByte(topic, ' ') >= 0 {
		return fmt.Errorf("tinyq: topic must not contain a space")
	}
	body := make([]byte, 0, len(topic)+1+len(payload))
	body = append(body, topic...)
	body = append(body, ' ')
	body = append(body, payload...)
	return c.simpleCommand(tagPublish, body)
}

// Clear empties topic's backlog, keeping topic metadata and subscribers.
func (c *Client) Clear(topic string) error {
	return c.simpleCommand(tagClear, []byte(topic))
}

// Delete removes topic entirely: backlog and fan-out endpoint.
func (c *Client) Delete(topic string) error {
	return c.simpleCommand(tagDelete, []byte(topic))
}

// Subscribe registers this connection as a broadcast reader for topic and
// calls fn for every message delivered, until the connection closes or fn
// returns a non-nil error. When the topic is deleted the server stops
// streaming without sending anything, so Subscribe does not return on
// deletion; it keeps waiting until the connection closes. Subscribe blocks
// and consumes the connection: no other method may be called on this Client
// concurrently or afterward. Callers that need other commands should use a
// second Client.
func (c *Client) Subscribe(topic string, fn func(body []byte) error) error {
	c.mu.Lock()
	if err := c.writeFrame(tagSubscribe, []byte(topic)); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	for {
		status, err := c.reader.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if status != statusSuccess {
			return &StatusError{Code: status}
		}

		var lenBuf [4]byte
		if _, err := io.ReadFull(c.reader, lenBuf[:]); err != nil {
			return err
		}
		size := binary.BigEndian.Uint32(lenBuf[:])
		body := make([]byte, size)
		if size > 0 {
			if _, err := io.ReadFull(c.reader, body); err != nil {
				return err
			}
		}
		if err := fn(body); err != nil {
			return err
		}
	}
}
