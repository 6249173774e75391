package wire

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/atopx/tinyq/internal/statuscode"
)

func pipeConn(t *testing.T) (server *Connection, client net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	return New(a, 1024), b
}

func TestAuthSuccess(t *testing.T) {
	srv, client := pipeConn(t)
	defer client.Close()
	defer srv.Close()

	done := make(chan error, 1)
	go func() { done <- srv.Auth("secret") }()

	buf := make([]byte, 1)
	if _, err := client.Read(buf); err != nil {
		t.Fatalf("read handshake prompt: %v", err)
	}
	if buf[0] != byte(statuscode.InputPassword) {
		t.Fatalf("prompt = %d, want InputPassword", buf[0])
	}

	if _, err := client.Write([]byte("secret\n")); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	// Auth writes SUCCESS before returning, and a pipe write blocks until
	// it is read, so the result byte must be read before waiting on done.
	if _, err := client.Read(buf); err != nil {
		t.Fatalf("read auth result: %v", err)
	}
	if buf[0] != byte(statuscode.Success) {
		t.Fatalf("auth result = %d, want Success", buf[0])
	}

	if err := <-done; err != nil {
		t.Fatalf("Auth() = %v, want nil", err)
	}
}

func TestAuthFailureWrongSecret(t *testing.T) {
	srv, client := pipeConn(t)
	defer client.Close()
	defer srv.Close()

	done := make(chan error, 1)
	go func() { done <- srv.Auth("secret") }()

	buf := make([]byte, 1)
	client.Read(buf)
	client.Write([]byte("wrong"))

	err := <-done
	if statuscode.From(err) != statuscode.AuthErr {
		t.Fatalf("Auth() error = %v, want AuthErr", err)
	}
}

func TestReadBodyRejectsOversizeBeforeAllocating(t *testing.T) {
	srv, client := pipeConn(t)
	defer client.Close()
	defer srv.Close()

	done := make(chan error, 1)
	var body []byte
	go func() {
		b, err := srv.ReadBody()
		body = b
		done <- err
	}()

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 0x7FFFFFFF)
	client.Write(lenBuf[:])

	err := <-done
	if statuscode.From(err) != statuscode.BodySizeInvalErr {
		t.Fatalf("ReadBody() error = %v, want BodySizeInvalErr", err)
	}
	if body != nil {
		t.Fatalf("body should be nil on size rejection, got %v", body)
	}
}

func TestReadBodyZeroLength(t *testing.T) {
	srv, client := pipeConn(t)
	defer client.Close()
	defer srv.Close()

	done := make(chan []byte, 1)
	go func() {
		b, _ := srv.ReadBody()
		done <- b
	}()

	var lenBuf [4]byte
	client.Write(lenBuf[:])

	body := <-done
	if len(body) != 0 {
		t.Fatalf("ReadBody() = %v, want empty", body)
	}
}

func TestReadCommandAndWriteData(t *testing.T) {
	srv, client := pipeConn(t)
	defer client.Close()
	defer srv.Close()

	type result struct {
		tag  byte
		body []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		tag, body, err := srv.ReadCommand()
		done <- result{tag, body, err}
	}()

	payload := []byte("hello")
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	client.Write([]byte{3})
	client.Write(lenBuf[:])
	client.Write(payload)

	r := <-done
	if r.err != nil {
		t.Fatalf("ReadCommand() error = %v", r.err)
	}
	if r.tag != 3 || string(r.body) != "hello" {
		t.Fatalf("ReadCommand() = %d %q", r.tag, r.body)
	}

	writeDone := make(chan error, 1)
	go func() { writeDone <- srv.WriteData([]byte("world")) }()

	status := make([]byte, 1)
	client.Read(status)
	if status[0] != byte(statuscode.Success) {
		t.Fatalf("status = %d, want Success", status[0])
	}
	var replyLen [4]byte
	client.Read(replyLen[:])
	n := binary.BigEndian.Uint32(replyLen[:])
	reply := make([]byte, n)
	client.Read(reply)
	if string(reply) != "world" {
		t.Fatalf("reply = %q, want world", reply)
	}
	if err := <-writeDone; err != nil {
		t.Fatalf("WriteData() error = %v", err)
	}
}
