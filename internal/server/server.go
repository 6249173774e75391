// Package server owns the TCP listener: admission control via a counting
// semaphore, accept-retry with exponential backoff, a spawn-per-connection
// handler loop, and graceful shutdown orchestration.
package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atopx/tinyq/internal/command"
	"github.com/atopx/tinyq/internal/config"
	"github.com/atopx/tinyq/internal/logger"
	"github.com/atopx/tinyq/internal/shutdown"
	"github.com/atopx/tinyq/internal/statuscode"
	"github.com/atopx/tinyq/internal/store"
	"github.com/atopx/tinyq/internal/wire"
)

const (
	backoffInitial = 1 * time.Second
	backoffCap     = 64 * time.Second
)

// Server accepts connections on one TCP listener and runs the command
// loop for each.
type Server struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.Store
	shutdown *shutdown.Shutdown

	listener net.Listener
	ready    chan struct{} // closed once listener is bound, for Addr()
	sem      chan struct{} // counting semaphore sized to MaxConnections

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// New constructs a Server and its Store. The Store's housekeeping task is
// already running once this returns.
func New(cfg *config.Config, log *logger.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		store:    store.New(cfg.MaxQueueLength, log),
		shutdown: shutdown.New(),
		ready:    make(chan struct{}),
		sem:      make(chan struct{}, cfg.MaxConnections),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Store exposes the broker state, e.g. for an admin introspection surface.
func (s *Server) Store() *store.Store {
	return s.store
}

// Addr blocks until the listener is bound (or Run fails to bind) and
// returns its address. Primarily useful in tests that bind to ":0" and need
// the OS-assigned port.
func (s *Server) Addr() net.Addr {
	<-s.ready
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens on cfg.BindAddr and serves connections until shutdownSignal
// fires, then waits for every in-flight handler to drain before returning.
func (s *Server) Run(shutdownSignal <-chan struct{}) error {
	ln, err := net.Listen("tcp", s.cfg.BindAddr)
	if err != nil {
		close(s.ready)
		return fmt.Errorf("listen on %s: %w", s.cfg.BindAddr, err)
	}
	s.listener = ln
	close(s.ready)
	s.log.Info("listening on %s (max_connections=%d, max_body_size=%s, max_queue_length=%d)",
		s.cfg.BindAddr, s.cfg.MaxConnections, logger.Bytes(uint64(s.cfg.MaxBodySize)), s.cfg.MaxQueueLength)

	acceptErrCh := make(chan error, 1)
	go func() { acceptErrCh <- s.acceptLoop() }()

	var acceptErr error
	select {
	case <-shutdownSignal:
	case acceptErr = <-acceptErrCh:
		// acceptLoop only returns early on a fatal backoff-cap overflow;
		// still proceed to drain whatever handlers are in flight.
	}

	s.listener.Close()
	s.shutdown.Trigger()

	// Unblock every handler currently parked in a synchronous read.
	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()

	s.shutdown.Wait()
	s.store.ShutdownBgtask()

	if acceptErr != nil {
		return acceptErr
	}
	return nil
}

// acceptLoop acquires a permit, then accepts; on success it spawns a
// handler and arranges the permit to be released when that handler
// returns. Accept failures are retried with exponential backoff starting
// at 1s, doubling, capped at 64s; exceeding the cap is a fatal
// misconfiguration signaled by returning a SERVER_BUSY error.
func (s *Server) acceptLoop() error {
	delay := backoffInitial

	for {
		select {
		case s.sem <- struct{}{}:
		case <-s.shutdown.Done():
			return nil
		}

		conn, err := s.listener.Accept()
		if err != nil {
			<-s.sem
			if s.shutdown.IsShutdown() {
				return nil
			}

			s.log.Warn("accept error: %v (retrying in %s)", err, delay)
			time.Sleep(delay)

			if delay >= backoffCap {
				s.log.Error("accept backoff exceeded %s cap, giving up", backoffCap)
				return statuscode.New(statuscode.ServerBusy)
			}
			delay *= 2
			if delay > backoffCap {
				delay = backoffCap
			}
			continue
		}

		delay = backoffInitial

		s.connMu.Lock()
		s.conns[conn] = struct{}{}
		s.connMu.Unlock()

		s.shutdown.HandlerStarted()
		go func() {
			defer func() {
				<-s.sem
				s.shutdown.HandlerStopped()
			}()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection runs auth() then the sequential command loop for one
// connection: read, parse, apply, repeat, until an error, peer close, or
// shutdown (observed either when Run closes the socket and unblocks a
// pending read, or explicitly inside Subscribe's own select loop).
func (s *Server) handleConnection(conn net.Conn) {
	id := uuid.NewString()
	c := wire.New(conn, s.cfg.MaxBodySize)
	log := s.log.With(logger.F("conn", id))

	defer func() {
		c.Close()
		s.connMu.Lock()
		delete(s.conns, conn)
		s.connMu.Unlock()
		log.Debug("connection closed (%s)", c.RemoteAddr())
	}()

	log.Debug("connection accepted from %s", c.RemoteAddr())

	if err := c.Auth(s.cfg.Password); err != nil {
		code := statuscode.From(err)
		log.Warn("auth failed: %s", code)
		_ = c.WriteCode(code)
		return
	}
	log.Info("authenticated")

	for {
		tag, body, err := c.ReadCommand()
		if err != nil {
			if s.shutdown.IsShutdown() {
				return
			}
			_ = c.WriteCode(statuscode.From(err))
			return
		}

		cmd, err := command.Parse(tag, body)
		if err != nil {
			_ = c.WriteCode(statuscode.From(err))
			return
		}

		if err := cmd.Apply(c, s.store, s.shutdown); err != nil {
			log.Debug("%v", err)
			return
		}
	}
}
