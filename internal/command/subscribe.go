package command

import (
	"github.com/atopx/tinyq/internal/shutdown"
	"github.com/atopx/tinyq/internal/store"
	"github.com/atopx/tinyq/internal/wire"
)

// Subscribe registers the connection as a broadcast-mode reader for Topic
// and streams every subsequent publish to it (one per write_data) until
// the connection errors, the topic is deleted, or shutdown fires.
//
// Apply does not return until the stream ends. The caller (the handler
// loop) must not read further frames from the connection while Apply is
// running: doing so would race the client's own reads on a connection that
// is now push-only from the server's side.
type Subscribe struct {
	Topic string
}

func (c *Subscribe) Apply(conn *wire.Connection, st *store.Store, sd *shutdown.Shutdown) error {
	sub := st.Subscribe(c.Topic)
	defer st.Unsubscribe(c.Topic, sub)

	for {
		select {
		case <-sd.Done():
			// Graceful shutdown: return cleanly within this command
			// boundary, same as any other in-flight handler.
			return nil

		case <-sub.Closed():
			// Topic deleted (or hub torn down) with no further senders.
			return nil

		case body := <-sub.Messages():
			// A full buffer was drained-and-refilled rather than
			// blocked on by the publisher; lag is tolerated silently
			// here, same as the spec requires.
			if err := conn.WriteData(body); err != nil {
				return err
			}
		}
	}
}
