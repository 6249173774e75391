package command

import (
	"github.com/atopx/tinyq/internal/shutdown"
	"github.com/atopx/tinyq/internal/statuscode"
	"github.com/atopx/tinyq/internal/store"
	"github.com/atopx/tinyq/internal/wire"
)

// Publish appends Payload to Topic's backlog and broadcasts it to any live
// subscribers. Both happen regardless of which creation command (or
// neither) preceded it: the topic is created on demand.
type Publish struct {
	Topic   string
	Payload []byte
}

func (c *Publish) Apply(conn *wire.Connection, st *store.Store, _ *shutdown.Shutdown) error {
	st.Push(c.Topic, c.Payload)
	st.Publish(c.Topic, c.Payload)
	return conn.WriteCode(statuscode.Success)
}
