package command

import (
	"github.com/atopx/tinyq/internal/shutdown"
	"github.com/atopx/tinyq/internal/statuscode"
	"github.com/atopx/tinyq/internal/store"
	"github.com/atopx/tinyq/internal/wire"
)

// CreateConsumeTopic ensures a topic exists so a later Publish/backlog
// read has somewhere to land. Every topic holds both backlog and fan-out
// structures regardless of which creation command named it (§3); the two
// creation tags exist for client-side documentation of intent, not for a
// structural difference.
type CreateConsumeTopic struct {
	Topic string
}

func (c *CreateConsumeTopic) Apply(conn *wire.Connection, st *store.Store, _ *shutdown.Shutdown) error {
	st.EnsureTopic(c.Topic)
	return conn.WriteCode(statuscode.Success)
}

// CreateBroadcastTopic is CreateConsumeTopic's broadcast-mode counterpart;
// see the note there.
type CreateBroadcastTopic struct {
	Topic string
}

func (c *CreateBroadcastTopic) Apply(conn *wire.Connection, st *store.Store, _ *shutdown.Shutdown) error {
	st.EnsureTopic(c.Topic)
	return conn.WriteCode(statuscode.Success)
}

// Clear empties topic's backlog, keeping topic metadata and subscribers.
type Clear struct {
	Topic string
}

func (c *Clear) Apply(conn *wire.Connection, st *store.Store, _ *shutdown.Shutdown) error {
	st.Clear(c.Topic)
	return conn.WriteCode(statuscode.Success)
}

// Delete removes topic entirely: backlog and fan-out endpoint. A
// subsequent publish or push recreates it.
type Delete struct {
	Topic string
}

func (c *Delete) Apply(conn *wire.Connection, st *store.Store, _ *shutdown.Shutdown) error {
	st.Del(c.Topic)
	return conn.WriteCode(statuscode.Success)
}
