// Package command models the six wire commands as value objects: each is
// constructed once from (tag, body) and then applied against the Store,
// the Connection, and the Shutdown handle. Tag-to-type dispatch happens
// only in Parse.
package command

import (
	"bytes"
	"unicode/utf8"

	"github.com/atopx/tinyq/internal/shutdown"
	"github.com/atopx/tinyq/internal/statuscode"
	"github.com/atopx/tinyq/internal/store"
	"github.com/atopx/tinyq/internal/wire"
)

// Tag identifies a command on the wire. See §6 of the spec for the
// authoritative table; this set (1/2/3/4/200/201) was chosen over the
// source's several conflicting draft numberings for being self-consistent.
type Tag byte

const (
	TagCreateConsumeTopic   Tag = 1
	TagCreateBroadcastTopic Tag = 2
	TagPublish              Tag = 3
	TagSubscribe            Tag = 4
	TagClear                Tag = 200
	TagDelete               Tag = 201
)

// publishSeparator splits a Publish body into topic and payload.
const publishSeparator = ' '

// Command is constructed from a framed body and then applied against
// shared state and the connection.
type Command interface {
	// Apply mutates st and/or writes a reply to conn. sd lets Subscribe
	// observe shutdown while streaming.
	Apply(conn *wire.Connection, st *store.Store, sd *shutdown.Shutdown) error
}

// Parse is the sole tag-to-command dispatch point. Unknown tags fail with
// CmdInvalErr; malformed bodies fail with BodyInvalErr.
func Parse(tag byte, body []byte) (Command, error) {
	switch Tag(tag) {
	case TagCreateConsumeTopic:
		topic, err := parseTopic(body)
		if err != nil {
			return nil, err
		}
		return &CreateConsumeTopic{Topic: topic}, nil

	case TagCreateBroadcastTopic:
		topic, err := parseTopic(body)
		if err != nil {
			return nil, err
		}
		return &CreateBroadcastTopic{Topic: topic}, nil

	case TagPublish:
		topic, payload, err := parsePublish(body)
		if err != nil {
			return nil, err
		}
		return &Publish{Topic: topic, Payload: payload}, nil

	case TagSubscribe:
		topic, err := parseTopic(body)
		if err != nil {
			return nil, err
		}
		return &Subscribe{Topic: topic}, nil

	case TagClear:
		topic, err := parseTopic(body)
		if err != nil {
			return nil, err
		}
		return &Clear{Topic: topic}, nil

	case TagDelete:
		topic, err := parseTopic(body)
		if err != nil {
			return nil, err
		}
		return &Delete{Topic: topic}, nil

	default:
		return nil, statuscode.New(statuscode.CmdInvalErr)
	}
}

// parseTopic validates body as a non-empty UTF-8 topic name.
func parseTopic(body []byte) (string, error) {
	if len(body) == 0 || !utf8.Valid(body) {
		return "", statuscode.New(statuscode.BodyInvalErr)
	}
	return string(body), nil
}

// parsePublish splits body at the first 0x20 byte into topic and payload;
// subsequent 0x20 bytes belong to the payload.
func parsePublish(body []byte) (topic string, payload []byte, err error) {
	idx := bytes.IndexByte(body, publishSeparator)
	if idx < 0 {
		return "", nil, statuscode.New(statuscode.BodyInvalErr)
	}
	topicBytes := body[:idx]
	if len(topicBytes) == 0 || !utf8.Valid(topicBytes) {
		return "", nil, statuscode.New(statuscode.BodyInvalErr)
	}
	return string(topicBytes), body[idx+1:], nil
}
