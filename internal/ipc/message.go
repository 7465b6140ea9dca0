package ipc

import (
	"encoding/json"
	"time"
)

// ReplyType tags a reply.
type ReplyType string

const (
	TypeData  ReplyType = "data"
	TypeClose ReplyType = "close"
	TypeError ReplyType = "error"
)

// TeardownChannel is the reserved channel that closes the stream named by the
// request's streamId.
const TeardownChannel = "teardown"

// Request is a message sent by a client.
type Request struct {
	Channel  string          `json:"channel"`
	StreamID string          `json:"streamId"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Reply is a message sent to a client on one of its streams. Seq counts the
// replies of one stream from 1; Timestamp is in Unix milliseconds.
type Reply struct {
	Type      ReplyType       `json:"type"`
	StreamID  string          `json:"streamId"`
	Seq       uint64          `json:"seq"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the payload of an error reply.
type ErrorPayload struct {
	Message string `json:"message"`
}

func newDataReply(streamID string, seq uint64, payload json.RawMessage) Reply {
	return Reply{
		Type:      TypeData,
		StreamID:  streamID,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

func newErrorReply(streamID string, seq uint64, err error) Reply {
	payload, _ := json.Marshal(ErrorPayload{Message: err.Error()})
	return Reply{
		Type:      TypeError,
		StreamID:  streamID,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

func newCloseReply(streamID string, seq uint64) Reply {
	return Reply{
		Type:      TypeClose,
		StreamID:  streamID,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
	}
}
