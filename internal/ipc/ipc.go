// Package ipc is the request/stream layer between the daemon and its clients.
// A client opens a stream by sending a request on a channel; the channel's
// handler answers with zero or more data replies and the stream ends with a
// close reply, preceded by an error reply if the handler failed. Each client
// has at most one active stream per stream id.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var (
	ErrNoHandler    = errors.New("no handler for channel")
	ErrStreamClosed = errors.New("stream closed")
)

// Handler serves one stream. data is the request payload. A one-shot handler
// sends its result and returns; a streaming handler keeps sending until the
// stream's context is cancelled.
type Handler func(ctx context.Context, data json.RawMessage, s *Stream) error

// Once adapts a function returning a single value into a Handler.
func Once(fn func(ctx context.Context, data json.RawMessage) (any, error)) Handler {
	return func(ctx context.Context, data json.RawMessage, s *Stream) error {
		v, err := fn(ctx, data)
		if err != nil {
			return err
		}
		return s.Send(v)
	}
}

// Service holds the channel handlers.
type Service struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "ipc"),
	}
}

// On registers h for channel, replacing any previous handler.
func (svc *Service) On(channel string, h Handler) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.handlers[channel] = h
}

// Channels returns the registered channel names, sorted.
func (svc *Service) Channels() []string {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	names := make([]string, 0, len(svc.handlers))
	for name := range svc.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (svc *Service) handler(channel string) (Handler, bool) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	h, ok := svc.handlers[channel]
	return h, ok
}

// Session is one client's view of the service. emit receives every reply of
// every stream of the session; it may be called from several goroutines.
type Session struct {
	svc  *Service
	emit func(Reply)

	mu      sync.Mutex
	streams map[string]*Stream
	closed  bool
}

func (svc *Service) NewSession(emit func(Reply)) *Session {
	return &Session{svc: svc, emit: emit, streams: make(map[string]*Stream)}
}

// Trigger starts the stream described by req. A stream already running under
// the same id is torn down first. Trigger does not wait for the handler.
func (ss *Session) Trigger(ctx context.Context, req Request) error {
	if req.Channel == TeardownChannel {
		ss.Teardown(req.StreamID)
		return nil
	}
	if req.StreamID == "" {
		return errors.New("request without streamId")
	}

	h, ok := ss.svc.handler(req.Channel)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrNoHandler, req.Channel)
		ss.emit(newErrorReply(req.StreamID, 1, err))
		ss.emit(newCloseReply(req.StreamID, 2))
		return err
	}

	ss.Teardown(req.StreamID)

	ss.mu.Lock()
	if ss.closed {
		ss.mu.Unlock()
		return ErrStreamClosed
	}
	sctx, cancel := context.WithCancel(ctx)
	st := &Stream{
		id:     req.StreamID,
		emit:   ss.emit,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	ss.streams[req.StreamID] = st
	ss.mu.Unlock()

	ss.svc.logger.Debug("stream opened", "channel", req.Channel, "stream", req.StreamID)
	go func() {
		defer close(st.done)
		defer ss.forget(st)
		err := h(sctx, req.Data, st)
		if err != nil && !errors.Is(err, context.Canceled) {
			ss.svc.logger.Warn("handler failed", "channel", req.Channel, "stream", req.StreamID, "error", err)
		}
		st.finish(err)
		cancel()
	}()
	return nil
}

func (ss *Session) forget(st *Stream) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.streams[st.id] == st {
		delete(ss.streams, st.id)
	}
}

// Teardown cancels the stream with the given id, if any, and waits for its
// handler to return.
func (ss *Session) Teardown(streamID string) {
	ss.mu.Lock()
	st, ok := ss.streams[streamID]
	if ok {
		delete(ss.streams, streamID)
	}
	ss.mu.Unlock()
	if !ok {
		return
	}
	st.cancel()
	<-st.done
}

// Active returns the ids of the running streams, sorted.
func (ss *Session) Active() []string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ids := make([]string, 0, len(ss.streams))
	for id := range ss.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close tears down every stream and rejects further requests.
func (ss *Session) Close() {
	ss.mu.Lock()
	ss.closed = true
	streams := make([]*Stream, 0, len(ss.streams))
	for _, st := range ss.streams {
		streams = append(streams, st)
	}
	clear(ss.streams)
	ss.mu.Unlock()

	for _, st := range streams {
		st.cancel()
	}
	for _, st := range streams {
		<-st.done
	}
}

// Stream is the sending side of one request.
type Stream struct {
	id     string
	emit   func(Reply)
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	seq    uint64
	closed bool
}

func (s *Stream) ID() string { return s.id }

// Send marshals v as JSON and emits it as a data reply.
func (s *Stream) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	return s.SendRaw(payload)
}

// SendRaw emits payload, which must be valid JSON, as a data reply.
func (s *Stream) SendRaw(payload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.seq++
	s.emit(newDataReply(s.id, s.seq, payload))
	return nil
}

// finish emits the error reply, if any, and the close reply. Cancellation is a
// normal end, not an error.
func (s *Stream) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err != nil && !errors.Is(err, context.Canceled) {
		s.seq++
		s.emit(newErrorReply(s.id, s.seq, err))
	}
	s.seq++
	s.emit(newCloseReply(s.id, s.seq))
}
