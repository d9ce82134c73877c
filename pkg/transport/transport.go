// Copyright 2026 The ESP Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport drives one ESP connection: a single reader goroutine
// decoding inbound frames, a mutex-guarded writer serializing outbound
// frames, and a table of in-flight requests correlated by request_id.
package transport

import (
	"bytes"
	"io"
	"sync"

	"github.com/pkl-community/esp-core/pkg/esperr"
	"github.com/pkl-community/esp-core/pkg/logging"
	"github.com/pkl-community/esp-core/pkg/wire"
)

// OneWayHandler receives CloseEvaluator and LogMessage frames, which never
// expect a reply.
type OneWayHandler func(msg wire.Message)

// RequestHandler receives inbound request frames addressed to us (the
// evaluator server receiving CreateEvaluatorRequest/EvaluateRequest, or the
// client receiving ReadResourceRequest/ReadModuleRequest/List*Request
// callbacks). The handler is responsible for eventually calling
// Transport.SendResponse with the matching request_id.
type RequestHandler func(msg wire.Message)

// ResponseHandler is invoked once for the response correlated with a prior
// SendRequest call, or with a non-nil err if the transport closed, or the
// peer never replies because of I/O failure, before a response arrived.
type ResponseHandler func(msg wire.Message, err error)

// Transport owns one connection's read/write lifecycle. It is safe for
// concurrent use: many goroutines may call SendRequest/SendResponse/
// SendOneWay at once.
type Transport struct {
	codec  *wire.Codec
	w      io.Writer
	closer io.Closer
	log    *logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]ResponseHandler
	closed  bool

	onOneWay  OneWayHandler
	onRequest RequestHandler

	done chan struct{}
}

// New wraps a connection's reader/writer/closer. log may be nil, in which
// case the package-level global logger is used.
func New(r io.Reader, w io.Writer, c io.Closer, log *logging.Logger) *Transport {
	return &Transport{
		codec:   wire.NewCodec(r, w),
		w:       w,
		closer:  c,
		log:     log,
		pending: make(map[int64]ResponseHandler),
		done:    make(chan struct{}),
	}
}

// Start registers the one-way and inbound-request callbacks and begins
// reading frames in a background goroutine. Start must be called at most
// once per Transport.
func (t *Transport) Start(onOneWay OneWayHandler, onRequest RequestHandler) {
	t.onOneWay = onOneWay
	t.onRequest = onRequest
	go t.readLoop()
}

// Done is closed once the read loop exits, whether from Close or from a
// fatal I/O error on the underlying connection.
func (t *Transport) Done() <-chan struct{} { return t.done }

func (t *Transport) readLoop() {
	for {
		msg, err := t.codec.Dec.Decode()
		if err != nil {
			if de, ok := esperr.AsDecodeError(err); ok {
				t.logf("dropping malformed frame: %v", de)
				continue
			}
			t.logf("transport read failed, shutting down: %v", err)
			t.failPending()
			t.shutdown()
			return
		}
		t.dispatch(msg)
	}
}

func (t *Transport) dispatch(msg wire.Message) {
	typ := msg.MessageType()
	switch {
	case typ.IsOneWay():
		if t.onOneWay != nil {
			t.onOneWay(msg)
		}
	case typ.IsResponse():
		id, _ := wire.RequestID(msg)
		t.mu.Lock()
		h, ok := t.pending[id]
		if ok {
			delete(t.pending, id)
		}
		t.mu.Unlock()
		if !ok {
			t.logf("%v", esperr.NewProtocolError(esperr.MsgUnknownRequestID, id))
			return
		}
		h(msg, nil)
	default:
		if t.onRequest != nil {
			t.onRequest(msg)
		}
	}
}

// SendOneWay writes a one-way frame (CloseEvaluator, LogMessage).
func (t *Transport) SendOneWay(msg wire.Message) error {
	return t.write(msg)
}

// SendResponse writes a response frame; the caller is responsible for
// copying the originating request's request_id into msg.
func (t *Transport) SendResponse(msg wire.Message) error {
	return t.write(msg)
}

// SendRequest writes a request frame and registers handler to be invoked
// with the correlated response. It is an error to call SendRequest after
// Close.
func (t *Transport) SendRequest(msg wire.Message, handler ResponseHandler) error {
	id, ok := wire.RequestID(msg)
	if !ok {
		return esperr.NewProtocolError(esperr.MsgUnhandledMessageCode, msg.MessageType())
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return esperr.NewProtocolError(esperr.MsgUnknownEvaluator)
	}
	t.pending[id] = handler
	t.mu.Unlock()

	if err := t.write(msg); err != nil {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return err
	}
	return nil
}

func (t *Transport) write(msg wire.Message) error {
	var buf bytes.Buffer
	if err := wire.EncodeMessage(&buf, msg); err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := buf.WriteTo(t.w)
	return err
}

// Close stops the read loop, releases every pending request handler with a
// closed-transport error, and closes the underlying connection.
func (t *Transport) Close() error {
	if !t.failPending() {
		return nil
	}

	var err error
	if t.closer != nil {
		err = t.closer.Close()
	}
	t.shutdown()
	return err
}

// failPending marks the transport closed and releases every pending
// response handler with a closed-transport error, exactly once. It is
// called both by Close and by the read loop on a fatal decode/I/O error, so
// a holder blocked in a response handler is released deterministically
// either way rather than waiting forever on a broken connection. Reports
// whether this call was the one that performed the release.
func (t *Transport) failPending() bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.closed = true
	pending := t.pending
	t.pending = make(map[int64]ResponseHandler)
	t.mu.Unlock()

	closeErr := esperr.NewProtocolError(esperr.MsgUnknownEvaluator)
	for _, h := range pending {
		h(nil, closeErr)
	}
	return true
}

func (t *Transport) shutdown() {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}

func (t *Transport) logf(format string, args ...interface{}) {
	if t.log != nil {
		t.log.Warn(format, "args", args)
		return
	}
	logging.Warn(format, "args", args)
}
