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

package evaluator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apple/pkl-go/pkl"

	"github.com/pkl-community/esp-core/pkg/esperr"
	"github.com/pkl-community/esp-core/pkg/logging"
	"github.com/pkl-community/esp-core/pkg/transport"
	"github.com/pkl-community/esp-core/pkg/wire"
)

// Factory constructs a ModuleEvaluator for a CreateEvaluatorRequest, given
// the reader adapters built from its client-registered reader specs. Tests
// substitute a fake to exercise Server without starting a real Pkl process.
type Factory func(ctx context.Context, req *wire.CreateEvaluatorRequest, resourceReaders []pkl.ResourceReader, moduleReaders []pkl.ModuleReader) (ModuleEvaluator, error)

func defaultFactory(ctx context.Context, req *wire.CreateEvaluatorRequest, resourceReaders []pkl.ResourceReader, moduleReaders []pkl.ModuleReader) (ModuleEvaluator, error) {
	return NewPklModuleEvaluator(ctx, req, resourceReaders, moduleReaders)
}

type evaluatorEntry struct {
	eval    ModuleEvaluator
	timeout time.Duration
}

// Server is the evaluator-lifecycle half of an ESP connection: it answers
// CreateEvaluatorRequest/EvaluateRequest/CloseEvaluator on one Transport and,
// while an evaluation is running, issues ReadResourceRequest/ReadModuleRequest/
// List*Request frames back across the same Transport on behalf of Pkl's
// client-registered readers.
type Server struct {
	t       *transport.Transport
	factory Factory
	log     *logging.Logger

	mu         sync.Mutex
	evaluators map[int64]*evaluatorEntry

	nextEvaluatorID int64
	nextRequestID   int64
}

// Option configures a Server.
type Option func(*Server)

// WithFactory overrides the evaluator factory, used by tests to avoid
// spawning a real Pkl process.
func WithFactory(f Factory) Option {
	return func(s *Server) { s.factory = f }
}

// NewServer returns a Server dispatching over t. log may be nil, in which
// case the package-global logger is used.
func NewServer(t *transport.Transport, log *logging.Logger, opts ...Option) *Server {
	s := &Server{
		t:          t,
		factory:    defaultFactory,
		log:        log,
		evaluators: make(map[int64]*evaluatorEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins dispatching frames from t. It must be called at most once.
func (s *Server) Start() {
	s.t.Start(s.handleOneWay, s.handleRequest)
}

// Close releases every evaluator this server ever created.
func (s *Server) Close() error {
	s.mu.Lock()
	entries := s.evaluators
	s.evaluators = make(map[int64]*evaluatorEntry)
	s.mu.Unlock()

	var first error
	for _, e := range entries {
		if err := e.eval.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Server) handleOneWay(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.CloseEvaluator:
		s.closeEvaluator(m.EvaluatorID)
	case *wire.LogMessage:
		s.logger().Debug("evaluator log", "evaluator_id", m.EvaluatorID, "frame_uri", m.FrameURI, "message", m.Message)
	}
}

// handleRequest fans CreateEvaluatorRequest and EvaluateRequest out onto
// their own goroutine. This is required, not cosmetic: evaluating a module
// can itself issue ReadResourceRequest/ReadModuleRequest frames back across
// this same Transport, and the response to those frames is only ever
// dispatched by the Transport's single read loop. Handling a request
// synchronously here would leave that read loop blocked inside the very
// evaluation that is waiting on it, deadlocking the connection.
func (s *Server) handleRequest(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.CreateEvaluatorRequest:
		go s.handleCreateEvaluator(m)
	case *wire.EvaluateRequest:
		go s.handleEvaluate(m)
	}
}

func (s *Server) handleCreateEvaluator(req *wire.CreateEvaluatorRequest) {
	if req.Project != nil {
		if err := detectProjectCycle(req.Project); err != nil {
			s.replyCreateError(req.RequestID, err)
			return
		}
	}

	id := atomic.AddInt64(&s.nextEvaluatorID, 1)
	resourceReaders, moduleReaders := buildReaders(s.t, id, &s.nextRequestID, req)

	eval, err := s.factory(context.Background(), req, resourceReaders, moduleReaders)
	if err != nil {
		s.replyCreateError(req.RequestID, err)
		return
	}

	var timeout time.Duration
	if req.TimeoutSeconds != nil {
		timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}

	s.mu.Lock()
	s.evaluators[id] = &evaluatorEntry{eval: eval, timeout: timeout}
	s.mu.Unlock()

	evID := id
	if err := s.t.SendResponse(&wire.CreateEvaluatorResponse{RequestID: req.RequestID, EvaluatorID: &evID}); err != nil {
		s.logger().Warn("send CreateEvaluatorResponse failed", "error", err)
	}
}

func (s *Server) replyCreateError(requestID int64, err error) {
	msg := err.Error()
	if sendErr := s.t.SendResponse(&wire.CreateEvaluatorResponse{RequestID: requestID, Error: &msg}); sendErr != nil {
		s.logger().Warn("send CreateEvaluatorResponse (error) failed", "error", sendErr)
	}
}

func (s *Server) handleEvaluate(req *wire.EvaluateRequest) {
	s.mu.Lock()
	entry, ok := s.evaluators[req.EvaluatorID]
	s.mu.Unlock()
	if !ok {
		s.replyEvaluateError(req, esperr.NewProtocolError(esperr.MsgUnknownEvaluator, req.EvaluatorID))
		return
	}

	ctx := context.Background()
	if entry.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, entry.timeout)
		defer cancel()
	}

	var (
		result []byte
		err    error
	)
	if req.Expr != nil {
		result, err = entry.eval.EvaluateExpression(ctx, req.ModuleURI, req.ModuleText, *req.Expr)
	} else {
		result, err = entry.eval.EvaluateModule(ctx, req.ModuleURI, req.ModuleText)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			s.replyEvaluateError(req, errors.New("timed out"))
			return
		}
		s.replyEvaluateError(req, err)
		return
	}

	resp := &wire.EvaluateResponse{RequestID: req.RequestID, EvaluatorID: req.EvaluatorID, Result: result}
	if sendErr := s.t.SendResponse(resp); sendErr != nil {
		s.logger().Warn("send EvaluateResponse failed", "error", sendErr)
	}
}

func (s *Server) replyEvaluateError(req *wire.EvaluateRequest, err error) {
	msg := err.Error()
	resp := &wire.EvaluateResponse{RequestID: req.RequestID, EvaluatorID: req.EvaluatorID, Error: &msg}
	if sendErr := s.t.SendResponse(resp); sendErr != nil {
		s.logger().Warn("send EvaluateResponse (error) failed", "error", sendErr)
	}
}

func (s *Server) closeEvaluator(id int64) {
	s.mu.Lock()
	entry, ok := s.evaluators[id]
	delete(s.evaluators, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := entry.eval.Close(); err != nil {
		s.logger().Warn("closing evaluator failed", "evaluator_id", id, "error", err)
	}
}

func (s *Server) logger() *logging.Logger {
	if s.log != nil {
		return s.log
	}
	return logging.GetLogger()
}
