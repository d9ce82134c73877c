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
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/require"

	"github.com/pkl-community/esp-core/pkg/transport"
	"github.com/pkl-community/esp-core/pkg/wire"
)

// evalWorld carries the state one scenario builds up across its steps: the
// client side of a pipe-paired transport, the fake evaluator it talks to,
// the last evaluator id it minted, and the last response it received.
type evalWorld struct {
	t        *testing.T
	client   *transport.Transport
	srv      *Server
	fake     *fakeEvaluator
	evalID   int64
	nextReq  int64
	lastResp wire.Message
}

func (w *evalWorld) send(req wire.Message) wire.Message {
	w.t.Helper()
	ch := make(chan wire.Message, 1)
	w.nextReq++
	switch m := req.(type) {
	case *wire.CreateEvaluatorRequest:
		m.RequestID = w.nextReq
	case *wire.EvaluateRequest:
		m.RequestID = w.nextReq
	default:
		w.t.Fatalf("send: unsupported request type %T", req)
	}
	require.NoError(w.t, w.client.SendRequest(req, func(msg wire.Message, err error) {
		require.NoError(w.t, err)
		ch <- msg
	}))
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		w.t.Fatal("timed out waiting for response")
		return nil
	}
}

func (w *evalWorld) aFreshEvaluatorServer() error {
	w.fake = &fakeEvaluator{}
	w.client, w.srv = newClientServerPair(w.t, newFakeFactory(w.fake))
	return nil
}

func (w *evalWorld) iCreateAnEvaluator() error {
	w.lastResp = w.send(&wire.CreateEvaluatorRequest{})
	resp, ok := w.lastResp.(*wire.CreateEvaluatorResponse)
	if !ok {
		return fmt.Errorf("expected CreateEvaluatorResponse, got %T", w.lastResp)
	}
	if resp.EvaluatorID != nil {
		w.evalID = *resp.EvaluatorID
	}
	return nil
}

func (w *evalWorld) theCreateRequestSucceeds() error {
	resp := w.lastResp.(*wire.CreateEvaluatorResponse)
	if resp.Error != nil {
		return fmt.Errorf("create evaluator failed: %s", *resp.Error)
	}
	return nil
}

func (w *evalWorld) iEvaluateModule(moduleURI string) error {
	w.lastResp = w.send(&wire.EvaluateRequest{EvaluatorID: w.evalID, ModuleURI: moduleURI})
	return nil
}

func (w *evalWorld) iEvaluateModuleOnEvaluatorID(moduleURI string, id int64) error {
	w.lastResp = w.send(&wire.EvaluateRequest{EvaluatorID: id, ModuleURI: moduleURI})
	return nil
}

func (w *evalWorld) iEvaluateExpressionAgainstModule(expr, moduleURI string) error {
	w.lastResp = w.send(&wire.EvaluateRequest{EvaluatorID: w.evalID, ModuleURI: moduleURI, Expr: &expr})
	return nil
}

func (w *evalWorld) theEvaluationSucceedsWithResult(want string) error {
	resp, ok := w.lastResp.(*wire.EvaluateResponse)
	if !ok {
		return fmt.Errorf("expected EvaluateResponse, got %T", w.lastResp)
	}
	if resp.Error != nil {
		return fmt.Errorf("evaluation failed: %s", *resp.Error)
	}
	if string(resp.Result) != want {
		return fmt.Errorf("expected result %q, got %q", want, string(resp.Result))
	}
	return nil
}

func (w *evalWorld) theEvaluationFails() error {
	resp, ok := w.lastResp.(*wire.EvaluateResponse)
	if !ok {
		return fmt.Errorf("expected EvaluateResponse, got %T", w.lastResp)
	}
	if resp.Error == nil {
		return fmt.Errorf("expected an error, got a successful result %q", string(resp.Result))
	}
	return nil
}

func (w *evalWorld) iCloseTheEvaluator() error {
	return w.client.SendOneWay(&wire.CloseEvaluator{EvaluatorID: w.evalID})
}

func (w *evalWorld) theUnderlyingEvaluatorIsClosed() error {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if w.fake.closed {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("evaluator was not closed in time")
}

// TestEvaluatorFeatures runs the Gherkin scenarios under features/ against
// the real Server and Transport, with a fakeEvaluator standing in for the
// pkl-go evaluator a production host would supply.
func TestEvaluatorFeatures(t *testing.T) {
	w := &evalWorld{t: t}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Step(`^a fresh evaluator server$`, w.aFreshEvaluatorServer)
			ctx.Step(`^I create an evaluator$`, w.iCreateAnEvaluator)
			ctx.Step(`^the create request succeeds$`, w.theCreateRequestSucceeds)
			ctx.Step(`^I evaluate module "([^"]*)"$`, w.iEvaluateModule)
			ctx.Step(`^I evaluate module "([^"]*)" on evaluator id (\d+)$`, w.iEvaluateModuleOnEvaluatorID)
			ctx.Step(`^I evaluate expression "([^"]*)" against module "([^"]*)"$`, w.iEvaluateExpressionAgainstModule)
			ctx.Step(`^the evaluation succeeds with result "([^"]*)"$`, w.theEvaluationSucceedsWithResult)
			ctx.Step(`^the evaluation fails$`, w.theEvaluationFails)
			ctx.Step(`^I close the evaluator$`, w.iCloseTheEvaluator)
			ctx.Step(`^the underlying evaluator is closed$`, w.theUnderlyingEvaluatorIsClosed)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
