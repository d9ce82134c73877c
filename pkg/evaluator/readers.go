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
	"net/url"
	"sync/atomic"

	"github.com/apple/pkl-go/pkl"

	"github.com/pkl-community/esp-core/pkg/transport"
	"github.com/pkl-community/esp-core/pkg/wire"
)

// clientProxy turns the server's side of a ReadResource/ReadModule/List*
// request/response exchange into a synchronous call, so it can sit behind
// pkl-go's blocking ResourceReader/ModuleReader interfaces. Every call blocks
// the goroutine that issued it (one of Pkl's own reader threads going
// through cgo) until the client replies over the same transport the
// evaluator itself was created on.
type clientProxy struct {
	t             *transport.Transport
	evaluatorID   int64
	requestIDSeq  *int64
}

func newClientProxy(t *transport.Transport, evaluatorID int64, requestIDSeq *int64) *clientProxy {
	return &clientProxy{t: t, evaluatorID: evaluatorID, requestIDSeq: requestIDSeq}
}

func (p *clientProxy) nextRequestID() int64 {
	return atomic.AddInt64(p.requestIDSeq, 1)
}

type proxyResult struct {
	bytes []byte
	text  string
	elems []wire.PathElement
	err   error
}

func (p *clientProxy) roundTrip(ctx context.Context, req wire.Message, onResponse func(wire.Message) proxyResult) (proxyResult, error) {
	ch := make(chan proxyResult, 1)
	if err := p.t.SendRequest(req, func(msg wire.Message, sendErr error) {
		if sendErr != nil {
			ch <- proxyResult{err: sendErr}
			return
		}
		ch <- onResponse(msg)
	}); err != nil {
		return proxyResult{}, err
	}
	select {
	case r := <-ch:
		return r, r.err
	case <-ctx.Done():
		return proxyResult{}, ctx.Err()
	}
}

func (p *clientProxy) readResource(ctx context.Context, uri string) ([]byte, error) {
	req := &wire.ReadResourceRequest{RequestID: p.nextRequestID(), EvaluatorID: p.evaluatorID, URI: uri}
	r, err := p.roundTrip(ctx, req, func(msg wire.Message) proxyResult {
		resp, ok := msg.(*wire.ReadResourceResponse)
		if !ok {
			return proxyResult{err: errors.New("evaluator: unexpected response to ReadResourceRequest")}
		}
		if resp.Error != nil {
			return proxyResult{err: errors.New(*resp.Error)}
		}
		return proxyResult{bytes: resp.Contents}
	})
	if err != nil {
		return nil, err
	}
	return r.bytes, nil
}

func (p *clientProxy) readModule(ctx context.Context, uri string) (string, error) {
	req := &wire.ReadModuleRequest{RequestID: p.nextRequestID(), EvaluatorID: p.evaluatorID, URI: uri}
	r, err := p.roundTrip(ctx, req, func(msg wire.Message) proxyResult {
		resp, ok := msg.(*wire.ReadModuleResponse)
		if !ok {
			return proxyResult{err: errors.New("evaluator: unexpected response to ReadModuleRequest")}
		}
		if resp.Error != nil {
			return proxyResult{err: errors.New(*resp.Error)}
		}
		var text string
		if resp.Contents != nil {
			text = *resp.Contents
		}
		return proxyResult{text: text}
	})
	if err != nil {
		return "", err
	}
	return r.text, nil
}

func (p *clientProxy) listResources(ctx context.Context, uri string) ([]wire.PathElement, error) {
	req := &wire.ListResourcesRequest{RequestID: p.nextRequestID(), EvaluatorID: p.evaluatorID, URI: uri}
	r, err := p.roundTrip(ctx, req, func(msg wire.Message) proxyResult {
		resp, ok := msg.(*wire.ListResourcesResponse)
		if !ok {
			return proxyResult{err: errors.New("evaluator: unexpected response to ListResourcesRequest")}
		}
		if resp.Error != nil {
			return proxyResult{err: errors.New(*resp.Error)}
		}
		return proxyResult{elems: resp.PathElements}
	})
	if err != nil {
		return nil, err
	}
	return r.elems, nil
}

func (p *clientProxy) listModules(ctx context.Context, uri string) ([]wire.PathElement, error) {
	req := &wire.ListModulesRequest{RequestID: p.nextRequestID(), EvaluatorID: p.evaluatorID, URI: uri}
	r, err := p.roundTrip(ctx, req, func(msg wire.Message) proxyResult {
		resp, ok := msg.(*wire.ListModulesResponse)
		if !ok {
			return proxyResult{err: errors.New("evaluator: unexpected response to ListModulesRequest")}
		}
		if resp.Error != nil {
			return proxyResult{err: errors.New(*resp.Error)}
		}
		return proxyResult{elems: resp.PathElements}
	})
	if err != nil {
		return nil, err
	}
	return r.elems, nil
}

// pklResourceReader adapts a ResourceReaderSpec registered on
// CreateEvaluatorRequest into the pkl.ResourceReader interface pkl-go
// expects, forwarding every call across the proxy to the client.
type pklResourceReader struct {
	spec  wire.ResourceReaderSpec
	proxy *clientProxy
}

func (r *pklResourceReader) Scheme() string              { return r.spec.Scheme }
func (r *pklResourceReader) IsGlobbable() bool            { return r.spec.IsGlobbable }
func (r *pklResourceReader) HasHierarchicalUris() bool    { return r.spec.HasHierarchicalUris }

func (r *pklResourceReader) ListElements(u url.URL) ([]pkl.PathElement, error) {
	elems, err := r.proxy.listResources(context.Background(), u.String())
	if err != nil {
		return nil, err
	}
	return toPklElements(elems), nil
}

func (r *pklResourceReader) Read(u url.URL) ([]byte, error) {
	return r.proxy.readResource(context.Background(), u.String())
}

// pklModuleReader adapts a ModuleReaderSpec the same way, for `import`
// statements resolving through a client-registered module reader scheme.
type pklModuleReader struct {
	spec  wire.ModuleReaderSpec
	proxy *clientProxy
}

func (r *pklModuleReader) Scheme() string              { return r.spec.Scheme }
func (r *pklModuleReader) IsGlobbable() bool            { return r.spec.IsGlobbable }
func (r *pklModuleReader) HasHierarchicalUris() bool    { return r.spec.HasHierarchicalUris }
func (r *pklModuleReader) IsLocal() bool                { return r.spec.IsLocal }

func (r *pklModuleReader) ListElements(u url.URL) ([]pkl.PathElement, error) {
	elems, err := r.proxy.listModules(context.Background(), u.String())
	if err != nil {
		return nil, err
	}
	return toPklElements(elems), nil
}

func (r *pklModuleReader) Read(u url.URL) (string, error) {
	return r.proxy.readModule(context.Background(), u.String())
}

func toPklElements(elems []wire.PathElement) []pkl.PathElement {
	out := make([]pkl.PathElement, len(elems))
	for i, e := range elems {
		out[i] = pkl.NewPathElement(e.Name, e.IsDirectory)
	}
	return out
}

// buildReaders constructs the pkl-go reader adapters for every reader spec
// the client registered on CreateEvaluatorRequest.
func buildReaders(t *transport.Transport, evaluatorID int64, requestIDSeq *int64, req *wire.CreateEvaluatorRequest) ([]pkl.ResourceReader, []pkl.ModuleReader) {
	proxy := newClientProxy(t, evaluatorID, requestIDSeq)

	resourceReaders := make([]pkl.ResourceReader, 0, len(req.ClientResourceReaders))
	for _, spec := range req.ClientResourceReaders {
		resourceReaders = append(resourceReaders, &pklResourceReader{spec: spec, proxy: proxy})
	}

	moduleReaders := make([]pkl.ModuleReader, 0, len(req.ClientModuleReaders))
	for _, spec := range req.ClientModuleReaders {
		moduleReaders = append(moduleReaders, &pklModuleReader{spec: spec, proxy: proxy})
	}

	return resourceReaders, moduleReaders
}
