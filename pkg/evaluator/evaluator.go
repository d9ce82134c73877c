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

// Package evaluator implements the evaluator lifecycle: translating
// CreateEvaluatorRequest/EvaluateRequest/CloseEvaluator frames into calls
// against a Pkl evaluator, and proxying that evaluator's resource/module
// reads back to the client over the same transport when the request names
// a client-registered reader scheme.
package evaluator

import (
	"context"

	"github.com/apple/pkl-go/pkl"

	"github.com/pkl-community/esp-core/pkg/wire"
)

// ModuleEvaluator is the narrow surface the server dispatch loop needs from
// a Pkl evaluator. PklModuleEvaluator is the production implementation;
// tests substitute a fake to exercise Server without a real Pkl binary.
type ModuleEvaluator interface {
	EvaluateExpression(ctx context.Context, moduleURI string, moduleText *string, expr string) ([]byte, error)
	EvaluateModule(ctx context.Context, moduleURI string, moduleText *string) ([]byte, error)
	Close() error
}

// PklModuleEvaluator backs ModuleEvaluator with github.com/apple/pkl-go,
// the out-of-process Pkl language engine this server drives. Reimplementing
// Pkl's own evaluation semantics is explicitly out of scope; this type only
// translates ESP requests into pkl.Evaluator calls.
type PklModuleEvaluator struct {
	eval pkl.Evaluator
}

// NewPklModuleEvaluator configures and starts a pkl.Evaluator from a
// CreateEvaluatorRequest, wiring in any client-registered resource and
// module readers as proxies over proxies.
func NewPklModuleEvaluator(ctx context.Context, req *wire.CreateEvaluatorRequest, resourceReaders []pkl.ResourceReader, moduleReaders []pkl.ModuleReader) (*PklModuleEvaluator, error) {
	opts := func(options *pkl.EvaluatorOptions) {
		pkl.WithDefaultAllowedResources(options)
		pkl.WithOsEnv(options)
		pkl.WithDefaultAllowedModules(options)
		pkl.WithDefaultCacheDir(options)
		options.Logger = pkl.NoopLogger

		if len(req.AllowedModules) > 0 {
			options.AllowedModules = req.AllowedModules
		}
		if len(req.AllowedResources) > 0 {
			options.AllowedResources = req.AllowedResources
		}
		if req.ModulePaths != nil {
			options.ModulePaths = req.ModulePaths
		}
		if req.Env != nil {
			options.Env = req.Env
		}
		if req.Properties != nil {
			options.Properties = req.Properties
		}
		if req.OutputFormat != nil {
			options.OutputFormat = *req.OutputFormat
		}
		if req.RootDir != nil {
			options.RootDir = *req.RootDir
		}
		if req.CacheDir != nil {
			options.CacheDir = *req.CacheDir
		}
		if len(resourceReaders) > 0 {
			options.ResourceReaders = resourceReaders
		}
		if len(moduleReaders) > 0 {
			options.ModuleReaders = moduleReaders
		}
	}

	e, err := pkl.NewEvaluator(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &PklModuleEvaluator{eval: e}, nil
}

// EvaluateExpression evaluates expr against the module at moduleURI (or the
// inline moduleText, when present) and returns its raw rendered bytes.
func (e *PklModuleEvaluator) EvaluateExpression(ctx context.Context, moduleURI string, moduleText *string, expr string) ([]byte, error) {
	src := moduleSource(moduleURI, moduleText)
	return e.eval.EvaluateExpressionRaw(ctx, src, expr)
}

// EvaluateModule renders the whole module at moduleURI (or moduleText) using
// the evaluator's configured output format.
func (e *PklModuleEvaluator) EvaluateModule(ctx context.Context, moduleURI string, moduleText *string) ([]byte, error) {
	src := moduleSource(moduleURI, moduleText)
	return e.eval.EvaluateOutputBytes(ctx, src)
}

// Close releases the underlying Pkl evaluator process/session.
func (e *PklModuleEvaluator) Close() error {
	return e.eval.Close()
}

func moduleSource(moduleURI string, moduleText *string) *pkl.ModuleSource {
	if moduleText != nil {
		return pkl.TextSource(*moduleText)
	}
	return pkl.UriSource(moduleURI)
}
