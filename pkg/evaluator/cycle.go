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
	"github.com/pkl-community/esp-core/pkg/esperr"
	"github.com/pkl-community/esp-core/pkg/wire"
)

// detectProjectCycle walks a Project's Local dependency edges (identified by
// ProjectFileURI) with the standard white/gray/black DFS coloring, so a
// project that transitively depends on its own project file is rejected
// before an evaluator is ever started.
func detectProjectCycle(root *wire.Project) error {
	visiting := map[string]bool{}
	done := map[string]bool{}

	var visit func(uri string, deps map[string]*wire.Dependency) error
	visit = func(uri string, deps map[string]*wire.Dependency) error {
		if uri == "" {
			return nil
		}
		if visiting[uri] {
			return esperr.NewProtocolError(esperr.MsgCyclicProjectDependency, uri)
		}
		if done[uri] {
			return nil
		}
		visiting[uri] = true
		for _, dep := range deps {
			if dep == nil || dep.Type != "local" {
				continue
			}
			if err := visit(dep.ProjectFileURI, dep.Dependencies); err != nil {
				return err
			}
		}
		visiting[uri] = false
		done[uri] = true
		return nil
	}

	return visit(root.ProjectFileURI, root.Dependencies)
}
