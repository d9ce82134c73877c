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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkl-community/esp-core/pkg/esperr"
	"github.com/pkl-community/esp-core/pkg/wire"
)

func TestDetectProjectCycleAcyclic(t *testing.T) {
	root := &wire.Project{
		ProjectFileURI: "file:///a/PklProject",
		Dependencies: map[string]*wire.Dependency{
			"b": {Type: "local", ProjectFileURI: "file:///b/PklProject", Dependencies: map[string]*wire.Dependency{
				"c": {Type: "local", ProjectFileURI: "file:///c/PklProject"},
			}},
			"d": {Type: "remote", PackageURI: "package://example.com/d@1.0.0"},
		},
	}
	require.NoError(t, detectProjectCycle(root))
}

func TestDetectProjectCycleDirect(t *testing.T) {
	root := &wire.Project{
		ProjectFileURI: "file:///a/PklProject",
		Dependencies: map[string]*wire.Dependency{
			"self": {Type: "local", ProjectFileURI: "file:///a/PklProject"},
		},
	}
	err := detectProjectCycle(root)
	pe, ok := esperr.AsProtocolError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgCyclicProjectDependency, pe.Name)
}

func TestDetectProjectCycleTransitive(t *testing.T) {
	root := &wire.Project{
		ProjectFileURI: "file:///a/PklProject",
		Dependencies: map[string]*wire.Dependency{
			"b": {Type: "local", ProjectFileURI: "file:///b/PklProject", Dependencies: map[string]*wire.Dependency{
				"back-to-a": {Type: "local", ProjectFileURI: "file:///a/PklProject"},
			}},
		},
	}
	err := detectProjectCycle(root)
	pe, ok := esperr.AsProtocolError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgCyclicProjectDependency, pe.Name)
}

func TestDetectProjectCycleSharedDependencyIsNotACycle(t *testing.T) {
	// "b" and "c" both depend on "d"; that diamond shares a node but
	// revisits it only after it is fully done, not while still visiting.
	root := &wire.Project{
		ProjectFileURI: "file:///a/PklProject",
		Dependencies: map[string]*wire.Dependency{
			"b": {Type: "local", ProjectFileURI: "file:///b/PklProject", Dependencies: map[string]*wire.Dependency{
				"d": {Type: "local", ProjectFileURI: "file:///d/PklProject"},
			}},
			"c": {Type: "local", ProjectFileURI: "file:///c/PklProject", Dependencies: map[string]*wire.Dependency{
				"d": {Type: "local", ProjectFileURI: "file:///d/PklProject"},
			}},
		},
	}
	require.NoError(t, detectProjectCycle(root))
}
