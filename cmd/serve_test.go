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

package cmd_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkl-community/esp-core/cmd"
	"github.com/pkl-community/esp-core/pkg/wire"
)

// TestExecuteServeExitsWhenStdinCloses feeds serve a pipe instead of a real
// evaluator host, holding one CloseEvaluator frame for an evaluator that was
// never created and then closed: the server ignores the unknown id, the read
// loop hits EOF, Done() fires, and the command returns cleanly with no
// evaluators to close.
func TestExecuteServeExitsWhenStdinCloses(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()

	require.NoError(t, wire.EncodeMessage(w, &wire.CloseEvaluator{EvaluatorID: 1}))
	require.NoError(t, w.Close())

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"espctl", "serve"}

	require.NoError(t, cmd.Execute("0.1.0-test", "abc123"))
}
