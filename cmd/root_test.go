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
)

func TestExecuteVersion(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"espctl", "--version"}

	require.NoError(t, cmd.Execute("0.1.0-test", "abc123"))
}

func TestExecuteHelp(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"espctl", "--help"}

	require.NoError(t, cmd.Execute("0.1.0-test", "abc123"))
}

func TestExecuteUnknownCommand(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"espctl", "not-a-real-command"}

	require.Error(t, cmd.Execute("0.1.0-test", "abc123"))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DEBUG", "")
	t.Setenv("ESPCTL_CACHE_DIR", "")

	cfg, err := cmd.LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
}
