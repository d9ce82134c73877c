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

package cmd

import (
	"context"
	"fmt"
	"strings"

	execute "github.com/alexellis/go-execute/v2"
	"github.com/spf13/cobra"
)

// newPklVersionCommand shells out to the pkl binary on PATH to report the
// language engine version this host's evaluators will actually run
// against — useful to sanity-check a CreateEvaluatorRequest failure before
// suspecting the protocol layer.
func newPklVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pkl-version",
		Short: "Print the version of the pkl binary found on PATH",
		RunE: func(c *cobra.Command, args []string) error {
			task := execute.ExecTask{
				Command:     "pkl",
				Args:        []string{"--version"},
				StreamStdio: false,
			}
			result, err := task.Execute(context.Background())
			if err != nil {
				return fmt.Errorf("espctl pkl-version: %w", err)
			}
			if result.ExitCode != 0 {
				return fmt.Errorf("espctl pkl-version: pkl --version exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
			}
			fmt.Fprint(c.OutOrStdout(), result.Stdout)
			return nil
		},
	}
}
