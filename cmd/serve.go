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
	"os"

	"github.com/spf13/cobra"

	"github.com/pkl-community/esp-core/pkg/evaluator"
	"github.com/pkl-community/esp-core/pkg/logging"
	"github.com/pkl-community/esp-core/pkg/transport"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run an evaluator server over stdin/stdout",
		Long: `serve reads ESP frames from stdin and writes responses to stdout,
exactly the arrangement a language binding uses when it spawns this
process as a subprocess and talks to it over a pipe.`,
		RunE: func(c *cobra.Command, args []string) error {
			log := logging.GetLogger()
			t := transport.New(os.Stdin, os.Stdout, nil, log)
			srv := evaluator.NewServer(t, log)
			srv.Start()
			<-t.Done()
			return srv.Close()
		},
	}
}
