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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/pkl-community/esp-core/pkg/wire"
)

func newRecordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "record <file>",
		Short: "Pretty-print every frame in a recorded ESP byte stream",
		Long: `record replays a file captured from an ESP connection (e.g. by tee-ing
a subprocess's stdout) frame by frame, printing each decoded message with its
wire type so a byte-stream capture can be inspected without a hex dump.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("espctl record: %w", err)
			}
			defer f.Close()

			dec := wire.NewDecoder(f)
			n := 0
			for {
				msg, err := dec.Decode()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return fmt.Errorf("espctl record: frame %d: %w", n, err)
				}
				fmt.Fprintf(c.OutOrStdout(), "--- frame %d: %s ---\n", n, msg.MessageType())
				fmt.Fprintf(c.OutOrStdout(), "%# v\n", pretty.Formatter(msg))
				n++
			}
			fmt.Fprintf(c.OutOrStdout(), "%d frames\n", n)
			return nil
		},
	}
}
