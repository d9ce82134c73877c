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

// Command espctl drives an ESP transport for local testing and debugging:
// it can run an evaluator server over stdio, resolve a single package URI
// through the disk-cached resolver, and pretty-print a recorded frame log.
package main

import (
	"fmt"
	"os"

	"github.com/pkl-community/esp-core/cmd"
	"github.com/pkl-community/esp-core/pkg/version"
)

func main() {
	if err := cmd.Execute(version.Version, version.Commit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
