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

package transport

import (
	"io"

	"github.com/pkl-community/esp-core/pkg/logging"
)

// pipeCloser closes both ends of one direction of an in-memory pipe pair.
type pipeCloser struct {
	r io.Closer
	w io.Closer
}

func (c pipeCloser) Close() error {
	err1 := c.r.Close()
	err2 := c.w.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// NewPipePair returns two Transports, each one's output wired to the
// other's input via io.Pipe, with no real socket or process boundary
// involved. This is the direct in-memory connection used to drive an
// evaluator embedded in the same process, and in tests that exercise both
// sides of the protocol without a subprocess.
func NewPipePair(log *logging.Logger) (a, b *Transport) {
	abR, abW := io.Pipe()
	baR, baW := io.Pipe()

	a = New(baR, abW, pipeCloser{r: baR, w: abW}, log)
	b = New(abR, baW, pipeCloser{r: abR, w: baW}, log)
	return a, b
}
