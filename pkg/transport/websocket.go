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
	"bytes"

	"github.com/gorilla/websocket"

	"github.com/pkl-community/esp-core/pkg/logging"
)

// wsConn adapts a *websocket.Conn into the stream-oriented io.Reader/
// io.Writer pair Transport expects. Frame boundaries from the wire codec
// don't need to line up with websocket message boundaries on read (bytes
// are delivered in order regardless), but Transport always flushes one
// encoded frame per underlying Write call, so each write becomes exactly
// one binary websocket message.
type wsConn struct {
	conn    *websocket.Conn
	readBuf *bytes.Reader
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for c.readBuf == nil || c.readBuf.Len() == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.readBuf = bytes.NewReader(data)
	}
	return c.readBuf.Read(p)
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// NewWebSocket wraps an established *websocket.Conn as a Transport. It is
// the alternate transport for evaluator servers exposed over a network
// boundary instead of a subprocess's stdio pipes.
func NewWebSocket(conn *websocket.Conn, log *logging.Logger) *Transport {
	c := newWSConn(conn)
	return New(c, c, c, log)
}
