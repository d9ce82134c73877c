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

// Package version holds build-time version information and the protocol
// version advertised by this module's transport.
package version

// Application version and build information, set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = ""
)

const (
	// ProtocolVersion is the ESP wire protocol version this module speaks.
	// Bump only on a breaking change to message field order or type codes.
	ProtocolVersion = "1"
)

// UserAgent returns the User-Agent header value sent on package resolver
// HTTP requests, in the "Name/version (os flavor)" form used by Pkl tooling.
func UserAgent(osName, flavor string) string {
	if Version == "" {
		return "esp-core/dev (" + osName + " " + flavor + ")"
	}
	return "esp-core/" + Version + " (" + osName + " " + flavor + ")"
}
