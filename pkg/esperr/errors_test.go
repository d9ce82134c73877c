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

package esperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestDecodeErrorWrapsAndFormats(t *testing.T) {
	cause := errors.New("eof")
	err := NewDecodeError(MsgMalformedHeaderUnrecognized, "ff").WithCause(cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "malformedMessageHeaderUnrecognizedCode")
	require.Contains(t, err.Error(), "ff")
	require.Contains(t, err.Error(), "eof")

	got, ok := AsDecodeError(err)
	require.True(t, ok)
	require.Equal(t, MsgMalformedHeaderUnrecognized, got.Name)
}

func TestProtocolErrorFormats(t *testing.T) {
	err := NewProtocolError(MsgUnknownRequestID, int64(9))
	require.Contains(t, err.Error(), "unknownRequestId")
	require.Contains(t, err.Error(), "9")

	_, ok := AsProtocolError(err)
	require.True(t, ok)

	_, ok = AsDecodeError(err)
	require.False(t, ok)
}

func TestPackageLoadErrorUnwrap(t *testing.T) {
	cause := errors.New("checksum mismatch")
	err := NewPackageLoadError(MsgInvalidPackageZipChecksum, "foo", "feedface", "deadbeef", "https://x/foo.zip").WithCause(cause)

	require.ErrorIs(t, err, cause)
	ple, ok := AsPackageLoadError(err)
	require.True(t, ok)
	require.Equal(t, MsgInvalidPackageZipChecksum, ple.Name)
}

func TestLocalize(t *testing.T) {
	en := Localize(language.English, MsgUnknownEvaluator)
	es := Localize(language.Spanish, MsgUnknownEvaluator)
	require.Equal(t, "unknown evaluator", en)
	require.Equal(t, "evaluador desconocido", es)

	// Unregistered language falls back to English.
	fallback := Localize(language.French, MsgUnknownEvaluator)
	require.Equal(t, en, fallback)
}

func TestLocalizeWithArgs(t *testing.T) {
	msg := Localize(language.English, MsgBadHTTPStatusCode, 404, "https://example.com/pkg.zip")
	require.Contains(t, msg, "404")
	require.Contains(t, msg, "https://example.com/pkg.zip")
}
