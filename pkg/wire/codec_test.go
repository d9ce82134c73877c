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

package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pkl-community/esp-core/pkg/esperr"
)

func int64p(v int64) *int64   { return &v }
func strp(v string) *string   { return &v }

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, EncodeMessage(&buf, m))
	got, err := DecodeMessage(&buf)
	require.NoError(t, err)
	return got
}

func TestRoundTripAllVariants(t *testing.T) {
	cases := []Message{
		&CreateEvaluatorRequest{
			RequestID:        1,
			AllowedModules:   []string{"pkl:", "repl:", "file:"},
			AllowedResources: []string{"env:", "prop:"},
			ClientModuleReaders: []ModuleReaderSpec{
				{Scheme: "customfs", HasHierarchicalUris: true, IsLocal: true, IsGlobbable: true},
			},
			ClientResourceReaders: []ResourceReaderSpec{
				{Scheme: "custom", HasHierarchicalUris: false, IsGlobbable: false},
			},
			ModulePaths:    []string{"/tmp/mod"},
			Env:            map[string]string{"FOO": "bar"},
			Properties:     map[string]string{"os.name": "linux"},
			TimeoutSeconds: int64p(30),
			RootDir:        strp("/root"),
			CacheDir:       strp("/cache"),
			OutputFormat:   strp("json"),
			Project: &Project{
				ProjectFileURI: "file:///proj/PklProject",
				PackageURI:     strp("package://example.com/foo@1.0.0"),
				Dependencies: map[string]*Dependency{
					"bar": {Type: "remote", PackageURI: "package://example.com/bar@2.0.0", Checksums: &Checksums{SHA256: "deadbeef"}},
					"baz": {Type: "local", ProjectFileURI: "file:///proj/baz/PklProject", Dependencies: map[string]*Dependency{}},
				},
			},
			HTTP: &HTTPOptions{
				CACertificates: []byte{1, 2, 3},
				Proxy:          &Proxy{Address: "http://proxy:8080", NoProxy: []string{"localhost"}},
			},
		},
		&CreateEvaluatorResponse{RequestID: 1, EvaluatorID: int64p(42)},
		&CreateEvaluatorResponse{RequestID: 2, Error: strp("boom")},
		&CloseEvaluator{EvaluatorID: 42},
		&EvaluateRequest{RequestID: 3, EvaluatorID: 42, ModuleURI: "file:///a.pkl", Expr: strp("1+1")},
		&EvaluateResponse{RequestID: 3, EvaluatorID: 42, Result: []byte("result-bytes")},
		&EvaluateResponse{RequestID: 4, EvaluatorID: 42, Error: strp("evaluation failed")},
		&LogMessage{EvaluatorID: 42, Level: LogLevelWarn, Message: "hi", FrameURI: "file:///a.pkl"},
		&ReadResourceRequest{RequestID: 5, EvaluatorID: 42, URI: "env:FOO"},
		&ReadResourceResponse{RequestID: 5, EvaluatorID: 42, Contents: []byte("bar")},
		&ReadModuleRequest{RequestID: 6, EvaluatorID: 42, URI: "file:///a.pkl"},
		&ReadModuleResponse{RequestID: 6, EvaluatorID: 42, Contents: strp("amends \"base.pkl\"")},
		&ListResourcesRequest{RequestID: 7, EvaluatorID: 42, URI: "file:///dir/"},
		&ListResourcesResponse{RequestID: 7, EvaluatorID: 42, PathElements: []PathElement{{Name: "a.pkl", IsDirectory: false}}},
		&ListModulesRequest{RequestID: 8, EvaluatorID: 42, URI: "file:///dir/"},
		&ListModulesResponse{RequestID: 8, EvaluatorID: 42, PathElements: []PathElement{{Name: "sub", IsDirectory: true}}},
	}

	for _, m := range cases {
		t.Run(m.MessageType().String(), func(t *testing.T) {
			got := roundTrip(t, m)
			require.Equal(t, m, got)
		})
	}
}

func TestTypeStringAndPredicates(t *testing.T) {
	require.Equal(t, "CreateEvaluatorRequest", TypeCreateEvaluatorRequest.String())
	require.Equal(t, "Unknown", Type(0xff).String())
	require.True(t, TypeCloseEvaluator.IsOneWay())
	require.True(t, TypeLogMessage.IsOneWay())
	require.False(t, TypeEvaluateRequest.IsOneWay())
	require.True(t, TypeEvaluateRequest.IsRequest())
	require.True(t, TypeEvaluateResponse.IsResponse())
}

func TestDecodeMalformedOuterLength(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.EncodeArrayLen(3))
	require.NoError(t, enc.EncodeInt(5))
	require.NoError(t, enc.EncodeInt(6))
	require.NoError(t, enc.EncodeInt(7))

	_, err := DecodeMessage(&buf)
	de, ok := esperr.AsDecodeError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgMalformedHeaderLength, de.Name)
}

func TestDecodeUnrecognizedTypeCode(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.EncodeArrayLen(2))
	require.NoError(t, enc.EncodeInt(0x99))
	require.NoError(t, enc.EncodeMapLen(0))

	_, err := DecodeMessage(&buf)
	de, ok := esperr.AsDecodeError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgMalformedHeaderUnrecognized, de.Name)
}

func TestDecodeMissingRequiredField(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.EncodeArrayLen(2))
	require.NoError(t, enc.EncodeInt(int(TypeCloseEvaluator)))
	require.NoError(t, enc.EncodeMapLen(0))

	_, err := DecodeMessage(&buf)
	de, ok := esperr.AsDecodeError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgMissingRequiredField, de.Name)
}

func TestDecodeUnexpectedFieldTypeIsDecodeError(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	require.NoError(t, enc.EncodeArrayLen(2))
	require.NoError(t, enc.EncodeInt(int(TypeCloseEvaluator)))
	require.NoError(t, enc.EncodeMapLen(1))
	require.NoError(t, enc.EncodeString("evaluatorId"))
	require.NoError(t, enc.EncodeString("not-an-int"))

	_, err := DecodeMessage(&buf)
	de, ok := esperr.AsDecodeError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgUnexpectedFieldType, de.Name)
}

func TestRequestIDAndEvaluatorIDAccessors(t *testing.T) {
	m := &EvaluateRequest{RequestID: 9, EvaluatorID: 42}
	id, ok := RequestID(m)
	require.True(t, ok)
	require.Equal(t, int64(9), id)

	eid, ok := EvaluatorID(m)
	require.True(t, ok)
	require.Equal(t, int64(42), eid)

	cr := &CreateEvaluatorRequest{RequestID: 1}
	_, ok = EvaluatorID(cr)
	require.False(t, ok)

	log := &LogMessage{EvaluatorID: 7}
	_, ok = RequestID(log)
	require.False(t, ok)
}
