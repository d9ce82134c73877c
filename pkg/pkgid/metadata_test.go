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

package pkgid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkl-community/esp-core/pkg/esperr"
)

func strp(s string) *string { return &s }

func TestDependencyMetadataKeyOrder(t *testing.T) {
	m := DependencyMetadata{
		Name:                "foo",
		PackageURI:          "package://example.com/foo@1.0.0",
		Version:             "1.0.0",
		PackageZipURL:       "https://example.com/foo@1.0.0.zip",
		PackageZipChecksums: Checksums{SHA256: "abc"},
		Dependencies: map[string]DependencyRef{
			"bar": {URI: "package://example.com/bar@2.0.0"},
		},
		License: strp("Apache-2.0"),
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &generic))

	// Decoded keys must include every required field, and the omitted
	// optional fields must truly be absent, not present-as-null.
	for _, key := range []string{"name", "packageUri", "version", "packageZipUrl", "packageZipChecksums", "dependencies", "license"} {
		_, ok := generic[key]
		require.True(t, ok, "expected key %s", key)
	}
	for _, key := range []string{"sourceCode", "documentation", "annotations"} {
		_, ok := generic[key]
		require.False(t, ok, "expected key %s to be absent", key)
	}
}

func TestDependencyMetadataRoundTrip(t *testing.T) {
	m := DependencyMetadata{
		Name:                "foo",
		PackageURI:          "package://example.com/foo@1.0.0",
		Version:             "1.0.0",
		PackageZipURL:       "https://example.com/foo@1.0.0.zip",
		PackageZipChecksums: Checksums{SHA256: "abc"},
		Dependencies: map[string]DependencyRef{
			"bar": {URI: "package://example.com/bar@2.0.0", Checksums: &Checksums{SHA256: "def"}},
		},
		Authors:     []string{"Ada", "Grace"},
		Annotations: []Annotation{Annotation(`{"k":"v"}`)},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var got DependencyMetadata
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, m, got)
}

func TestDependencyMetadataMissingRequiredField(t *testing.T) {
	var m DependencyMetadata
	err := json.Unmarshal([]byte(`{"name":"foo"}`), &m)
	ple, ok := esperr.AsPackageLoadError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgInvalidDependencyMetadata, ple.Name)
}

func TestDependencyMetadataAbsentOptionalKeys(t *testing.T) {
	raw := `{
		"name": "foo",
		"packageUri": "package://example.com/foo@1.0.0",
		"version": "1.0.0",
		"packageZipUrl": "https://example.com/foo@1.0.0.zip",
		"packageZipChecksums": {"sha256": "abc"},
		"dependencies": {}
	}`
	var m DependencyMetadata
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.Empty(t, m.Annotations)
	require.Nil(t, m.License)
}

func TestSortedDependencyNames(t *testing.T) {
	m := DependencyMetadata{Dependencies: map[string]DependencyRef{
		"zeta":  {URI: "package://example.com/zeta@1.0.0"},
		"alpha": {URI: "package://example.com/alpha@1.0.0"},
	}}
	require.Equal(t, []string{"alpha", "zeta"}, m.SortedDependencyNames())
}
