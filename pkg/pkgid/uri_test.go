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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkl-community/esp-core/pkg/esperr"
)

func TestParsePackageURIRoundTrip(t *testing.T) {
	for _, raw := range []string{
		"package://example.com/foo@1.2.3",
		"package://example.com/foo/bar@1.2.3",
		"package://example.com/foo@1.2.3::sha256:deadbeef",
		"projectpackage://example.com/foo@1.0.0",
	} {
		t.Run(raw, func(t *testing.T) {
			u, err := ParsePackageURI(raw)
			require.NoError(t, err)
			require.Equal(t, raw, u.String())
		})
	}
}

func TestParsePackageURIFields(t *testing.T) {
	u, err := ParsePackageURI("package://example.com/foo/bar@1.2.3::sha256:deadbeef")
	require.NoError(t, err)
	require.Equal(t, "example.com", u.Authority)
	require.Equal(t, "foo/bar", u.PathWithoutVersion)
	require.Equal(t, "1.2.3", u.Version)
	require.Equal(t, "sha256", u.Algorithm)
	require.Equal(t, "deadbeef", u.Checksum)
	require.Equal(t, "bar", u.LastSegment())
	require.True(t, u.HasChecksum())
}

func TestParsePackageURIMissingAt(t *testing.T) {
	_, err := ParsePackageURI("package://example.com/foo")
	ple, ok := esperr.AsPackageLoadError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgInvalidPackageURI, ple.Name)
}

func TestParsePackageURIRejectsFragment(t *testing.T) {
	_, err := ParsePackageURI("package://example.com/foo@1.0.0#/x.pkl")
	_, ok := esperr.AsPackageLoadError(err)
	require.True(t, ok)
}

func TestToExternalAndToProject(t *testing.T) {
	u, err := ParsePackageURI("projectpackage://example.com/foo@1.0.0")
	require.NoError(t, err)
	ext := u.ToExternal()
	require.Equal(t, SchemePackage, ext.Scheme)
	require.Equal(t, SchemeProjectPackage, ext.ToProject().Scheme)
}

func TestMetadataRequestURI(t *testing.T) {
	u, err := ParsePackageURI("package://example.com/foo@1.2.3::sha256:deadbeef")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/foo@1.2.3", u.MetadataRequestURI())
}

func TestParsePackageAssetURIRoundTrip(t *testing.T) {
	raw := "package://example.com/foo@1.2.3#/dir/file.pkl"
	a, err := ParsePackageAssetURI(raw)
	require.NoError(t, err)
	require.Equal(t, raw, a.String())
	require.Equal(t, "/dir/file.pkl", a.Fragment)
}

func TestParsePackageAssetURIMissingFragment(t *testing.T) {
	_, err := ParsePackageAssetURI("package://example.com/foo@1.2.3")
	ple, ok := esperr.AsPackageLoadError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgInvalidPackageAssetURI, ple.Name)
}

func TestParsePackageAssetURINonSlashFragment(t *testing.T) {
	_, err := ParsePackageAssetURI("package://example.com/foo@1.2.3#bad")
	_, ok := esperr.AsPackageLoadError(err)
	require.True(t, ok)
}

func TestJoinFragment(t *testing.T) {
	a, err := ParsePackageAssetURI("package://example.com/foo@1.2.3#/dir/file.pkl")
	require.NoError(t, err)

	sibling := a.JoinFragment("other.pkl")
	require.Equal(t, "/dir/other.pkl", sibling.Fragment)

	up := a.JoinFragment("../up.pkl")
	require.Equal(t, "/up.pkl", up.Fragment)

	abs := a.JoinFragment("/abs.pkl")
	require.Equal(t, "/abs.pkl", abs.Fragment)
}
