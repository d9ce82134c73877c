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

package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/pkl-community/esp-core/pkg/esperr"
	"github.com/pkl-community/esp-core/pkg/pkgid"
)

// newTestServer serves /foo@1.0.0 (metadata) and /foo@1.0.0.zip (package
// bytes) over plain HTTP; DiskResolver is pointed at it by swapping the
// package's metadataRequestURI host via a custom Transport instead of
// requiring a real TLS certificate.
func newTestServer(t *testing.T, zipBytes []byte, metaOverride func(pkgid.DependencyMetadata) pkgid.DependencyMetadata) *httptest.Server {
	t.Helper()
	var mux http.ServeMux
	mux.HandleFunc("/foo@1.0.0", func(w http.ResponseWriter, r *http.Request) {
		meta := pkgid.DependencyMetadata{
			Name:                "foo",
			PackageURI:          "package://example.com/foo@1.0.0",
			Version:             "1.0.0",
			PackageZipURL:       "", // filled in below once we know the server URL
			PackageZipChecksums: pkgid.Checksums{SHA256: sha256Hex(zipBytes)},
			Dependencies:        map[string]pkgid.DependencyRef{},
		}
		if metaOverride != nil {
			meta = metaOverride(meta)
		}
		data, err := json.Marshal(meta)
		require.NoError(t, err)
		_, _ = w.Write(data)
	})
	mux.HandleFunc("/foo@1.0.0.zip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes)
	})
	return httptest.NewServer(&mux)
}

// httpsURL rewrites a plain http:// test server URL to look like https:// so
// it satisfies fetchBytes' scheme check; the resolver's *http.Client is
// given a custom Transport that redirects the https call back to the real
// plaintext test server.
func httpsURL(u string) string {
	return "https://" + strings.TrimPrefix(u, "http://")
}

type rewriteTransport struct {
	backend string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(t.backend, "http://")
	req.Host = req.URL.Host
	return http.DefaultTransport.RoundTrip(req)
}

func newDiskResolver(t *testing.T, backend string) (*DiskResolver, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	client := &http.Client{Transport: &rewriteTransport{backend: backend}}
	return NewDiskResolver(fs, "/cache", WithHTTPClient(client)), fs
}

func TestDiskResolverFetchesAndCachesMetadata(t *testing.T) {
	zipBytes := buildZip(t, map[string]string{"a.pkl": "hi"})
	var srvRef *httptest.Server
	srv := newTestServer(t, zipBytes, func(m pkgid.DependencyMetadata) pkgid.DependencyMetadata {
		m.PackageZipURL = httpsURL(srvRef.URL) + "/foo@1.0.0.zip"
		return m
	})
	srvRef = srv
	defer srv.Close()

	r, fs := newDiskResolver(t, srv.URL)
	pkg, err := pkgid.ParsePackageURI("package://example.com/foo@1.0.0")
	require.NoError(t, err)

	meta, err := r.GetDependencyMetadata(context.Background(), pkg)
	require.NoError(t, err)
	require.Equal(t, "foo", meta.Name)

	exists, err := afero.Exists(fs, r.metadataPath(pkg))
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, r.Close())
}

func TestDiskResolverDownloadPackageVerifiesChecksum(t *testing.T) {
	zipBytes := buildZip(t, map[string]string{"a.pkl": "hi"})
	var srvRef *httptest.Server
	srv := newTestServer(t, zipBytes, func(m pkgid.DependencyMetadata) pkgid.DependencyMetadata {
		m.PackageZipURL = httpsURL(srvRef.URL) + "/foo@1.0.0.zip"
		return m
	})
	srvRef = srv
	defer srv.Close()

	r, fs := newDiskResolver(t, srv.URL)
	pkg, err := pkgid.ParsePackageURI("package://example.com/foo@1.0.0")
	require.NoError(t, err)

	require.NoError(t, r.DownloadPackage(context.Background(), pkg, false))
	exists, err := afero.Exists(fs, r.zipPath(pkg))
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, r.Close())
}

func TestDiskResolverBadChecksumFails(t *testing.T) {
	zipBytes := buildZip(t, map[string]string{"a.pkl": "hi"})
	var srvRef *httptest.Server
	srv := newTestServer(t, zipBytes, func(m pkgid.DependencyMetadata) pkgid.DependencyMetadata {
		m.PackageZipURL = httpsURL(srvRef.URL) + "/foo@1.0.0.zip"
		m.PackageZipChecksums.SHA256 = "0000000000000000000000000000000000000000000000000000000000000"
		return m
	})
	srvRef = srv
	defer srv.Close()

	r, _ := newDiskResolver(t, srv.URL)
	pkg, err := pkgid.ParsePackageURI("package://example.com/foo@1.0.0")
	require.NoError(t, err)

	err = r.DownloadPackage(context.Background(), pkg, false)
	ple, ok := esperr.AsPackageLoadError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgInvalidPackageZipChecksum, ple.Name)
	require.NoError(t, r.Close())
}

func TestDiskResolverBadHTTPStatus(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/foo@1.0.0", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	r, _ := newDiskResolver(t, srv.URL)
	pkg, err := pkgid.ParsePackageURI("package://example.com/foo@1.0.0")
	require.NoError(t, err)

	_, err = r.GetDependencyMetadata(context.Background(), pkg)
	ple, ok := esperr.AsPackageLoadError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgBadHTTPStatusCode, ple.Name)
	require.NoError(t, r.Close())
}

func TestDiskResolverRejectsNonHTTPS(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := NewDiskResolver(fs, "/cache")
	_, err := r.fetchBytes(context.Background(), "http://example.com/foo@1.0.0")
	ple, ok := esperr.AsPackageLoadError(err)
	require.True(t, ok)
	require.Equal(t, esperr.MsgInvalidPackageZipURL, ple.Name)
}

