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
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/pkl-community/esp-core/pkg/esperr"
	"github.com/pkl-community/esp-core/pkg/logging"
	"github.com/pkl-community/esp-core/pkg/pkgid"
	"github.com/pkl-community/esp-core/pkg/version"
	"github.com/pkl-community/esp-core/pkg/wire"
)

// DefaultCacheDir returns the XDG cache directory this process uses when no
// explicit --cache-dir is configured.
func DefaultCacheDir() (string, error) {
	return xdg.CacheFile("esp-core/package-1")
}

// DiskResolver fetches packages over HTTPS, verifies their checksums, and
// caches metadata and zip archives under a cache directory laid out as
// <cacheDir>/<authority>/<pathWithoutVersion>/<lastSegment>@<version>.{json,zip},
// with downloads staged under <cacheDir>/tmp/ before an atomic rename.
type DiskResolver struct {
	fs       afero.Fs
	cacheDir string
	client   *http.Client
	log      *logging.Logger
	osFlavor string

	mu       sync.Mutex
	metadata map[pkgid.PackageURI]pkgid.DependencyMetadata

	handles *handleCache
}

// Option configures a DiskResolver at construction time.
type Option func(*DiskResolver)

// WithHTTPClient overrides the default http.Client, e.g. to install a proxy
// or custom TLS configuration from CreateEvaluatorRequest.HTTP.
func WithHTTPClient(client *http.Client) Option {
	return func(r *DiskResolver) { r.client = client }
}

// WithLogger overrides the package-level global logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *DiskResolver) { r.log = log }
}

// NewDiskResolver constructs a resolver backed by fs rooted at cacheDir.
// Callers that want a real OS filesystem pass afero.NewOsFs(); tests
// typically pass afero.NewMemMapFs().
func NewDiskResolver(fs afero.Fs, cacheDir string, opts ...Option) *DiskResolver {
	r := &DiskResolver{
		fs:       fs,
		cacheDir: cacheDir,
		client:   http.DefaultClient,
		metadata: make(map[pkgid.PackageURI]pkgid.DependencyMetadata),
		handles:  newHandleCache(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DiskResolver) logger() *logging.Logger {
	if r.log != nil {
		return r.log
	}
	return logging.GetLogger()
}

func (r *DiskResolver) metadataPath(pkg pkgid.PackageURI) string {
	return filepath.Join(r.cacheDir, pkg.Authority, pkg.PathWithoutVersion, pkg.LastSegment()+"@"+pkg.Version+".json")
}

func (r *DiskResolver) zipPath(pkg pkgid.PackageURI) string {
	return filepath.Join(r.cacheDir, pkg.Authority, pkg.PathWithoutVersion, pkg.LastSegment()+"@"+pkg.Version+".zip")
}

func (r *DiskResolver) tmpPath() string {
	return filepath.Join(r.cacheDir, "tmp", uuid.NewString())
}

// stageAndCommit writes data to a fresh tmp file, then atomically renames it
// into place at dest and marks it read-only, so a crash mid-write never
// leaves a corrupt file at dest.
func (r *DiskResolver) stageAndCommit(dest string, data []byte) error {
	if err := r.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := r.tmpPath()
	if err := r.fs.MkdirAll(filepath.Dir(tmp), 0o755); err != nil {
		return err
	}
	if err := afero.WriteFile(r.fs, tmp, data, 0o644); err != nil {
		return err
	}
	if err := r.fs.Rename(tmp, dest); err != nil {
		return err
	}
	return r.fs.Chmod(dest, 0o444)
}

func (r *DiskResolver) userAgent() string {
	return version.UserAgent(runtime.GOOS, r.osFlavor)
}

// GetDependencyMetadata returns pkg's DependencyMetadata, from the memo
// cache, then the disk cache, then falling back to an HTTPS fetch.
func (r *DiskResolver) GetDependencyMetadata(ctx context.Context, pkg pkgid.PackageURI) (pkgid.DependencyMetadata, error) {
	key := normalizeKey(pkg)

	r.mu.Lock()
	if meta, ok := r.metadata[key]; ok {
		r.mu.Unlock()
		return meta, nil
	}
	r.mu.Unlock()

	cachePath := r.metadataPath(key)
	if raw, err := afero.ReadFile(r.fs, cachePath); err == nil {
		meta, err := r.parseAndVerifyMetadata(pkg, raw, "cache:"+cachePath)
		if err != nil {
			return pkgid.DependencyMetadata{}, err
		}
		r.memoizeMetadata(key, meta)
		return meta, nil
	}

	raw, err := r.fetchBytes(ctx, key.MetadataRequestURI())
	if err != nil {
		return pkgid.DependencyMetadata{}, err
	}
	meta, err := r.parseAndVerifyMetadata(pkg, raw, key.MetadataRequestURI())
	if err != nil {
		return pkgid.DependencyMetadata{}, err
	}
	if err := r.stageAndCommit(cachePath, raw); err != nil {
		r.logger().Warn("failed to cache package metadata", "package", key.String(), "err", err)
	}
	r.memoizeMetadata(key, meta)
	return meta, nil
}

func (r *DiskResolver) memoizeMetadata(key pkgid.PackageURI, meta pkgid.DependencyMetadata) {
	r.mu.Lock()
	r.metadata[key] = meta
	r.mu.Unlock()
}

func (r *DiskResolver) parseAndVerifyMetadata(pkg pkgid.PackageURI, raw []byte, source string) (pkgid.DependencyMetadata, error) {
	if pkg.HasChecksum() {
		if err := verifyChecksum(esperr.MsgInvalidPackageMetadataChecksum, raw, pkg.Checksum, pkg, source); err != nil {
			return pkgid.DependencyMetadata{}, err
		}
	}
	var meta pkgid.DependencyMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return pkgid.DependencyMetadata{}, err
	}
	return meta, nil
}

// fetchBytes performs an HTTPS GET, enforcing the https-only requirement
// and surfacing non-200 responses and I/O failures as PackageLoadError.
func (r *DiskResolver) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "https://") {
		return nil, esperr.NewPackageLoadError(esperr.MsgInvalidPackageZipURL, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, esperr.NewPackageLoadError(esperr.MsgIOErrorMakingHTTPGet, url).WithCause(err)
	}
	req.Header.Set("User-Agent", r.userAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, esperr.NewPackageLoadError(esperr.MsgIOErrorMakingHTTPGet, url).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, esperr.NewPackageLoadError(esperr.MsgBadHTTPStatusCode, resp.StatusCode, url)
	}

	counter := &progressCounter{url: url, expected: uint64(resp.ContentLength), log: r.logger()}
	data, err := io.ReadAll(io.TeeReader(resp.Body, counter))
	if err != nil {
		return nil, esperr.NewPackageLoadError(esperr.MsgIOErrorMakingHTTPGet, url).WithCause(err)
	}
	return data, nil
}

// progressCounter logs download progress the way a long-running fetch
// reports it on a terminal, without writing directly to stdout so it
// composes with structured logging.
type progressCounter struct {
	url      string
	expected uint64
	total    uint64
	log      *logging.Logger
}

func (c *progressCounter) Write(p []byte) (int, error) {
	c.total += uint64(len(p))
	if c.expected > 0 {
		c.log.Debug("fetching package",
			"url", c.url, "received", humanize.Bytes(c.total), "expected", humanize.Bytes(c.expected))
	}
	return len(p), nil
}

// DownloadPackage ensures pkg's zip is cached locally and checksum-verified,
// recursing into pkg's declared dependencies when transitive is true.
func (r *DiskResolver) DownloadPackage(ctx context.Context, pkg pkgid.PackageURI, transitive bool) error {
	meta, err := r.GetDependencyMetadata(ctx, pkg)
	if err != nil {
		return err
	}

	zipDest := r.zipPath(normalizeKey(pkg))
	if exists, _ := afero.Exists(r.fs, zipDest); !exists {
		if err := r.downloadZip(ctx, pkg, meta, zipDest); err != nil {
			return err
		}
	}

	if !transitive {
		return nil
	}
	for _, name := range meta.SortedDependencyNames() {
		dep := meta.Dependencies[name]
		depURI, err := pkgid.ParsePackageURI(dep.URI)
		if err != nil {
			return err
		}
		if err := r.DownloadPackage(ctx, depURI, true); err != nil {
			return err
		}
	}
	return nil
}

func (r *DiskResolver) downloadZip(ctx context.Context, pkg pkgid.PackageURI, meta pkgid.DependencyMetadata, dest string) error {
	data, err := r.fetchBytes(ctx, meta.PackageZipURL)
	if err != nil {
		return err
	}

	if mt := mimetype.Detect(data); !strings.Contains(mt.String(), "zip") {
		r.logger().Warn("package zip has unexpected content type", "url", meta.PackageZipURL, "detected", mt.String())
	}

	if err := verifyChecksum(esperr.MsgInvalidPackageZipChecksum, data, meta.PackageZipChecksums.SHA256, pkg, meta.PackageZipURL); err != nil {
		return err
	}

	return r.stageAndCommit(dest, data)
}

func (r *DiskResolver) archiveFor(ctx context.Context, pkg pkgid.PackageURI) (*zipArchive, error) {
	key := normalizeKey(pkg)
	return r.handles.acquire(key, func() (*zipArchive, error) {
		if err := r.DownloadPackage(ctx, pkg, false); err != nil {
			return nil, err
		}
		data, err := afero.ReadFile(r.fs, r.zipPath(key))
		if err != nil {
			return nil, err
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, err
		}
		return &zipArchive{r: zr}, nil
	})
}

func (r *DiskResolver) GetBytes(ctx context.Context, asset pkgid.PackageAssetURI, allowDirectory bool) ([]byte, error) {
	a, err := r.archiveFor(ctx, asset.Package)
	if err != nil {
		return nil, err
	}
	defer r.handles.release(normalizeKey(asset.Package))
	return a.GetBytes(asset.Fragment, allowDirectory)
}

func (r *DiskResolver) ListElements(ctx context.Context, asset pkgid.PackageAssetURI) ([]wire.PathElement, error) {
	a, err := r.archiveFor(ctx, asset.Package)
	if err != nil {
		return nil, err
	}
	defer r.handles.release(normalizeKey(asset.Package))
	return a.ListElements(asset.Fragment)
}

func (r *DiskResolver) HasElement(ctx context.Context, asset pkgid.PackageAssetURI) (bool, error) {
	a, err := r.archiveFor(ctx, asset.Package)
	if err != nil {
		return false, err
	}
	defer r.handles.release(normalizeKey(asset.Package))
	return a.HasElement(asset.Fragment)
}

func (r *DiskResolver) Close() error {
	return r.handles.closeAll()
}
