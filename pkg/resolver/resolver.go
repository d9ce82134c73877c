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

// Package resolver implements the package resolver: the subsystem that
// fetches, caches, verifies, and serves package archives on behalf of
// evaluators. MemResolver keeps everything in memory for tests and embedded
// use; DiskResolver adds an on-disk, checksum-verified cache in front of
// HTTPS fetches.
package resolver

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkl-community/esp-core/pkg/esperr"
	"github.com/pkl-community/esp-core/pkg/pkgid"
	"github.com/pkl-community/esp-core/pkg/wire"
)

// skipChecksumVerification is the sentinel checksum value reserved for
// bypassing integrity verification. No resolver honors it: verifyChecksum
// compares it against the computed digest like any other expected value.
const skipChecksumVerification = "$skipChecksumVerification"

// Resolver is the read-only package-asset surface an evaluator uses to
// resolve imports that live inside a package.
type Resolver interface {
	// GetDependencyMetadata fetches (or returns cached) metadata for pkg.
	GetDependencyMetadata(ctx context.Context, pkg pkgid.PackageURI) (pkgid.DependencyMetadata, error)
	// DownloadPackage ensures pkg's zip is present and verified locally.
	// When transitive is true, it recursively downloads every dependency
	// named in pkg's metadata.
	DownloadPackage(ctx context.Context, pkg pkgid.PackageURI, transitive bool) error
	// GetBytes reads one asset's contents. Reading a directory without
	// allowDirectory set is an error.
	GetBytes(ctx context.Context, asset pkgid.PackageAssetURI, allowDirectory bool) ([]byte, error)
	// ListElements lists the immediate children of a directory asset.
	ListElements(ctx context.Context, asset pkgid.PackageAssetURI) ([]wire.PathElement, error)
	// HasElement reports whether asset exists at all, file or directory.
	HasElement(ctx context.Context, asset pkgid.PackageAssetURI) (bool, error)
	// Close releases every zip filesystem handle this resolver opened.
	Close() error
}

// normalizeKey collapses a PackageURI down to the identity used for
// metadata and zip-handle caching: the external ("package") scheme with any
// checksum tail stripped, since the same package is addressable with or
// without a pinned checksum.
func normalizeKey(pkg pkgid.PackageURI) pkgid.PackageURI {
	pkg = pkg.ToExternal()
	pkg.Algorithm = ""
	pkg.Checksum = ""
	return pkg
}

func verifyChecksum(kind esperr.MessageName, data []byte, want string, pkg pkgid.PackageURI, source string) error {
	if want == "" {
		return nil
	}
	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if !strings.EqualFold(got, want) {
		return esperr.NewPackageLoadError(kind, pkg.String(), got, want, source)
	}
	return nil
}

// zipArchive wraps a *zip.Reader (shared by both in-memory and on-disk
// backends, since zip.ReadCloser embeds *zip.Reader) with fragment-path
// accessors mirroring PackageAssetURI semantics.
type zipArchive struct {
	r      *zip.Reader
	closer io.Closer
}

func entryName(fragment string) string {
	return strings.TrimPrefix(fragment, "/")
}

func (z *zipArchive) find(fragment string) (*zip.File, bool) {
	name := strings.TrimSuffix(entryName(fragment), "/")
	for _, f := range z.r.File {
		if strings.TrimSuffix(f.Name, "/") == name {
			return f, true
		}
	}
	return nil, false
}

func (z *zipArchive) GetBytes(fragment string, allowDirectory bool) ([]byte, error) {
	f, ok := z.find(fragment)
	if !ok {
		// A directory with no entry of its own still exists when some
		// entry lies beneath it.
		elems, err := z.ListElements(fragment)
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return nil, fmt.Errorf("resolver: asset not found: %s", fragment)
		}
		if !allowDirectory {
			return nil, esperr.NewPackageLoadError(esperr.MsgFileIsADirectory, fragment)
		}
		return nil, nil
	}
	if f.FileInfo().IsDir() {
		if !allowDirectory {
			return nil, esperr.NewPackageLoadError(esperr.MsgFileIsADirectory, fragment)
		}
		return nil, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (z *zipArchive) ListElements(fragment string) ([]wire.PathElement, error) {
	prefix := strings.TrimSuffix(entryName(fragment), "/")
	if prefix != "" {
		prefix += "/"
	}
	seen := map[string]bool{}
	var out []wire.PathElement
	for _, f := range z.r.File {
		name := strings.TrimSuffix(f.Name, "/")
		if name == strings.TrimSuffix(prefix, "/") || !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(f.Name, prefix)
		if rest == "" {
			continue
		}
		child := rest
		isDir := strings.Contains(rest, "/")
		if isDir {
			child = rest[:strings.Index(rest, "/")]
		} else {
			isDir = f.FileInfo().IsDir()
		}
		if seen[child] {
			continue
		}
		seen[child] = true
		out = append(out, wire.PathElement{Name: child, IsDirectory: isDir})
	}
	return out, nil
}

func (z *zipArchive) HasElement(fragment string) (bool, error) {
	if _, ok := z.find(fragment); ok {
		return true, nil
	}
	elems, err := z.ListElements(fragment)
	if err != nil {
		return false, err
	}
	return len(elems) > 0, nil
}

func (z *zipArchive) Close() error {
	if z.closer != nil {
		return z.closer.Close()
	}
	return nil
}

// handleCache reference-counts opened zipArchives by package identity, so
// repeated resolution of the same package reuses one archive handle.
type handleCache struct {
	mu   sync.Mutex
	open map[pkgid.PackageURI]*refCountedHandle
}

type refCountedHandle struct {
	archive *zipArchive
	count   int
}

func newHandleCache() *handleCache {
	return &handleCache{open: make(map[pkgid.PackageURI]*refCountedHandle)}
}

func (c *handleCache) acquire(key pkgid.PackageURI, open func() (*zipArchive, error)) (*zipArchive, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.open[key]; ok {
		h.count++
		return h.archive, nil
	}
	archive, err := open()
	if err != nil {
		return nil, err
	}
	c.open[key] = &refCountedHandle{archive: archive, count: 1}
	return archive, nil
}

func (c *handleCache) release(key pkgid.PackageURI) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.open[key]
	if !ok {
		return nil
	}
	h.count--
	if h.count <= 0 {
		delete(c.open, key)
		return h.archive.Close()
	}
	return nil
}

func (c *handleCache) closeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var first error
	for key, h := range c.open {
		if err := h.archive.Close(); err != nil && first == nil {
			first = err
		}
		delete(c.open, key)
	}
	return first
}
