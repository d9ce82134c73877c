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

	"github.com/pkl-community/esp-core/pkg/esperr"
	"github.com/pkl-community/esp-core/pkg/pkgid"
	"github.com/pkl-community/esp-core/pkg/wire"
)

type memEntry struct {
	rawMetadata []byte
	metadata    pkgid.DependencyMetadata
	zip         []byte
}

// MemResolver serves packages seeded entirely in memory: no network, no
// filesystem. It is the resolver used by unit tests and by embedders that
// precompute a fixed dependency set at startup.
type MemResolver struct {
	entries map[pkgid.PackageURI]*memEntry
	handles *handleCache
}

// NewMemResolver returns an empty resolver; call Seed to register packages.
func NewMemResolver() *MemResolver {
	return &MemResolver{
		entries: make(map[pkgid.PackageURI]*memEntry),
		handles: newHandleCache(),
	}
}

// Seed registers pkg's metadata and zip bytes so later resolver calls can
// serve them without any I/O.
func (r *MemResolver) Seed(pkg pkgid.PackageURI, meta pkgid.DependencyMetadata, zipBytes []byte) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	r.entries[normalizeKey(pkg)] = &memEntry{rawMetadata: raw, metadata: meta, zip: zipBytes}
	return nil
}

func (r *MemResolver) lookup(pkg pkgid.PackageURI) (*memEntry, error) {
	e, ok := r.entries[normalizeKey(pkg)]
	if !ok {
		return nil, esperr.NewPackageLoadError(esperr.MsgInvalidDependencyMetadata, pkg.String())
	}
	return e, nil
}

func (r *MemResolver) GetDependencyMetadata(ctx context.Context, pkg pkgid.PackageURI) (pkgid.DependencyMetadata, error) {
	e, err := r.lookup(pkg)
	if err != nil {
		return pkgid.DependencyMetadata{}, err
	}
	if pkg.HasChecksum() {
		if err := verifyChecksum(esperr.MsgInvalidPackageMetadataChecksum, e.rawMetadata, pkg.Checksum, pkg, "memory"); err != nil {
			return pkgid.DependencyMetadata{}, err
		}
	}
	return e.metadata, nil
}

// DownloadPackage is unsupported on the in-memory resolver: everything it
// serves is already seeded in RAM, so there is nothing to download.
func (r *MemResolver) DownloadPackage(ctx context.Context, pkg pkgid.PackageURI, transitive bool) error {
	return esperr.NewPackageLoadError(esperr.MsgOperationNotSupported, pkg.String())
}

func (r *MemResolver) archiveFor(pkg pkgid.PackageURI) (*zipArchive, error) {
	key := normalizeKey(pkg)
	return r.handles.acquire(key, func() (*zipArchive, error) {
		e, err := r.lookup(pkg)
		if err != nil {
			return nil, err
		}
		zr, err := zip.NewReader(bytes.NewReader(e.zip), int64(len(e.zip)))
		if err != nil {
			return nil, err
		}
		return &zipArchive{r: zr}, nil
	})
}

func (r *MemResolver) GetBytes(ctx context.Context, asset pkgid.PackageAssetURI, allowDirectory bool) ([]byte, error) {
	a, err := r.archiveFor(asset.Package)
	if err != nil {
		return nil, err
	}
	defer r.handles.release(normalizeKey(asset.Package))
	return a.GetBytes(asset.Fragment, allowDirectory)
}

func (r *MemResolver) ListElements(ctx context.Context, asset pkgid.PackageAssetURI) ([]wire.PathElement, error) {
	a, err := r.archiveFor(asset.Package)
	if err != nil {
		return nil, err
	}
	defer r.handles.release(normalizeKey(asset.Package))
	return a.ListElements(asset.Fragment)
}

func (r *MemResolver) HasElement(ctx context.Context, asset pkgid.PackageAssetURI) (bool, error) {
	a, err := r.archiveFor(asset.Package)
	if err != nil {
		return false, err
	}
	defer r.handles.release(normalizeKey(asset.Package))
	return a.HasElement(asset.Fragment)
}

func (r *MemResolver) Close() error {
	return r.handles.closeAll()
}
