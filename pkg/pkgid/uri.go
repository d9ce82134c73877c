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

// Package pkgid implements package identity: the PackageURI and
// PackageAssetURI grammars and the DependencyMetadata document format that
// ties a package's declared name and version to its download location and
// integrity hash.
package pkgid

import (
	"strings"

	"github.com/pkl-community/esp-core/pkg/esperr"
)

const (
	SchemePackage        = "package"
	SchemeProjectPackage = "projectpackage"

	AlgorithmSHA256 = "sha256"
)

// PackageURI identifies a package, optionally pinned to a checksum:
// scheme://authority/path@version[::algorithm:checksum]
type PackageURI struct {
	Scheme             string
	Authority          string
	PathWithoutVersion string
	Version            string
	Algorithm          string // "" if no checksum tail
	Checksum           string // "" if no checksum tail
}

// HasChecksum reports whether u carries a `::algorithm:checksum` tail.
func (u PackageURI) HasChecksum() bool {
	return u.Algorithm != "" && u.Checksum != ""
}

// LastSegment returns the final path component before the version, used to
// name the cached metadata/zip files on disk.
func (u PackageURI) LastSegment() string {
	idx := strings.LastIndex(u.PathWithoutVersion, "/")
	if idx < 0 {
		return u.PathWithoutVersion
	}
	return u.PathWithoutVersion[idx+1:]
}

// String renders u back to its canonical textual form.
func (u PackageURI) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Authority)
	b.WriteByte('/')
	b.WriteString(u.PathWithoutVersion)
	b.WriteByte('@')
	b.WriteString(u.Version)
	if u.HasChecksum() {
		b.WriteString("::")
		b.WriteString(u.Algorithm)
		b.WriteByte(':')
		b.WriteString(u.Checksum)
	}
	return b.String()
}

// ParsePackageURI parses a bare package URI string. The fragment syntax is
// only legal on PackageAssetURI; a "#" here is a parse error.
func ParsePackageURI(raw string) (PackageURI, error) {
	if strings.Contains(raw, "#") {
		return PackageURI{}, esperr.NewPackageLoadError(esperr.MsgInvalidPackageURI, raw)
	}
	return parsePackageURI(raw)
}

func parsePackageURI(raw string) (PackageURI, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || (scheme != SchemePackage && scheme != SchemeProjectPackage) {
		return PackageURI{}, esperr.NewPackageLoadError(esperr.MsgInvalidPackageURI, raw)
	}

	authority, pathAndVersion, ok := strings.Cut(rest, "/")
	if !ok || authority == "" || pathAndVersion == "" {
		return PackageURI{}, esperr.NewPackageLoadError(esperr.MsgInvalidPackageURI, raw)
	}

	var algorithm, checksum string
	if body, tail, ok := strings.Cut(pathAndVersion, "::"); ok {
		pathAndVersion = body
		algorithm, checksum, ok = strings.Cut(tail, ":")
		if !ok || algorithm != AlgorithmSHA256 || checksum == "" {
			return PackageURI{}, esperr.NewPackageLoadError(esperr.MsgInvalidPackageURI, raw)
		}
	}

	at := strings.LastIndex(pathAndVersion, "@")
	if at <= 0 || at == len(pathAndVersion)-1 {
		return PackageURI{}, esperr.NewPackageLoadError(esperr.MsgInvalidPackageURI, raw)
	}

	return PackageURI{
		Scheme:             scheme,
		Authority:          authority,
		PathWithoutVersion: pathAndVersion[:at],
		Version:            pathAndVersion[at+1:],
		Algorithm:          algorithm,
		Checksum:           checksum,
	}, nil
}

// ToExternal rewrites a "projectpackage" URI to the externally-resolvable
// "package" scheme; a URI that is already "package" is returned unchanged.
func (u PackageURI) ToExternal() PackageURI {
	u.Scheme = SchemePackage
	return u
}

// ToProject rewrites a "package" URI to the project-relative
// "projectpackage" scheme used inside a project's own dependency graph.
func (u PackageURI) ToProject() PackageURI {
	u.Scheme = SchemeProjectPackage
	return u
}

// MetadataRequestURI produces the https: URL serving this package's
// DependencyMetadata document: the scheme becomes "https" and any checksum
// tail is stripped.
func (u PackageURI) MetadataRequestURI() string {
	u.Algorithm = ""
	u.Checksum = ""
	plain := u
	plain.Scheme = "https"
	return plain.String()
}

// ZipRequestURI is an alias of MetadataRequestURI's shape for package zip
// downloads; DependencyMetadata.PackageZipURL is normally used instead, but
// this is the derivable fallback described alongside getMetadataRequestUri.
func (u PackageURI) ZipRequestURI() string {
	return u.MetadataRequestURI()
}

// PackageAssetURI addresses one file or directory inside a package.
type PackageAssetURI struct {
	Package  PackageURI
	Fragment string // always non-empty, always starts with "/"
}

// String renders the asset URI, appending "#fragment" to the package URI.
func (a PackageAssetURI) String() string {
	return a.Package.String() + "#" + a.Fragment
}

// ParsePackageAssetURI parses a package asset URI string; the fragment must
// be present and must start with "/".
func ParsePackageAssetURI(raw string) (PackageAssetURI, error) {
	base, fragment, ok := strings.Cut(raw, "#")
	if !ok || fragment == "" || !strings.HasPrefix(fragment, "/") {
		return PackageAssetURI{}, esperr.NewPackageLoadError(esperr.MsgInvalidPackageAssetURI, raw)
	}
	pkg, err := parsePackageURI(base)
	if err != nil {
		return PackageAssetURI{}, esperr.NewPackageLoadError(esperr.MsgInvalidPackageAssetURI, raw).WithCause(err)
	}
	return PackageAssetURI{Package: pkg, Fragment: fragment}, nil
}

// JoinFragment resolves a relative asset path against a's fragment using
// standard path-normalization semantics ("." and ".." segments collapse),
// returning a new PackageAssetURI within the same package.
func (a PackageAssetURI) JoinFragment(rel string) PackageAssetURI {
	a.Fragment = joinPath(a.Fragment, rel)
	return a
}

func joinPath(base, rel string) string {
	if strings.HasPrefix(rel, "/") {
		return cleanPath(rel)
	}
	dir := base
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		dir = base[:idx+1]
	}
	return cleanPath(dir + rel)
}

func cleanPath(p string) string {
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/")
}
