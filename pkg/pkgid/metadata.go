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
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkl-community/esp-core/pkg/esperr"
)

// Checksums carries a package or asset's integrity hash.
type Checksums struct {
	SHA256 string `json:"sha256"`
}

// DependencyRef is one entry of DependencyMetadata.Dependencies: another
// package's URI plus an optional pinned checksum.
type DependencyRef struct {
	URI       string     `json:"uri"`
	Checksums *Checksums `json:"checksums,omitempty"`
}

// Annotation is an opaque structured value attached to a package's metadata.
// Its shape is not constrained by this document format; it is preserved
// byte-for-byte across a parse/write round trip.
type Annotation json.RawMessage

// MarshalJSON renders a as its underlying raw document.
func (a Annotation) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(a).MarshalJSON()
}

// UnmarshalJSON stores data verbatim.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	*a = append((*a)[0:0], data...)
	return nil
}

// DependencyMetadata is the document published alongside a package's zip,
// describing its identity, download location, checksum, and dependency
// graph.
type DependencyMetadata struct {
	Name                string
	PackageURI          string
	Version             string
	PackageZipURL       string
	PackageZipChecksums Checksums
	Dependencies        map[string]DependencyRef

	SourceCodeURLScheme *string
	SourceCode          *string
	Documentation       *string
	License             *string
	LicenseText         *string
	Authors             []string
	IssueTracker        *string
	Description         *string
	Annotations         []Annotation
}

// dependencyMetadataWire mirrors DependencyMetadata field-for-field so the
// standard encoding/json machinery can be reused while struct tag order
// drives the key order on the wire.
type dependencyMetadataWire struct {
	Name                string                   `json:"name"`
	PackageURI          string                   `json:"packageUri"`
	Version             string                   `json:"version"`
	PackageZipURL       string                   `json:"packageZipUrl"`
	PackageZipChecksums Checksums                `json:"packageZipChecksums"`
	Dependencies        map[string]DependencyRef `json:"dependencies"`
	SourceCodeURLScheme *string                  `json:"sourceCodeUrlScheme,omitempty"`
	SourceCode          *string                  `json:"sourceCode,omitempty"`
	Documentation       *string                  `json:"documentation,omitempty"`
	License             *string                  `json:"license,omitempty"`
	LicenseText         *string                  `json:"licenseText,omitempty"`
	Authors             []string                 `json:"authors,omitempty"`
	IssueTracker        *string                  `json:"issueTracker,omitempty"`
	Description         *string                  `json:"description,omitempty"`
	Annotations         []Annotation             `json:"annotations,omitempty"`
}

// MarshalJSON emits the document with keys in the canonical order mandated
// by the wire format, omitting optional fields that are nil or empty.
//
// encoding/json always serializes struct fields in declaration order, so
// dependencyMetadataWire's field order alone is sufficient; this method
// only exists to keep DependencyMetadata's own field order free to evolve
// without touching the wire representation.
func (m DependencyMetadata) MarshalJSON() ([]byte, error) {
	if m.Dependencies == nil {
		m.Dependencies = map[string]DependencyRef{}
	}
	w := dependencyMetadataWire{
		Name:                m.Name,
		PackageURI:          m.PackageURI,
		Version:             m.Version,
		PackageZipURL:       m.PackageZipURL,
		PackageZipChecksums: m.PackageZipChecksums,
		Dependencies:        m.Dependencies,
		SourceCodeURLScheme: m.SourceCodeURLScheme,
		SourceCode:          m.SourceCode,
		Documentation:       m.Documentation,
		License:             m.License,
		LicenseText:         m.LicenseText,
		Authors:             m.Authors,
		IssueTracker:        m.IssueTracker,
		Description:         m.Description,
	}
	if len(m.Annotations) > 0 {
		w.Annotations = m.Annotations
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads a document, tolerating any absent optional key
// (including "annotations", treated as an empty list) and validating that
// every required key was present.
func (m *DependencyMetadata) UnmarshalJSON(data []byte) error {
	var w dependencyMetadataWire
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return esperr.NewPackageLoadError(esperr.MsgInvalidDependencyMetadata, "malformed json").WithCause(err)
	}
	if w.Name == "" || w.PackageURI == "" || w.Version == "" || w.PackageZipURL == "" || w.PackageZipChecksums.SHA256 == "" {
		return esperr.NewPackageLoadError(esperr.MsgInvalidDependencyMetadata, "missing required field")
	}
	if w.Dependencies == nil {
		w.Dependencies = map[string]DependencyRef{}
	}
	*m = DependencyMetadata{
		Name:                w.Name,
		PackageURI:          w.PackageURI,
		Version:             w.Version,
		PackageZipURL:       w.PackageZipURL,
		PackageZipChecksums: w.PackageZipChecksums,
		Dependencies:        w.Dependencies,
		SourceCodeURLScheme: w.SourceCodeURLScheme,
		SourceCode:          w.SourceCode,
		Documentation:       w.Documentation,
		License:             w.License,
		LicenseText:         w.LicenseText,
		Authors:             w.Authors,
		IssueTracker:        w.IssueTracker,
		Description:         w.Description,
		Annotations:         w.Annotations,
	}
	return nil
}

// SortedDependencyNames returns m.Dependencies' keys in stable order, for
// deterministic transitive-fetch traversal and display.
func (m DependencyMetadata) SortedDependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
