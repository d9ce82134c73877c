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
	"fmt"
	"io"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pkl-community/esp-core/pkg/esperr"
)

// Codec bundles an Encoder and Decoder over a single connection, so a
// transport only has to hold one value per direction it reads and writes.
type Codec struct {
	Enc *Encoder
	Dec *Decoder
}

// NewCodec wraps a reader and a writer for the same logical connection.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{Enc: NewEncoder(w), Dec: NewDecoder(r)}
}

// Encoder writes Message values as [type_code, body_map] frames.
type Encoder struct {
	enc *msgpack.Encoder
}

// NewEncoder wraps w for writing successive frames.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: msgpack.NewEncoder(w)}
}

// Decoder reads Message values framed as [type_code, body_map].
type Decoder struct {
	dec *msgpack.Decoder
}

// NewDecoder wraps r for reading successive frames.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: msgpack.NewDecoder(r)}
}

// kv is one body field: a canonical-order key plus an encode closure that is
// only invoked when the field is present, so optional/null fields are
// omitted from the map entirely rather than encoded as nil.
type kv struct {
	key   string
	write func(*msgpack.Encoder) error
}

func present(fields []kv) []kv {
	return fields
}

// EncodeMessage writes m to w as a single frame.
func EncodeMessage(w io.Writer, m Message) error {
	return NewEncoder(w).Encode(m)
}

// DecodeMessage reads a single frame from r.
func DecodeMessage(r io.Reader) (Message, error) {
	return NewDecoder(r).Decode()
}

// Encode writes one frame for m.
func (e *Encoder) Encode(m Message) error {
	fields, err := bodyFields(m)
	if err != nil {
		return err
	}
	if err := e.enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := e.enc.EncodeInt64(int64(m.MessageType())); err != nil {
		return err
	}
	if err := e.enc.EncodeMapLen(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := e.enc.EncodeString(f.key); err != nil {
			return err
		}
		if err := f.write(e.enc); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads one frame, validating the outer shape and type code before
// dispatching to the variant-specific body reader.
func (d *Decoder) Decode() (Message, error) {
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n != 2 {
		for i := 0; i < n; i++ {
			_, _ = d.dec.DecodeInterface()
		}
		return nil, esperr.NewDecodeError(esperr.MsgMalformedHeaderLength, n)
	}

	code, err := d.dec.DecodeInt64()
	if err != nil {
		return nil, err
	}
	t := Type(code)

	reader, ok := bodyReaders[t]
	if !ok {
		_, _ = d.dec.DecodeInterface()
		return nil, esperr.NewDecodeError(esperr.MsgMalformedHeaderUnrecognized, fmt.Sprintf("%#x", code))
	}
	return reader(d.dec)
}

// readMapFields decodes a body map, handing each key found in want to its
// handler and skipping the value of every other key. A handler failure that
// is not already a DecodeError is wrapped as unexpectedFieldType for that key.
func readMapFields(dec *msgpack.Decoder, want map[string]func(*msgpack.Decoder) error) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		handle, ok := want[key]
		if !ok {
			if _, err := dec.DecodeInterface(); err != nil {
				return err
			}
			continue
		}
		if err := handle(dec); err != nil {
			if _, ok := esperr.AsDecodeError(err); ok {
				return err
			}
			return esperr.NewDecodeError(esperr.MsgUnexpectedFieldType, key).WithCause(err)
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encodeStringMap(enc *msgpack.Encoder, m map[string]string) error {
	if err := enc.EncodeMapLen(len(m)); err != nil {
		return err
	}
	for _, k := range sortedKeys(m) {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := enc.EncodeString(m[k]); err != nil {
			return err
		}
	}
	return nil
}

func decodeStringMap(dec *msgpack.Decoder) (map[string]string, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := 0; i < n; i++ {
		k, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		v, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func encodeStringSlice(enc *msgpack.Encoder, s []string) error {
	if err := enc.EncodeArrayLen(len(s)); err != nil {
		return err
	}
	for _, v := range s {
		if err := enc.EncodeString(v); err != nil {
			return err
		}
	}
	return nil
}

func decodeStringSlice(dec *msgpack.Decoder) ([]string, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		v, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func encodeModuleReaderSpecs(enc *msgpack.Encoder, specs []ModuleReaderSpec) error {
	if err := enc.EncodeArrayLen(len(specs)); err != nil {
		return err
	}
	for _, s := range specs {
		if err := enc.EncodeMapLen(4); err != nil {
			return err
		}
		pairs := []struct {
			k string
			v interface{}
		}{
			{"scheme", s.Scheme},
			{"hasHierarchicalUris", s.HasHierarchicalUris},
			{"isLocal", s.IsLocal},
			{"isGlobbable", s.IsGlobbable},
		}
		for _, p := range pairs {
			if err := enc.EncodeString(p.k); err != nil {
				return err
			}
			if err := enc.Encode(p.v); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeModuleReaderSpecs(dec *msgpack.Decoder) ([]ModuleReaderSpec, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	out := make([]ModuleReaderSpec, n)
	for i := 0; i < n; i++ {
		var s ModuleReaderSpec
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"scheme":              func(d *msgpack.Decoder) (e error) { s.Scheme, e = d.DecodeString(); return },
			"hasHierarchicalUris": func(d *msgpack.Decoder) (e error) { s.HasHierarchicalUris, e = d.DecodeBool(); return },
			"isLocal":             func(d *msgpack.Decoder) (e error) { s.IsLocal, e = d.DecodeBool(); return },
			"isGlobbable":         func(d *msgpack.Decoder) (e error) { s.IsGlobbable, e = d.DecodeBool(); return },
		})
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func encodeResourceReaderSpecs(enc *msgpack.Encoder, specs []ResourceReaderSpec) error {
	if err := enc.EncodeArrayLen(len(specs)); err != nil {
		return err
	}
	for _, s := range specs {
		if err := enc.EncodeMapLen(3); err != nil {
			return err
		}
		pairs := []struct {
			k string
			v interface{}
		}{
			{"scheme", s.Scheme},
			{"hasHierarchicalUris", s.HasHierarchicalUris},
			{"isGlobbable", s.IsGlobbable},
		}
		for _, p := range pairs {
			if err := enc.EncodeString(p.k); err != nil {
				return err
			}
			if err := enc.Encode(p.v); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeResourceReaderSpecs(dec *msgpack.Decoder) ([]ResourceReaderSpec, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	out := make([]ResourceReaderSpec, n)
	for i := 0; i < n; i++ {
		var s ResourceReaderSpec
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"scheme":              func(d *msgpack.Decoder) (e error) { s.Scheme, e = d.DecodeString(); return },
			"hasHierarchicalUris": func(d *msgpack.Decoder) (e error) { s.HasHierarchicalUris, e = d.DecodeBool(); return },
			"isGlobbable":         func(d *msgpack.Decoder) (e error) { s.IsGlobbable, e = d.DecodeBool(); return },
		})
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func encodePathElements(enc *msgpack.Encoder, elems []PathElement) error {
	if err := enc.EncodeArrayLen(len(elems)); err != nil {
		return err
	}
	for _, e := range elems {
		if err := enc.EncodeMapLen(2); err != nil {
			return err
		}
		if err := enc.EncodeString("name"); err != nil {
			return err
		}
		if err := enc.EncodeString(e.Name); err != nil {
			return err
		}
		if err := enc.EncodeString("isDirectory"); err != nil {
			return err
		}
		if err := enc.EncodeBool(e.IsDirectory); err != nil {
			return err
		}
	}
	return nil
}

func decodePathElements(dec *msgpack.Decoder) ([]PathElement, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	out := make([]PathElement, n)
	for i := 0; i < n; i++ {
		var p PathElement
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"name":        func(d *msgpack.Decoder) (e error) { p.Name, e = d.DecodeString(); return },
			"isDirectory": func(d *msgpack.Decoder) (e error) { p.IsDirectory, e = d.DecodeBool(); return },
		})
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func encodeDependency(enc *msgpack.Encoder, dep *Dependency) error {
	fields := []kv{
		{"type", func(e *msgpack.Encoder) error { return e.EncodeString(dep.Type) }},
	}
	switch dep.Type {
	case "local":
		fields = append(fields,
			kv{"projectFileUri", func(e *msgpack.Encoder) error { return e.EncodeString(dep.ProjectFileURI) }},
			kv{"dependencies", func(e *msgpack.Encoder) error { return encodeDependencyMap(e, dep.Dependencies) }},
		)
	default: // "remote"
		fields = append(fields,
			kv{"packageUri", func(e *msgpack.Encoder) error { return e.EncodeString(dep.PackageURI) }},
		)
		if dep.Checksums != nil {
			fields = append(fields, kv{"checksums", func(e *msgpack.Encoder) error { return encodeChecksums(e, dep.Checksums) }})
		}
	}
	if err := enc.EncodeMapLen(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := enc.EncodeString(f.key); err != nil {
			return err
		}
		if err := f.write(enc); err != nil {
			return err
		}
	}
	return nil
}

func decodeDependency(dec *msgpack.Decoder) (*Dependency, error) {
	dep := &Dependency{}
	err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
		"type":           func(d *msgpack.Decoder) (e error) { dep.Type, e = d.DecodeString(); return },
		"packageUri":     func(d *msgpack.Decoder) (e error) { dep.PackageURI, e = d.DecodeString(); return },
		"projectFileUri": func(d *msgpack.Decoder) (e error) { dep.ProjectFileURI, e = d.DecodeString(); return },
		"dependencies": func(d *msgpack.Decoder) (e error) {
			dep.Dependencies, e = decodeDependencyMap(d)
			return
		},
		"checksums": func(d *msgpack.Decoder) (e error) {
			dep.Checksums, e = decodeChecksums(d)
			return
		},
	})
	if err != nil {
		return nil, err
	}
	return dep, nil
}

func encodeDependencyMap(enc *msgpack.Encoder, deps map[string]*Dependency) error {
	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := enc.EncodeMapLen(len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := encodeDependency(enc, deps[k]); err != nil {
			return err
		}
	}
	return nil
}

func decodeDependencyMap(dec *msgpack.Decoder) (map[string]*Dependency, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Dependency, n)
	for i := 0; i < n; i++ {
		k, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		dep, err := decodeDependency(dec)
		if err != nil {
			return nil, err
		}
		out[k] = dep
	}
	return out, nil
}

func encodeChecksums(enc *msgpack.Encoder, c *Checksums) error {
	if err := enc.EncodeMapLen(1); err != nil {
		return err
	}
	if err := enc.EncodeString("sha256"); err != nil {
		return err
	}
	return enc.EncodeString(c.SHA256)
}

func decodeChecksums(dec *msgpack.Decoder) (*Checksums, error) {
	c := &Checksums{}
	err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
		"sha256": func(d *msgpack.Decoder) (e error) { c.SHA256, e = d.DecodeString(); return },
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func encodeProject(enc *msgpack.Encoder, p *Project) error {
	fields := []kv{
		{"projectFileUri", func(e *msgpack.Encoder) error { return e.EncodeString(p.ProjectFileURI) }},
		{"dependencies", func(e *msgpack.Encoder) error { return encodeDependencyMap(e, p.Dependencies) }},
	}
	if p.PackageURI != nil {
		fields = append([]kv{{"packageUri", func(e *msgpack.Encoder) error { return e.EncodeString(*p.PackageURI) }}}, fields...)
	}
	if err := enc.EncodeMapLen(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := enc.EncodeString(f.key); err != nil {
			return err
		}
		if err := f.write(enc); err != nil {
			return err
		}
	}
	return nil
}

func decodeProject(dec *msgpack.Decoder) (*Project, error) {
	p := &Project{}
	err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
		"projectFileUri": func(d *msgpack.Decoder) (e error) { p.ProjectFileURI, e = d.DecodeString(); return },
		"packageUri": func(d *msgpack.Decoder) error {
			v, e := d.DecodeString()
			p.PackageURI = &v
			return e
		},
		"dependencies": func(d *msgpack.Decoder) (e error) {
			p.Dependencies, e = decodeDependencyMap(d)
			return
		},
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func encodeHTTPOptions(enc *msgpack.Encoder, h *HTTPOptions) error {
	fields := []kv{}
	if h.CACertificates != nil {
		fields = append(fields, kv{"caCertificates", func(e *msgpack.Encoder) error { return e.EncodeBytes(h.CACertificates) }})
	}
	if h.Proxy != nil {
		fields = append(fields, kv{"proxy", func(e *msgpack.Encoder) error { return encodeProxy(e, h.Proxy) }})
	}
	if err := enc.EncodeMapLen(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := enc.EncodeString(f.key); err != nil {
			return err
		}
		if err := f.write(enc); err != nil {
			return err
		}
	}
	return nil
}

func decodeHTTPOptions(dec *msgpack.Decoder) (*HTTPOptions, error) {
	h := &HTTPOptions{}
	err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
		"caCertificates": func(d *msgpack.Decoder) (e error) { h.CACertificates, e = d.DecodeBytes(); return },
		"proxy": func(d *msgpack.Decoder) (e error) {
			h.Proxy, e = decodeProxy(d)
			return
		},
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func encodeProxy(enc *msgpack.Encoder, p *Proxy) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("address"); err != nil {
		return err
	}
	if err := enc.EncodeString(p.Address); err != nil {
		return err
	}
	if err := enc.EncodeString("noProxy"); err != nil {
		return err
	}
	return encodeStringSlice(enc, p.NoProxy)
}

func decodeProxy(dec *msgpack.Decoder) (*Proxy, error) {
	p := &Proxy{}
	err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
		"address": func(d *msgpack.Decoder) (e error) { p.Address, e = d.DecodeString(); return },
		"noProxy": func(d *msgpack.Decoder) (e error) { p.NoProxy, e = decodeStringSlice(d); return },
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func optInt64(enc *msgpack.Encoder, v int64) error { return enc.EncodeInt64(v) }
func optStr(enc *msgpack.Encoder, v string) error  { return enc.EncodeString(v) }

// bodyFields returns the canonical-order, present-only field list for m's
// body map. The order matches spec.md §6's per-variant field table.
func bodyFields(m Message) ([]kv, error) {
	switch v := m.(type) {
	case *CreateEvaluatorRequest:
		fields := []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
		}
		if v.AllowedModules != nil {
			fields = append(fields, kv{"allowedModules", func(e *msgpack.Encoder) error { return encodeStringSlice(e, v.AllowedModules) }})
		}
		if v.AllowedResources != nil {
			fields = append(fields, kv{"allowedResources", func(e *msgpack.Encoder) error { return encodeStringSlice(e, v.AllowedResources) }})
		}
		if v.ClientModuleReaders != nil {
			fields = append(fields, kv{"clientModuleReaders", func(e *msgpack.Encoder) error { return encodeModuleReaderSpecs(e, v.ClientModuleReaders) }})
		}
		if v.ClientResourceReaders != nil {
			fields = append(fields, kv{"clientResourceReaders", func(e *msgpack.Encoder) error { return encodeResourceReaderSpecs(e, v.ClientResourceReaders) }})
		}
		if v.ModulePaths != nil {
			fields = append(fields, kv{"modulePaths", func(e *msgpack.Encoder) error { return encodeStringSlice(e, v.ModulePaths) }})
		}
		if v.Env != nil {
			fields = append(fields, kv{"env", func(e *msgpack.Encoder) error { return encodeStringMap(e, v.Env) }})
		}
		if v.Properties != nil {
			fields = append(fields, kv{"properties", func(e *msgpack.Encoder) error { return encodeStringMap(e, v.Properties) }})
		}
		if v.TimeoutSeconds != nil {
			ts := *v.TimeoutSeconds
			fields = append(fields, kv{"timeoutSeconds", func(e *msgpack.Encoder) error { return optInt64(e, ts) }})
		}
		if v.RootDir != nil {
			s := *v.RootDir
			fields = append(fields, kv{"rootDir", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		if v.CacheDir != nil {
			s := *v.CacheDir
			fields = append(fields, kv{"cacheDir", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		if v.OutputFormat != nil {
			s := *v.OutputFormat
			fields = append(fields, kv{"outputFormat", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		if v.Project != nil {
			fields = append(fields, kv{"project", func(e *msgpack.Encoder) error { return encodeProject(e, v.Project) }})
		}
		if v.HTTP != nil {
			fields = append(fields, kv{"http", func(e *msgpack.Encoder) error { return encodeHTTPOptions(e, v.HTTP) }})
		}
		return present(fields), nil

	case *CreateEvaluatorResponse:
		fields := []kv{{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }}}
		if v.EvaluatorID != nil {
			id := *v.EvaluatorID
			fields = append(fields, kv{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, id) }})
		}
		if v.Error != nil {
			s := *v.Error
			fields = append(fields, kv{"error", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		return present(fields), nil

	case *CloseEvaluator:
		return []kv{{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }}}, nil

	case *EvaluateRequest:
		fields := []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
			{"moduleUri", func(e *msgpack.Encoder) error { return optStr(e, v.ModuleURI) }},
		}
		if v.ModuleText != nil {
			s := *v.ModuleText
			fields = append(fields, kv{"moduleText", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		if v.Expr != nil {
			s := *v.Expr
			fields = append(fields, kv{"expr", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		return present(fields), nil

	case *EvaluateResponse:
		fields := []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
		}
		if v.Result != nil {
			fields = append(fields, kv{"result", func(e *msgpack.Encoder) error { return e.EncodeBytes(v.Result) }})
		}
		if v.Error != nil {
			s := *v.Error
			fields = append(fields, kv{"error", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		return present(fields), nil

	case *LogMessage:
		return []kv{
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
			{"level", func(e *msgpack.Encoder) error { return optInt64(e, v.Level) }},
			{"message", func(e *msgpack.Encoder) error { return optStr(e, v.Message) }},
			{"frameUri", func(e *msgpack.Encoder) error { return optStr(e, v.FrameURI) }},
		}, nil

	case *ReadResourceRequest:
		return []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
			{"uri", func(e *msgpack.Encoder) error { return optStr(e, v.URI) }},
		}, nil

	case *ReadResourceResponse:
		fields := []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
		}
		if v.Contents != nil {
			fields = append(fields, kv{"contents", func(e *msgpack.Encoder) error { return e.EncodeBytes(v.Contents) }})
		}
		if v.Error != nil {
			s := *v.Error
			fields = append(fields, kv{"error", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		return present(fields), nil

	case *ReadModuleRequest:
		return []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
			{"uri", func(e *msgpack.Encoder) error { return optStr(e, v.URI) }},
		}, nil

	case *ReadModuleResponse:
		fields := []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
		}
		if v.Contents != nil {
			s := *v.Contents
			fields = append(fields, kv{"contents", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		if v.Error != nil {
			s := *v.Error
			fields = append(fields, kv{"error", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		return present(fields), nil

	case *ListResourcesRequest:
		return []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
			{"uri", func(e *msgpack.Encoder) error { return optStr(e, v.URI) }},
		}, nil

	case *ListResourcesResponse:
		fields := []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
		}
		if v.PathElements != nil {
			fields = append(fields, kv{"pathElements", func(e *msgpack.Encoder) error { return encodePathElements(e, v.PathElements) }})
		}
		if v.Error != nil {
			s := *v.Error
			fields = append(fields, kv{"error", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		return present(fields), nil

	case *ListModulesRequest:
		return []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
			{"uri", func(e *msgpack.Encoder) error { return optStr(e, v.URI) }},
		}, nil

	case *ListModulesResponse:
		fields := []kv{
			{"requestId", func(e *msgpack.Encoder) error { return optInt64(e, v.RequestID) }},
			{"evaluatorId", func(e *msgpack.Encoder) error { return optInt64(e, v.EvaluatorID) }},
		}
		if v.PathElements != nil {
			fields = append(fields, kv{"pathElements", func(e *msgpack.Encoder) error { return encodePathElements(e, v.PathElements) }})
		}
		if v.Error != nil {
			s := *v.Error
			fields = append(fields, kv{"error", func(e *msgpack.Encoder) error { return optStr(e, s) }})
		}
		return present(fields), nil

	default:
		return nil, esperr.NewProtocolError(esperr.MsgUnhandledMessageCode, fmt.Sprintf("%T", m))
	}
}

// bodyReaders maps a wire type to the function that decodes its body map
// into the corresponding concrete Message.
var bodyReaders = map[Type]func(*msgpack.Decoder) (Message, error){
	TypeCreateEvaluatorRequest: func(dec *msgpack.Decoder) (Message, error) {
		m := &CreateEvaluatorRequest{}
		var haveRequestID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId": func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"allowedModules": func(d *msgpack.Decoder) (e error) {
				m.AllowedModules, e = decodeStringSlice(d)
				return
			},
			"allowedResources": func(d *msgpack.Decoder) (e error) {
				m.AllowedResources, e = decodeStringSlice(d)
				return
			},
			"clientModuleReaders": func(d *msgpack.Decoder) (e error) {
				m.ClientModuleReaders, e = decodeModuleReaderSpecs(d)
				return
			},
			"clientResourceReaders": func(d *msgpack.Decoder) (e error) {
				m.ClientResourceReaders, e = decodeResourceReaderSpecs(d)
				return
			},
			"modulePaths": func(d *msgpack.Decoder) (e error) { m.ModulePaths, e = decodeStringSlice(d); return },
			"env":         func(d *msgpack.Decoder) (e error) { m.Env, e = decodeStringMap(d); return },
			"properties":  func(d *msgpack.Decoder) (e error) { m.Properties, e = decodeStringMap(d); return },
			"timeoutSeconds": func(d *msgpack.Decoder) error {
				v, e := d.DecodeInt64()
				m.TimeoutSeconds = &v
				return e
			},
			"rootDir": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.RootDir = &v
				return e
			},
			"cacheDir": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.CacheDir = &v
				return e
			},
			"outputFormat": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.OutputFormat = &v
				return e
			},
			"project": func(d *msgpack.Decoder) (e error) { m.Project, e = decodeProject(d); return },
			"http":    func(d *msgpack.Decoder) (e error) { m.HTTP, e = decodeHTTPOptions(d); return },
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId")
		}
		return m, nil
	},

	TypeCreateEvaluatorResponse: func(dec *msgpack.Decoder) (Message, error) {
		m := &CreateEvaluatorResponse{}
		var haveRequestID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId": func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) error {
				v, e := d.DecodeInt64()
				m.EvaluatorID = &v
				return e
			},
			"error": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.Error = &v
				return e
			},
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId")
		}
		return m, nil
	},

	TypeCloseEvaluator: func(dec *msgpack.Decoder) (Message, error) {
		m := &CloseEvaluator{}
		var have bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); have = true; return },
		})
		if err != nil {
			return nil, err
		}
		if !have {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "evaluatorId")
		}
		return m, nil
	},

	TypeEvaluateRequest: func(dec *msgpack.Decoder) (Message, error) {
		m := &EvaluateRequest{}
		var haveRequestID, haveEvaluatorID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId":   func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); haveEvaluatorID = true; return },
			"moduleUri":   func(d *msgpack.Decoder) (e error) { m.ModuleURI, e = d.DecodeString(); return },
			"moduleText": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.ModuleText = &v
				return e
			},
			"expr": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.Expr = &v
				return e
			},
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId")
		}
		if !haveEvaluatorID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "evaluatorId")
		}
		return m, nil
	},

	TypeEvaluateResponse: func(dec *msgpack.Decoder) (Message, error) {
		m := &EvaluateResponse{}
		var haveRequestID, haveEvaluatorID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId":   func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); haveEvaluatorID = true; return },
			"result":      func(d *msgpack.Decoder) (e error) { m.Result, e = d.DecodeBytes(); return },
			"error": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.Error = &v
				return e
			},
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId")
		}
		if !haveEvaluatorID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "evaluatorId")
		}
		return m, nil
	},

	TypeLogMessage: func(dec *msgpack.Decoder) (Message, error) {
		m := &LogMessage{}
		var have bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); have = true; return },
			"level":       func(d *msgpack.Decoder) (e error) { m.Level, e = d.DecodeInt64(); return },
			"message":     func(d *msgpack.Decoder) (e error) { m.Message, e = d.DecodeString(); return },
			"frameUri":    func(d *msgpack.Decoder) (e error) { m.FrameURI, e = d.DecodeString(); return },
		})
		if err != nil {
			return nil, err
		}
		if !have {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "evaluatorId")
		}
		return m, nil
	},

	TypeReadResourceRequest: func(dec *msgpack.Decoder) (Message, error) {
		m := &ReadResourceRequest{}
		var haveRequestID, haveEvaluatorID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId":   func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); haveEvaluatorID = true; return },
			"uri":         func(d *msgpack.Decoder) (e error) { m.URI, e = d.DecodeString(); return },
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID || !haveEvaluatorID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId/evaluatorId")
		}
		return m, nil
	},

	TypeReadResourceResponse: func(dec *msgpack.Decoder) (Message, error) {
		m := &ReadResourceResponse{}
		var haveRequestID, haveEvaluatorID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId":   func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); haveEvaluatorID = true; return },
			"contents":    func(d *msgpack.Decoder) (e error) { m.Contents, e = d.DecodeBytes(); return },
			"error": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.Error = &v
				return e
			},
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID || !haveEvaluatorID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId/evaluatorId")
		}
		return m, nil
	},

	TypeReadModuleRequest: func(dec *msgpack.Decoder) (Message, error) {
		m := &ReadModuleRequest{}
		var haveRequestID, haveEvaluatorID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId":   func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); haveEvaluatorID = true; return },
			"uri":         func(d *msgpack.Decoder) (e error) { m.URI, e = d.DecodeString(); return },
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID || !haveEvaluatorID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId/evaluatorId")
		}
		return m, nil
	},

	TypeReadModuleResponse: func(dec *msgpack.Decoder) (Message, error) {
		m := &ReadModuleResponse{}
		var haveRequestID, haveEvaluatorID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId":   func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); haveEvaluatorID = true; return },
			"contents": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.Contents = &v
				return e
			},
			"error": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.Error = &v
				return e
			},
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID || !haveEvaluatorID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId/evaluatorId")
		}
		return m, nil
	},

	TypeListResourcesRequest: func(dec *msgpack.Decoder) (Message, error) {
		m := &ListResourcesRequest{}
		var haveRequestID, haveEvaluatorID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId":   func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); haveEvaluatorID = true; return },
			"uri":         func(d *msgpack.Decoder) (e error) { m.URI, e = d.DecodeString(); return },
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID || !haveEvaluatorID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId/evaluatorId")
		}
		return m, nil
	},

	TypeListResourcesResponse: func(dec *msgpack.Decoder) (Message, error) {
		m := &ListResourcesResponse{}
		var haveRequestID, haveEvaluatorID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId":   func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); haveEvaluatorID = true; return },
			"pathElements": func(d *msgpack.Decoder) (e error) {
				m.PathElements, e = decodePathElements(d)
				return
			},
			"error": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.Error = &v
				return e
			},
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID || !haveEvaluatorID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId/evaluatorId")
		}
		return m, nil
	},

	TypeListModulesRequest: func(dec *msgpack.Decoder) (Message, error) {
		m := &ListModulesRequest{}
		var haveRequestID, haveEvaluatorID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId":   func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); haveEvaluatorID = true; return },
			"uri":         func(d *msgpack.Decoder) (e error) { m.URI, e = d.DecodeString(); return },
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID || !haveEvaluatorID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId/evaluatorId")
		}
		return m, nil
	},

	TypeListModulesResponse: func(dec *msgpack.Decoder) (Message, error) {
		m := &ListModulesResponse{}
		var haveRequestID, haveEvaluatorID bool
		err := readMapFields(dec, map[string]func(*msgpack.Decoder) error{
			"requestId":   func(d *msgpack.Decoder) (e error) { m.RequestID, e = d.DecodeInt64(); haveRequestID = true; return },
			"evaluatorId": func(d *msgpack.Decoder) (e error) { m.EvaluatorID, e = d.DecodeInt64(); haveEvaluatorID = true; return },
			"pathElements": func(d *msgpack.Decoder) (e error) {
				m.PathElements, e = decodePathElements(d)
				return
			},
			"error": func(d *msgpack.Decoder) error {
				v, e := d.DecodeString()
				m.Error = &v
				return e
			},
		})
		if err != nil {
			return nil, err
		}
		if !haveRequestID || !haveEvaluatorID {
			return nil, esperr.NewDecodeError(esperr.MsgMissingRequiredField, "requestId/evaluatorId")
		}
		return m, nil
	},
}
