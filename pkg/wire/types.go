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

// Package wire implements the ESP frame format: a closed, flat tagged union
// of fourteen message variants encoded as MessagePack two-element sequences
// `[type_code, body_map]`. The wire cares only about the numeric Type and
// the directionality convention each variant carries; there is no class
// lattice here, only concrete structs implementing Message.
package wire

// Type is the stable wire value identifying a message variant.
type Type uint8

const (
	TypeCreateEvaluatorRequest  Type = 0x20
	TypeCreateEvaluatorResponse Type = 0x21
	TypeCloseEvaluator          Type = 0x22
	TypeEvaluateRequest         Type = 0x23
	TypeEvaluateResponse        Type = 0x24
	TypeLogMessage              Type = 0x25
	TypeReadResourceRequest     Type = 0x26
	TypeReadResourceResponse    Type = 0x27
	TypeReadModuleRequest       Type = 0x28
	TypeReadModuleResponse      Type = 0x29
	TypeListResourcesRequest    Type = 0x2a
	TypeListResourcesResponse   Type = 0x2b
	TypeListModulesRequest      Type = 0x2c
	TypeListModulesResponse     Type = 0x2d
)

func (t Type) String() string {
	switch t {
	case TypeCreateEvaluatorRequest:
		return "CreateEvaluatorRequest"
	case TypeCreateEvaluatorResponse:
		return "CreateEvaluatorResponse"
	case TypeCloseEvaluator:
		return "CloseEvaluator"
	case TypeEvaluateRequest:
		return "EvaluateRequest"
	case TypeEvaluateResponse:
		return "EvaluateResponse"
	case TypeLogMessage:
		return "LogMessage"
	case TypeReadResourceRequest:
		return "ReadResourceRequest"
	case TypeReadResourceResponse:
		return "ReadResourceResponse"
	case TypeReadModuleRequest:
		return "ReadModuleRequest"
	case TypeReadModuleResponse:
		return "ReadModuleResponse"
	case TypeListResourcesRequest:
		return "ListResourcesRequest"
	case TypeListResourcesResponse:
		return "ListResourcesResponse"
	case TypeListModulesRequest:
		return "ListModulesRequest"
	case TypeListModulesResponse:
		return "ListModulesResponse"
	default:
		return "Unknown"
	}
}

// IsOneWay reports whether t is a fire-and-forget message that never
// receives a reply (CloseEvaluator, LogMessage).
func (t Type) IsOneWay() bool {
	return t == TypeCloseEvaluator || t == TypeLogMessage
}

// IsRequest reports whether t carries a request_id and expects a response.
func (t Type) IsRequest() bool {
	switch t {
	case TypeCreateEvaluatorRequest, TypeEvaluateRequest,
		TypeReadResourceRequest, TypeReadModuleRequest,
		TypeListResourcesRequest, TypeListModulesRequest:
		return true
	default:
		return false
	}
}

// IsResponse reports whether t is the reply half of a request/response pair.
func (t Type) IsResponse() bool {
	switch t {
	case TypeCreateEvaluatorResponse, TypeEvaluateResponse,
		TypeReadResourceResponse, TypeReadModuleResponse,
		TypeListResourcesResponse, TypeListModulesResponse:
		return true
	default:
		return false
	}
}

// KnownTypes enumerates every recognized wire type code. The decoder itself
// rejects unrecognized codes by looking them up in bodyReaders.
var KnownTypes = []Type{
	TypeCreateEvaluatorRequest, TypeCreateEvaluatorResponse,
	TypeCloseEvaluator, TypeEvaluateRequest, TypeEvaluateResponse,
	TypeLogMessage, TypeReadResourceRequest, TypeReadResourceResponse,
	TypeReadModuleRequest, TypeReadModuleResponse,
	TypeListResourcesRequest, TypeListResourcesResponse,
	TypeListModulesRequest, TypeListModulesResponse,
}

// Message is implemented by every one of the fourteen wire variants.
type Message interface {
	MessageType() Type
}

// Requester is implemented by every request/response variant; every variant
// except CreateEvaluatorRequest/Response also implements Evaluatored.
type Requester interface {
	GetRequestID() int64
}

// Evaluatored is implemented by every variant that targets a specific
// evaluator (everything except CreateEvaluatorRequest/Response).
type Evaluatored interface {
	GetEvaluatorID() int64
}

// --- sub-structures (spec.md §6) ---

// ModuleReaderSpec describes a client-supplied module reader registered on
// CreateEvaluatorRequest.
type ModuleReaderSpec struct {
	Scheme              string
	HasHierarchicalUris bool
	IsLocal             bool
	IsGlobbable         bool
}

// ResourceReaderSpec describes a client-supplied resource reader registered
// on CreateEvaluatorRequest.
type ResourceReaderSpec struct {
	Scheme              string
	HasHierarchicalUris bool
	IsGlobbable         bool
}

// PathElement is one entry returned by a ListResources/ListModules response.
type PathElement struct {
	Name        string
	IsDirectory bool
}

// Proxy configures outbound HTTP proxying for package resolution.
type Proxy struct {
	Address string
	NoProxy []string
}

// HTTPOptions configures TLS and proxying for package resolver HTTP calls.
type HTTPOptions struct {
	CACertificates []byte
	Proxy          *Proxy
}

// Checksums carries the integrity hash(es) accompanying a package or asset.
type Checksums struct {
	SHA256 string
}

// Dependency is a sum of Local(project) and Remote(packageUri, checksums?).
// Type is "local" or "remote"; Local adds ProjectFileURI and nested
// Dependencies, Remote adds optional Checksums.
type Dependency struct {
	Type           string // "local" | "remote"
	PackageURI     string
	ProjectFileURI string
	Dependencies   map[string]*Dependency
	Checksums      *Checksums
}

// Project is a Local dependency carrying its own project file and a map of
// named sub-dependencies, forming a (nominally acyclic) dependency tree.
type Project struct {
	ProjectFileURI string
	PackageURI     *string
	Dependencies   map[string]*Dependency
}

// --- message variants ---

type CreateEvaluatorRequest struct {
	RequestID            int64
	AllowedModules       []string
	AllowedResources     []string
	ClientModuleReaders  []ModuleReaderSpec
	ClientResourceReaders []ResourceReaderSpec
	ModulePaths          []string
	Env                  map[string]string
	Properties           map[string]string
	TimeoutSeconds       *int64
	RootDir              *string
	CacheDir             *string
	OutputFormat         *string
	Project              *Project
	HTTP                 *HTTPOptions
}

func (m *CreateEvaluatorRequest) MessageType() Type  { return TypeCreateEvaluatorRequest }
func (m *CreateEvaluatorRequest) GetRequestID() int64 { return m.RequestID }

type CreateEvaluatorResponse struct {
	RequestID   int64
	EvaluatorID *int64
	Error       *string
}

func (m *CreateEvaluatorResponse) MessageType() Type  { return TypeCreateEvaluatorResponse }
func (m *CreateEvaluatorResponse) GetRequestID() int64 { return m.RequestID }

type CloseEvaluator struct {
	EvaluatorID int64
}

func (m *CloseEvaluator) MessageType() Type     { return TypeCloseEvaluator }
func (m *CloseEvaluator) GetEvaluatorID() int64 { return m.EvaluatorID }

type EvaluateRequest struct {
	RequestID   int64
	EvaluatorID int64
	ModuleURI   string
	ModuleText  *string
	Expr        *string
}

func (m *EvaluateRequest) MessageType() Type     { return TypeEvaluateRequest }
func (m *EvaluateRequest) GetRequestID() int64    { return m.RequestID }
func (m *EvaluateRequest) GetEvaluatorID() int64 { return m.EvaluatorID }

type EvaluateResponse struct {
	RequestID   int64
	EvaluatorID int64
	Result      []byte
	Error       *string
}

func (m *EvaluateResponse) MessageType() Type     { return TypeEvaluateResponse }
func (m *EvaluateResponse) GetRequestID() int64    { return m.RequestID }
func (m *EvaluateResponse) GetEvaluatorID() int64 { return m.EvaluatorID }

// Log levels used by convention; the wire itself does not constrain Level.
const (
	LogLevelTrace = 0
	LogLevelWarn  = 1
)

type LogMessage struct {
	EvaluatorID int64
	Level       int64
	Message     string
	FrameURI    string
}

func (m *LogMessage) MessageType() Type     { return TypeLogMessage }
func (m *LogMessage) GetEvaluatorID() int64 { return m.EvaluatorID }

type ReadResourceRequest struct {
	RequestID   int64
	EvaluatorID int64
	URI         string
}

func (m *ReadResourceRequest) MessageType() Type     { return TypeReadResourceRequest }
func (m *ReadResourceRequest) GetRequestID() int64    { return m.RequestID }
func (m *ReadResourceRequest) GetEvaluatorID() int64 { return m.EvaluatorID }

type ReadResourceResponse struct {
	RequestID   int64
	EvaluatorID int64
	Contents    []byte
	Error       *string
}

func (m *ReadResourceResponse) MessageType() Type     { return TypeReadResourceResponse }
func (m *ReadResourceResponse) GetRequestID() int64    { return m.RequestID }
func (m *ReadResourceResponse) GetEvaluatorID() int64 { return m.EvaluatorID }

type ReadModuleRequest struct {
	RequestID   int64
	EvaluatorID int64
	URI         string
}

func (m *ReadModuleRequest) MessageType() Type     { return TypeReadModuleRequest }
func (m *ReadModuleRequest) GetRequestID() int64    { return m.RequestID }
func (m *ReadModuleRequest) GetEvaluatorID() int64 { return m.EvaluatorID }

type ReadModuleResponse struct {
	RequestID   int64
	EvaluatorID int64
	Contents    *string
	Error       *string
}

func (m *ReadModuleResponse) MessageType() Type     { return TypeReadModuleResponse }
func (m *ReadModuleResponse) GetRequestID() int64    { return m.RequestID }
func (m *ReadModuleResponse) GetEvaluatorID() int64 { return m.EvaluatorID }

type ListResourcesRequest struct {
	RequestID   int64
	EvaluatorID int64
	URI         string
}

func (m *ListResourcesRequest) MessageType() Type     { return TypeListResourcesRequest }
func (m *ListResourcesRequest) GetRequestID() int64    { return m.RequestID }
func (m *ListResourcesRequest) GetEvaluatorID() int64 { return m.EvaluatorID }

type ListResourcesResponse struct {
	RequestID    int64
	EvaluatorID  int64
	PathElements []PathElement
	Error        *string
}

func (m *ListResourcesResponse) MessageType() Type     { return TypeListResourcesResponse }
func (m *ListResourcesResponse) GetRequestID() int64    { return m.RequestID }
func (m *ListResourcesResponse) GetEvaluatorID() int64 { return m.EvaluatorID }

type ListModulesRequest struct {
	RequestID   int64
	EvaluatorID int64
	URI         string
}

func (m *ListModulesRequest) MessageType() Type     { return TypeListModulesRequest }
func (m *ListModulesRequest) GetRequestID() int64    { return m.RequestID }
func (m *ListModulesRequest) GetEvaluatorID() int64 { return m.EvaluatorID }

type ListModulesResponse struct {
	RequestID    int64
	EvaluatorID  int64
	PathElements []PathElement
	Error        *string
}

func (m *ListModulesResponse) MessageType() Type     { return TypeListModulesResponse }
func (m *ListModulesResponse) GetRequestID() int64    { return m.RequestID }
func (m *ListModulesResponse) GetEvaluatorID() int64 { return m.EvaluatorID }

// RequestID returns msg's request id and whether it carries one at all.
func RequestID(msg Message) (int64, bool) {
	r, ok := msg.(Requester)
	if !ok {
		return 0, false
	}
	return r.GetRequestID(), true
}

// EvaluatorID returns msg's evaluator id and whether it carries one at all.
func EvaluatorID(msg Message) (int64, bool) {
	e, ok := msg.(Evaluatored)
	if !ok {
		return 0, false
	}
	return e.GetEvaluatorID(), true
}
