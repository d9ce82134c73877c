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

// Package esperr defines the ESP error taxonomy: DecodeError, ProtocolError,
// and PackageLoadError. Every error carries a stable message name plus
// positional arguments instead of a free-form string, so a host can
// localize the text (see Localize) without the core knowing any language.
package esperr

import (
	"errors"
	"fmt"
	"strings"
)

// MessageName is a stable identifier for a user-visible error condition.
// It never changes across releases; only the localized text behind it does.
type MessageName string

const (
	MsgMalformedHeaderLength         MessageName = "malformedMessageHeaderLength"
	MsgMalformedHeaderUnrecognized   MessageName = "malformedMessageHeaderUnrecognizedCode"
	MsgMissingRequiredField          MessageName = "missingRequiredField"
	MsgUnexpectedFieldType           MessageName = "unexpectedFieldType"
	MsgUnknownRequestID              MessageName = "unknownRequestId"
	MsgUnhandledMessageCode          MessageName = "unhandledMessageCode"
	MsgUnknownEvaluator              MessageName = "unknownEvaluator"
	MsgCyclicProjectDependency       MessageName = "cyclicProjectDependency"
	MsgInvalidDependencyMetadata     MessageName = "invalidDependencyMetadata"
	MsgInvalidPackageZipURL          MessageName = "invalidPackageZipUrl"
	MsgInvalidPackageZipChecksum     MessageName = "invalidPackageZipChecksum"
	MsgInvalidPackageMetadataChecksum MessageName = "invalidPackageMetadataChecksum"
	MsgBadHTTPStatusCode             MessageName = "badHttpStatusCode"
	MsgIOErrorMakingHTTPGet          MessageName = "ioErrorMakingHttpGet"
	MsgOperationNotSupported         MessageName = "operationNotSupported"
	MsgFileIsADirectory              MessageName = "fileIsADirectory"
	MsgInvalidPackageURI             MessageName = "invalidPackageUri"
	MsgInvalidPackageAssetURI        MessageName = "invalidPackageAssetUri"
)

// DecodeError reports a malformed frame: wrong outer shape, an unrecognized
// type code, a missing required field, or a field with the wrong dynamic
// type. It is never fatal to the transport — only the current frame is lost.
type DecodeError struct {
	Name  MessageName
	Args  []interface{}
	Cause error
}

func NewDecodeError(name MessageName, args ...interface{}) *DecodeError {
	return &DecodeError{Name: name, Args: args}
}

func (e *DecodeError) WithCause(cause error) *DecodeError {
	e.Cause = cause
	return e
}

func (e *DecodeError) Error() string {
	return formatMessage("decode error", e.Name, e.Args, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// ProtocolError reports a syntactically well-formed message that is
// semantically invalid: an unknown request id, traffic for a closed
// evaluator, an unhandled message code, or a cyclic project dependency
// graph. Non-fatal to the transport.
type ProtocolError struct {
	Name MessageName
	Args []interface{}
}

func NewProtocolError(name MessageName, args ...interface{}) *ProtocolError {
	return &ProtocolError{Name: name, Args: args}
}

func (e *ProtocolError) Error() string {
	return formatMessage("protocol error", e.Name, e.Args, nil)
}

// PackageLoadError reports a failure from the package resolver: integrity,
// HTTP, or metadata faults. Always raised to the caller of the resolver,
// never fatal to the transport.
type PackageLoadError struct {
	Name  MessageName
	Args  []interface{}
	Cause error
}

func NewPackageLoadError(name MessageName, args ...interface{}) *PackageLoadError {
	return &PackageLoadError{Name: name, Args: args}
}

func (e *PackageLoadError) WithCause(cause error) *PackageLoadError {
	e.Cause = cause
	return e
}

func (e *PackageLoadError) Error() string {
	return formatMessage("package load error", e.Name, e.Args, e.Cause)
}

func (e *PackageLoadError) Unwrap() error { return e.Cause }

func formatMessage(kind string, name MessageName, args []interface{}, cause error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]", kind, name)
	if len(args) > 0 {
		strs := make([]string, len(args))
		for i, a := range args {
			strs[i] = fmt.Sprint(a)
		}
		fmt.Fprintf(&b, "(%s)", strings.Join(strs, ", "))
	}
	if cause != nil {
		fmt.Fprintf(&b, ": %v", cause)
	}
	return b.String()
}

// AsDecodeError reports whether err is (or wraps) a *DecodeError.
func AsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// AsProtocolError reports whether err is (or wraps) a *ProtocolError.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// AsPackageLoadError reports whether err is (or wraps) a *PackageLoadError.
func AsPackageLoadError(err error) (*PackageLoadError, bool) {
	var ple *PackageLoadError
	if errors.As(err, &ple) {
		return ple, true
	}
	return nil, false
}
