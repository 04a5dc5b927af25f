// Copyright 2025 Signia Protocol
//
// Stable Failure Codes
// Every pipeline failure is a Fault carrying a stable code and structured,
// host-independent details. The pipeline never recovers internally; faults
// propagate to the top-level operation unchanged.

package fault

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code identifies a failure class. Codes are part of the public contract and
// must not change between runs for the same input, policy, and tool versions.
type Code string

const (
	InputTooLarge        Code = "InputTooLarge"
	InputArchiveTraversal Code = "InputArchiveTraversal"
	InputSymlinksDenied  Code = "InputSymlinksDenied"
	InputNetworkDisabled Code = "InputNetworkDisabled"
	InputChecksumMismatch Code = "InputChecksumMismatch"
	InputEncodingInvalid Code = "InputEncodingInvalid"
	LimitExceeded        Code = "LimitExceeded"
	PluginUnknown        Code = "PluginUnknown"
	PluginBoundsExceeded Code = "PluginBoundsExceeded"
	IrInvalid            Code = "IrInvalid"
	CanonicalizationFailed Code = "CanonicalizationFailed"
	BundleInvalidSchema  Code = "BundleInvalidSchema"
	BundleInvalidManifest Code = "BundleInvalidManifest"
	BundleInvalidProof   Code = "BundleInvalidProof"
	BundleHashMismatch   Code = "BundleHashMismatch"
	BundleTampered       Code = "BundleTampered"
	BundleCanonicalizationFailed Code = "BundleCanonicalizationFailed"
	JobTimeout           Code = "JobTimeout"
	JobCanceled          Code = "JobCanceled"
	Internal             Code = "Internal"
)

// Fault is a structured failure value. Detail keys and values must be
// deterministic; OS paths and errno text are forbidden.
type Fault struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Detail  map[string]string `json:"detail,omitempty"`
}

// New creates a fault with the given code and message.
func New(code Code, message string) *Fault {
	return &Fault{Code: code, Message: message}
}

// Newf creates a fault with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

// With attaches a detail field and returns the fault for chaining.
func (f *Fault) With(key, value string) *Fault {
	if f.Detail == nil {
		f.Detail = make(map[string]string)
	}
	f.Detail[key] = value
	return f
}

// Get returns a detail field value.
func (f *Fault) Get(key string) string {
	return f.Detail[key]
}

// Error renders the fault as "Code: message (k=v, ...)" with detail keys in
// sorted order so the rendering itself is deterministic.
func (f *Fault) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Code))
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	if len(f.Detail) > 0 {
		keys := make([]string, 0, len(f.Detail))
		for k := range f.Detail {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(f.Detail[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

// Is matches faults by code, so callers can compare against a bare
// fault.New(code, "") sentinel with errors.Is.
func (f *Fault) Is(target error) bool {
	var other *Fault
	if !errors.As(target, &other) {
		return false
	}
	return f.Code == other.Code
}

// CodeOf extracts the stable code from an error chain. Non-fault errors map
// to Internal.
func CodeOf(err error) Code {
	var f *Fault
	if errors.As(err, &f) {
		return f.Code
	}
	return Internal
}

// As extracts the fault from an error chain, or nil.
func As(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return nil
}
