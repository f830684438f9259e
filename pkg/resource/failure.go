package resource

import (
	"errors"
	"strings"
)

// FailureKind classifies how a failure affects the scan.
type FailureKind uint8

const (
	// Fatal aborts the whole scan (region enumeration only).
	Fatal FailureKind = iota + 1
	// ExpectedLocal is a probe failure that restricted accounts hit routinely
	// (authorization denied, region not opted in). Logged at warn.
	ExpectedLocal
	// UnexpectedLocal is any other probe failure. Logged at error, still isolated.
	UnexpectedLocal
	// PartialField is an enrichment lookup failure; the record is kept with a marker.
	PartialField
)

func (k FailureKind) String() string {
	switch k {
	case Fatal:
		return "fatal"
	case ExpectedLocal:
		return "expected"
	case UnexpectedLocal:
		return "unexpected"
	case PartialField:
		return "partial_field"
	default:
		return "invalid"
	}
}

// Cause is the underlying reason for a failure.
type Cause string

const (
	CauseAuthorization Cause = "authorization"
	CauseNetwork       Cause = "network"
	CauseThrottled     Cause = "throttled"
	CauseMalformed     Cause = "malformed"
	CauseOptIn         Cause = "opt_in"
	CauseNotFound      Cause = "not_found"
	CauseCanceled      Cause = "canceled"
	CauseUnknown       Cause = "unknown"
)

// Sentinels matched by Failure.Is so callers can tell remediation paths apart.
var (
	ErrAuthorization = errors.New("could not authenticate or authorize with the provider")
	ErrUnreachable   = errors.New("could not reach the provider")
)

// Failure is the tagged failure variant carried by ProbeResult and returned
// by the region enumerator.
type Failure struct {
	Kind     FailureKind
	Cause    Cause
	Region   Region
	Service  ServiceKind
	Resource string
	Code     string
	Message  string
	Err      error
}

func (f *Failure) Error() string {
	var b strings.Builder
	if f.Region != "" {
		b.WriteString(string(f.Region))
		b.WriteByte(' ')
	}
	if f.Service.Valid() {
		b.WriteString(f.Service.Label())
		b.WriteByte(' ')
	}
	if f.Resource != "" {
		b.WriteString(f.Resource)
		b.WriteByte(' ')
	}
	b.WriteString(string(f.Cause))
	msg := f.Message
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches ErrAuthorization and ErrUnreachable by cause.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrAuthorization:
		return f.Cause == CauseAuthorization
	case ErrUnreachable:
		return f.Cause == CauseNetwork
	}
	return false
}

// Diagnostic converts the failure into its reporting form.
func (f *Failure) Diagnostic() Diagnostic {
	d := Diagnostic{
		Kind:     f.Kind.String(),
		Cause:    string(f.Cause),
		Region:   f.Region,
		Resource: f.Resource,
		Code:     f.Code,
		Message:  f.Message,
	}
	if f.Service.Valid() {
		d.Service = f.Service.Label()
	}
	if d.Message == "" && f.Err != nil {
		d.Message = f.Err.Error()
	}
	return d
}

// Diagnostic is a reportable failure entry.
type Diagnostic struct {
	Kind     string `json:"kind" yaml:"kind"`
	Cause    string `json:"cause" yaml:"cause"`
	Region   Region `json:"region,omitempty" yaml:"region,omitempty"`
	Service  string `json:"service,omitempty" yaml:"service,omitempty"`
	Resource string `json:"resource,omitempty" yaml:"resource,omitempty"`
	Code     string `json:"code,omitempty" yaml:"code,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// ProbeResult is the outcome of one probe invocation: records or a failure, never both.
type ProbeResult struct {
	Records []Record
	Failure *Failure
}

// Succeeded wraps a record list.
func Succeeded(records []Record) ProbeResult {
	return ProbeResult{Records: records}
}

// Failed wraps a failure.
func Failed(f *Failure) ProbeResult {
	return ProbeResult{Failure: f}
}

// OK reports whether the probe succeeded.
func (r ProbeResult) OK() bool {
	return r.Failure == nil
}
