package aws

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/yairfalse/sweep/pkg/resource"
)

var authCodes = map[string]bool{
	"UnauthorizedOperation":       true,
	"AccessDenied":                true,
	"AccessDeniedException":       true,
	"AuthFailure":                 true,
	"UnrecognizedClientException": true,
	"InvalidClientTokenId":        true,
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
	"SignatureDoesNotMatch":       true,
	"AllAccessDisabled":           true,
}

var optInCodes = map[string]bool{
	"OptInRequired":           true,
	"InvalidRegion":           true,
	"RegionDisabledException": true,
}

var throttleCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestLimitExceeded":                   true,
	"TooManyRequestsException":               true,
	"RequestThrottledException":              true,
	"ProvisionedThroughputExceededException": true,
	"SlowDown":                               true,
}

var notFoundCodes = map[string]bool{
	"NoSuchBucket":                         true,
	"NoSuchPublicAccessBlockConfiguration": true,
}

// Classify maps a provider error onto the failure taxonomy. The returned
// failure is probe-local; callers upgrade Kind for fatal or partial-field use.
func Classify(err error) *resource.Failure {
	var existing *resource.Failure
	if errors.As(err, &existing) {
		f := *existing
		return &f
	}

	f := &resource.Failure{
		Kind:    resource.UnexpectedLocal,
		Cause:   resource.CauseUnknown,
		Message: err.Error(),
		Err:     err,
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		f.Cause = resource.CauseCanceled
		return f
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		f.Code = apiErr.ErrorCode()
		switch {
		case authCodes[f.Code]:
			f.Kind = resource.ExpectedLocal
			f.Cause = resource.CauseAuthorization
		case optInCodes[f.Code]:
			f.Kind = resource.ExpectedLocal
			f.Cause = resource.CauseOptIn
		case throttleCodes[f.Code]:
			f.Cause = resource.CauseThrottled
		case notFoundCodes[f.Code]:
			f.Cause = resource.CauseNotFound
		}
		return f
	}

	var sendErr *smithyhttp.RequestSendError
	var netErr net.Error
	if errors.As(err, &sendErr) || errors.As(err, &netErr) {
		f.Cause = resource.CauseNetwork
		return f
	}

	// The SDK reports a missing or broken credential chain without a typed
	// error; it never reaches the wire, so treat it as an authorization problem.
	msg := err.Error()
	if strings.Contains(msg, "retrieve credentials") || strings.Contains(msg, "get identity") {
		f.Kind = resource.ExpectedLocal
		f.Cause = resource.CauseAuthorization
	}

	return f
}

// hasCode reports whether err carries the given provider error code.
func hasCode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
