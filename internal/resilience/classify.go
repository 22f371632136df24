package resilience

import (
	"errors"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Class is the recovery category of an operation error.
type Class int

const (
	ClassNone        Class = iota // no error
	ClassRateLimited              // rotate credential and retry
	ClassOther                    // abort immediately
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "success"
	case ClassRateLimited:
		return "rate_limited"
	default:
		return "error"
	}
}

// throttlePatterns are matched against lowercased error text when the
// error carries no typed signal (e.g. engine output scraped from stderr).
// Bare status numbers are never matched on their own: "429" shows up in
// ports, line numbers and ids.
var throttlePatterns = []string{
	"http 429",
	"status 429",
	"status: 429",
	"status code 429",
	"status code: 429",
	"error code: 429",
	"too many requests",
	"rate limit",
	"ratelimiterror",
	"rate_limit_exceeded",
	"quota exceeded",
	"exceeded your current quota",
	"requests per min",
	"tokens per min",
}

// Classify determines how the invoker reacts to err and returns any
// retry-after hint the error carries.
func Classify(err error) (Class, time.Duration) {
	if err == nil {
		return ClassNone, 0
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return ClassRateLimited, rl.RetryAfter
	}

	if st, ok := status.FromError(err); ok {
		if st.Code() == codes.ResourceExhausted {
			return ClassRateLimited, retryInfoDelay(st)
		}
		// A gRPC status other than ResourceExhausted is authoritative.
		return ClassOther, 0
	}

	if DetectThrottlePattern(err.Error()) {
		return ClassRateLimited, 0
	}

	return ClassOther, 0
}

// DetectThrottlePattern checks if a message contains a rate-limit pattern.
func DetectThrottlePattern(message string) bool {
	lower := strings.ToLower(message)
	for _, pattern := range throttlePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func retryInfoDelay(st *status.Status) time.Duration {
	for _, d := range st.Details() {
		if ri, ok := d.(*errdetails.RetryInfo); ok && ri.GetRetryDelay() != nil {
			return ri.GetRetryDelay().AsDuration()
		}
	}
	return 0
}
