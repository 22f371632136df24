package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect Class
	}{
		{"nil", nil, ClassNone},
		{"typed", RateLimited(errors.New("quota"), 0), ClassRateLimited},
		{"wrapped typed", fmt.Errorf("trial: %w", RateLimited(nil, 0)), ClassRateLimited},
		{"http 429", errors.New("429 Too Many Requests"), ClassRateLimited},
		{"openai text", errors.New("openai.RateLimitError: Rate limit reached for gpt-4o"), ClassRateLimited},
		{"quota text", errors.New("You exceeded your current quota"), ClassRateLimited},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "slow down"), ClassRateLimited},
		{"grpc invalid", status.Error(codes.InvalidArgument, "rate limit wording ignored"), ClassOther},
		{"status code", errors.New("Error code: 429 - {'error': {'type': 'requests'}}"), ClassRateLimited},
		{"port with 429", errors.New("dial tcp 127.0.0.1:14290: connect: connection refused"), ClassOther},
		{"traceback line 429", errors.New("File \"engine.py\", line 429, in start_trial\nKeyError: 'qid'"), ClassOther},
		{"malformed config", errors.New("yaml: line 3: mapping values are not allowed"), ClassOther},
		{"timeout", errors.New("timeout"), ClassOther},
		{"canceled", context.Canceled, ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := Classify(tt.err); got != tt.expect {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestClassify_HintFromTypedError(t *testing.T) {
	_, hint := Classify(RateLimited(errors.New("x"), 7*time.Second))
	if hint != 7*time.Second {
		t.Errorf("Expected 7s hint, got %s", hint)
	}
}

func TestClassify_HintFromRetryInfo(t *testing.T) {
	st, err := status.New(codes.ResourceExhausted, "quota").WithDetails(
		&errdetails.RetryInfo{RetryDelay: durationpb.New(3 * time.Second)},
	)
	if err != nil {
		t.Fatalf("WithDetails failed: %v", err)
	}

	class, hint := Classify(st.Err())
	if class != ClassRateLimited {
		t.Errorf("Expected rate limited, got %v", class)
	}
	if hint != 3*time.Second {
		t.Errorf("Expected 3s hint, got %s", hint)
	}
}
