package evaluator

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vietddude/ragtrial/internal/resilience"
)

// GRPCEvaluator starts trials on an engine service over gRPC. Requests and
// responses are google.protobuf.Struct messages, so no generated stubs are
// needed. Quota errors surface as codes.ResourceExhausted.
type GRPCEvaluator struct {
	endpoint string
	method   string
	timeout  time.Duration
	conn     *grpc.ClientConn
}

// NewGRPCEvaluator creates a new gRPC evaluator.
func NewGRPCEvaluator(cfg Config, extra ...grpc.DialOption) (*GRPCEvaluator, error) {
	cfg = cfg.WithDefaults()

	// Parse endpoint to determine if TLS is needed
	target := cfg.Endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(target, "https://") || strings.HasSuffix(target, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}

	return &GRPCEvaluator{
		endpoint: cfg.Endpoint,
		method:   cfg.Method,
		timeout:  cfg.Timeout,
		conn:     conn,
	}, nil
}

// Name implements Evaluator.
func (e *GRPCEvaluator) Name() string { return KindGRPC }

// Close implements Evaluator.
func (e *GRPCEvaluator) Close() error {
	return e.conn.Close()
}

// StartTrial implements Evaluator.
func (e *GRPCEvaluator) StartTrial(ctx context.Context, t Trial) error {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	req, err := structpb.NewStruct(map[string]any{
		"config_path":      t.ConfigPath,
		"qa_data_path":     t.QAPath,
		"corpus_data_path": t.CorpusPath,
		"project_dir":      t.ProjectDir,
		"device":           t.Device,
	})
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+t.Credential)

	resp := &structpb.Struct{}
	if err := e.conn.Invoke(ctx, e.method, req, resp); err != nil {
		// Status errors pass through untouched so their code and
		// RetryInfo details reach the classifier.
		return err
	}

	if msg := resp.GetFields()["error"].GetStringValue(); msg != "" {
		err := fmt.Errorf("engine error: %s", msg)
		if resilience.DetectThrottlePattern(msg) {
			return resilience.RateLimited(err, 0)
		}
		return err
	}
	return nil
}
