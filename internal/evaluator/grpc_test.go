package evaluator

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vietddude/ragtrial/internal/resilience"
)

// fakeEngine answers StartTrial according to the credential it receives.
type fakeEngine struct {
	mu      sync.Mutex
	limited map[string]bool
	seen    []string
	req     *structpb.Struct
}

func (f *fakeEngine) start(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	auth := ""
	if v := md.Get("authorization"); len(v) > 0 {
		auth = v[0]
	}
	f.mu.Lock()
	f.seen = append(f.seen, auth)
	f.req = in
	f.mu.Unlock()

	if f.limited[auth] {
		st, _ := status.New(codes.ResourceExhausted, "quota exceeded").WithDetails(
			&errdetails.RetryInfo{RetryDelay: durationpb.New(2 * time.Second)},
		)
		return nil, st.Err()
	}
	if in.GetFields()["config_path"].GetStringValue() == "broken.yaml" {
		return structpb.NewStruct(map[string]any{"error": "invalid pipeline config"})
	}
	return structpb.NewStruct(map[string]any{"status": "done"})
}

func startFakeEngine(t *testing.T, engine *fakeEngine) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	desc := grpc.ServiceDesc{
		ServiceName: "ragtrial.v1.Evaluator",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "StartTrial",
			Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				return srv.(*fakeEngine).start(ctx, in)
			},
		}},
	}

	s := grpc.NewServer()
	s.RegisterService(&desc, engine)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	return lis.Addr().String()
}

func TestGRPCEvaluator_Success(t *testing.T) {
	engine := &fakeEngine{}
	addr := startFakeEngine(t, engine)

	ev, err := NewGRPCEvaluator(Config{Endpoint: addr})
	if err != nil {
		t.Fatalf("NewGRPCEvaluator failed: %v", err)
	}
	defer ev.Close()

	if err := ev.StartTrial(context.Background(), testTrial("sk-a")); err != nil {
		t.Fatalf("StartTrial failed: %v", err)
	}
	if len(engine.seen) != 1 || engine.seen[0] != "Bearer sk-a" {
		t.Errorf("Expected bearer metadata, got %v", engine.seen)
	}
	if engine.req.GetFields()["corpus_data_path"].GetStringValue() != "corpus.parquet" {
		t.Errorf("Unexpected request: %v", engine.req)
	}
}

func TestGRPCEvaluator_ResourceExhausted(t *testing.T) {
	engine := &fakeEngine{limited: map[string]bool{"Bearer sk-a": true}}
	addr := startFakeEngine(t, engine)

	ev, err := NewGRPCEvaluator(Config{Endpoint: "http://" + addr})
	if err != nil {
		t.Fatalf("NewGRPCEvaluator failed: %v", err)
	}
	defer ev.Close()

	err = ev.StartTrial(context.Background(), testTrial("sk-a"))
	class, hint := resilience.Classify(err)
	if class != resilience.ClassRateLimited {
		t.Fatalf("Expected rate limited, got %v (%v)", class, err)
	}
	if hint != 2*time.Second {
		t.Errorf("Expected 2s hint, got %s", hint)
	}

	if err := ev.StartTrial(context.Background(), testTrial("sk-b")); err != nil {
		t.Errorf("Expected second credential to succeed, got %v", err)
	}
}

func TestGRPCEvaluator_EngineError(t *testing.T) {
	addr := startFakeEngine(t, &fakeEngine{})

	ev, err := NewGRPCEvaluator(Config{Endpoint: addr})
	if err != nil {
		t.Fatalf("NewGRPCEvaluator failed: %v", err)
	}
	defer ev.Close()

	trial := testTrial("sk")
	trial.ConfigPath = "broken.yaml"
	err = ev.StartTrial(context.Background(), trial)
	if class, _ := resilience.Classify(err); class != resilience.ClassOther {
		t.Errorf("Expected non-recoverable error, got %v (%v)", class, err)
	}
}
