package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/ragtrial/internal/core/domain"
	"github.com/vietddude/ragtrial/internal/credential"
	"github.com/vietddude/ragtrial/internal/evaluator"
	"github.com/vietddude/ragtrial/internal/resilience"
)

func env(vars map[string]string) credential.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestApp_Lifecycle(t *testing.T) {
	ev := &scriptedEvaluator{results: []error{resilience.RateLimited(errors.New("429"), 0), nil}}
	sleeper := &sleepRecorder{}

	app, err := NewApp(context.Background(), Config{
		Credentials: credential.Source{MinCount: 2},
		Retry:       resilience.Config{MaxAttempts: 6, BaseDelay: 5 * time.Second},
		Paths:       testPaths(t),
		Device:      "cpu",
		Lookup:      env(map[string]string{"OPENAI_API_KEY_1": keyA, "OPENAI_API_KEY_2": keyB}),
		NewEvaluator: func(evaluator.Config) (evaluator.Evaluator, error) {
			return ev, nil
		},
		InvokeOpts: []resilience.Option{resilience.WithSleep(sleeper.sleep)},
	})
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	record, err := app.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if record.Outcome != domain.OutcomeSucceeded || record.Attempts != 2 {
		t.Errorf("Unexpected record: %+v", record)
	}
	if calls := ev.calls(); len(calls) != 2 || calls[1] != keyB {
		t.Errorf("Expected rotation to key B, got %v", calls)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != 5*time.Second {
		t.Errorf("Expected one 5s wait, got %v", sleeper.delays)
	}

	list, _ := app.Ledger().List(ctx, 0)
	if len(list) != 1 || list[0].ID != record.ID {
		t.Errorf("Expected trial in ledger, got %d records", len(list))
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestNewApp_MissingCredential(t *testing.T) {
	called := false
	_, err := NewApp(context.Background(), Config{
		Credentials: credential.Source{MinCount: 2},
		Lookup:      env(map[string]string{"OPENAI_API_KEY_1": keyA}),
		NewEvaluator: func(evaluator.Config) (evaluator.Evaluator, error) {
			called = true
			return &scriptedEvaluator{}, nil
		},
	})
	if !errors.Is(err, credential.ErrConfiguration) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
	if called {
		t.Error("Evaluator created despite configuration error")
	}
}

func TestNewApp_BadDevice(t *testing.T) {
	_, err := NewApp(context.Background(), Config{
		Lookup: env(map[string]string{"OPENAI_API_KEY_1": keyA, "OPENAI_API_KEY_2": keyB}),
		Device: "tpu",
	})
	if err == nil {
		t.Error("Expected device error")
	}
}
