package evaluator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/ragtrial/internal/resilience"
)

func shellEvaluator(t *testing.T, script string, cfg Config) *CommandEvaluator {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	cfg.Command = []string{"sh", "-c", script, "engine"}
	return NewCommandEvaluator(cfg)
}

func TestCommandEvaluator_ArgsAndEnv(t *testing.T) {
	ev := NewCommandEvaluator(Config{})
	ev.environ = func() []string {
		return []string{"PATH=/usr/bin", "OPENAI_API_KEY=sk-inherited"}
	}

	args := ev.Args(testTrial("sk-new"))
	want := []string{
		"evaluate",
		"--config", "config.yaml",
		"--qa_data_path", "qa.parquet",
		"--corpus_data_path", "corpus.parquet",
		"--project_dir", "benchmark",
	}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Errorf("Unexpected args: %v", args)
	}

	env := ev.Env(testTrial("sk-new"))
	joined := strings.Join(env, "\n")
	if strings.Contains(joined, "sk-inherited") {
		t.Error("Inherited credential leaked into child environment")
	}
	if !strings.Contains(joined, "OPENAI_API_KEY=sk-new") || !strings.Contains(joined, "EVAL_DEVICE=cpu") {
		t.Errorf("Missing trial env: %v", env)
	}
}

func TestCommandEvaluator_PassesCredential(t *testing.T) {
	out := filepath.Join(t.TempDir(), "key.txt")
	ev := shellEvaluator(t, `printf %s "$OPENAI_API_KEY" > "$OUT_FILE"`, Config{})
	ev.environ = func() []string { return append(os.Environ(), "OUT_FILE="+out) }

	if err := ev.StartTrial(context.Background(), testTrial("sk-child")); err != nil {
		t.Fatalf("StartTrial failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if string(data) != "sk-child" {
		t.Errorf("Expected sk-child, got %q", data)
	}
	if os.Getenv("OPENAI_API_KEY") == "sk-child" {
		t.Error("Credential leaked into parent environment")
	}
}

func TestCommandEvaluator_RateLimitFromStderr(t *testing.T) {
	ev := shellEvaluator(t, `echo "openai.RateLimitError: Error code: 429" >&2; exit 1`, Config{})

	err := ev.StartTrial(context.Background(), testTrial("sk"))
	var rl *resilience.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
}

func TestCommandEvaluator_RateLimitExitCode(t *testing.T) {
	ev := shellEvaluator(t, `exit 75`, Config{RateLimitExitCode: 75})

	err := ev.StartTrial(context.Background(), testTrial("sk"))
	if class, _ := resilience.Classify(err); class != resilience.ClassRateLimited {
		t.Fatalf("Expected rate limited, got %v (%v)", class, err)
	}
}

func TestCommandEvaluator_OtherFailure(t *testing.T) {
	ev := shellEvaluator(t, `echo "FileNotFoundError: qa.parquet" >&2; exit 2`, Config{})

	err := ev.StartTrial(context.Background(), testTrial("sk"))
	if err == nil {
		t.Fatal("Expected error")
	}
	if class, _ := resilience.Classify(err); class != resilience.ClassOther {
		t.Errorf("Expected non-recoverable error, got %v", class)
	}
	if !strings.Contains(err.Error(), "FileNotFoundError") {
		t.Errorf("Expected stderr tail in error, got %v", err)
	}
}

func TestCommandEvaluator_OversizedLine(t *testing.T) {
	ev := shellEvaluator(t, `head -c 2000000 /dev/zero | tr '\0' 'a'; echo; echo done`, Config{})

	if err := ev.StartTrial(context.Background(), testTrial("sk")); err != nil {
		t.Fatalf("Expected success despite oversized output line, got %v", err)
	}
}

func TestCommandEvaluator_CancelKillsSpawnedProcesses(t *testing.T) {
	ev := shellEvaluator(t, `sleep 5; true`, Config{KillGrace: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := ev.StartTrial(ctx, testTrial("sk"))
	if err == nil {
		t.Fatal("Expected error after deadline")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("StartTrial returned after %s, want well under the 5s sleep", elapsed)
	}
}

func TestCommandEvaluator_LingeringWorkerDoesNotBlock(t *testing.T) {
	ev := shellEvaluator(t, `sleep 5 & exit 0`, Config{KillGrace: 300 * time.Millisecond})

	start := time.Now()
	if err := ev.StartTrial(context.Background(), testTrial("sk")); err != nil {
		t.Fatalf("Expected success once the engine exits, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("StartTrial returned after %s, want the 300ms grace", elapsed)
	}
}

func TestCommandEvaluator_MissingBinary(t *testing.T) {
	ev := NewCommandEvaluator(Config{Command: []string{"ragtrial-engine-that-does-not-exist"}})
	if err := ev.StartTrial(context.Background(), testTrial("sk")); err == nil {
		t.Error("Expected start error")
	}
}

func TestNew(t *testing.T) {
	ev, err := New(Config{})
	if err != nil || ev.Name() != KindCommand {
		t.Errorf("Expected command evaluator, got %v, %v", ev, err)
	}
	if _, err := New(Config{Kind: KindHTTP}); err == nil {
		t.Error("Expected error for http evaluator without endpoint")
	}
	if _, err := New(Config{Kind: "smoke-signals"}); err == nil {
		t.Error("Expected error for unknown kind")
	}
}
