package evaluator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/ragtrial/internal/resilience"
)

const stderrTailLines = 20

// CommandEvaluator runs the evaluation engine CLI once per trial.
// The credential reaches the child through its own environment only.
type CommandEvaluator struct {
	cfg     Config
	log     *slog.Logger
	environ func() []string
}

// NewCommandEvaluator creates a process-backed evaluator.
func NewCommandEvaluator(cfg Config) *CommandEvaluator {
	return &CommandEvaluator{
		cfg:     cfg.WithDefaults(),
		log:     slog.Default().With("component", "evaluator", "kind", KindCommand),
		environ: os.Environ,
	}
}

// Name implements Evaluator.
func (e *CommandEvaluator) Name() string { return KindCommand }

// Close implements Evaluator.
func (e *CommandEvaluator) Close() error { return nil }

// Args returns the argv passed to the engine for t.
func (e *CommandEvaluator) Args(t Trial) []string {
	args := make([]string, 0, len(e.cfg.Command)+8)
	args = append(args, e.cfg.Command[1:]...)
	args = append(args,
		"--config", t.ConfigPath,
		"--qa_data_path", t.QAPath,
		"--corpus_data_path", t.CorpusPath,
		"--project_dir", t.ProjectDir,
	)
	return args
}

// Env returns the child environment for t: the parent environment minus any
// inherited credential, plus the trial credential and device.
func (e *CommandEvaluator) Env(t Trial) []string {
	parent := e.environ()
	env := make([]string, 0, len(parent)+2)
	for _, kv := range parent {
		if strings.HasPrefix(kv, e.cfg.CredentialEnv+"=") || strings.HasPrefix(kv, e.cfg.DeviceEnv+"=") {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, e.cfg.CredentialEnv+"="+t.Credential)
	if t.Device != "" {
		env = append(env, e.cfg.DeviceEnv+"="+t.Device)
	}
	return env
}

// StartTrial implements Evaluator.
func (e *CommandEvaluator) StartTrial(ctx context.Context, t Trial) error {
	ctx, cancel := withTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.cfg.Command[0], e.Args(t)...)
	cmd.Env = e.Env(t)
	cmd.WaitDelay = e.cfg.KillGrace
	killProcessGroup(cmd)

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		outW.Close()
		errW.Close()
		return fmt.Errorf("start engine %s: %w", e.cfg.Command[0], err)
	}

	out := &outputWatcher{}
	var g errgroup.Group
	g.Go(func() error { return out.consume(outR, e.log, false) })
	g.Go(func() error { return out.consume(errR, e.log, true) })

	// Wait owns the copy from the child's pipes; once it returns no more
	// output arrives, so closing the writers ends both readers.
	waitErr := cmd.Wait()
	outW.Close()
	errW.Close()
	streamErr := g.Wait()

	if errors.Is(waitErr, exec.ErrWaitDelay) && ctx.Err() == nil {
		e.log.Warn("Engine exited but left processes holding its output", "grace", e.cfg.KillGrace)
		waitErr = nil
	}
	if streamErr != nil {
		e.log.Warn("Engine output truncated", "error", streamErr)
	}
	if waitErr == nil {
		return nil
	}

	runErr := fmt.Errorf("engine exited: %w", waitErr)
	if tail := out.tail(); tail != "" {
		runErr = fmt.Errorf("engine exited: %w: %s", waitErr, tail)
	}

	var exitErr *exec.ExitError
	if e.cfg.RateLimitExitCode != 0 && errors.As(waitErr, &exitErr) &&
		exitErr.ExitCode() == e.cfg.RateLimitExitCode {
		return resilience.RateLimited(runErr, 0)
	}
	if out.throttled() {
		return resilience.RateLimited(runErr, 0)
	}
	return runErr
}

// outputWatcher streams engine output into the log, keeps the stderr tail
// for error reports and notes rate-limit messages.
type outputWatcher struct {
	mu       sync.Mutex
	lines    []string
	throttle bool
}

// consume reads r line by line until EOF. On a scan error the rest of r is
// discarded so the child never blocks on a full pipe.
func (w *outputWatcher) consume(r io.Reader, log *slog.Logger, isStderr bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		throttled := resilience.DetectThrottlePattern(line)

		w.mu.Lock()
		if throttled {
			w.throttle = true
		}
		if isStderr {
			w.lines = append(w.lines, line)
			if len(w.lines) > stderrTailLines {
				w.lines = w.lines[1:]
			}
		}
		w.mu.Unlock()

		if isStderr {
			log.Debug("engine stderr", "line", line)
		} else {
			log.Debug("engine stdout", "line", line)
		}
	}

	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

func (w *outputWatcher) tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Join(w.lines, "\n")
}

func (w *outputWatcher) throttled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.throttle
}
