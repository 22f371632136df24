// Package device picks the compute device handed to the evaluation engine.
// The driver never touches the device itself; it only forwards the choice.
package device

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Device names understood by the engine.
type Device string

const (
	Auto Device = "auto"
	CPU  Device = "cpu"
	MPS  Device = "mps"
	CUDA Device = "cuda"
)

// Accelerated reports whether d is a GPU backend.
func (d Device) Accelerated() bool {
	return d == MPS || d == CUDA
}

// Probe describes the host the driver runs on.
type Probe struct {
	GOOS     string
	GOARCH   string
	LookPath func(file string) (string, error)
}

// HostProbe probes the current machine.
func HostProbe() Probe {
	return Probe{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH, LookPath: exec.LookPath}
}

// Resolve maps a requested device to a concrete one on this host.
func Resolve(requested string) (Device, error) {
	return HostProbe().Resolve(requested)
}

// Resolve maps a requested device to a concrete one. Explicit choices are
// forwarded as is; auto prefers mps, then cuda, then cpu.
func (p Probe) Resolve(requested string) (Device, error) {
	d := Device(strings.ToLower(strings.TrimSpace(requested)))
	if d == "" {
		d = Auto
	}

	switch d {
	case CPU, MPS, CUDA:
		return d, nil
	case Auto:
	default:
		return "", fmt.Errorf("unknown device %q (want auto, cpu, mps or cuda)", requested)
	}

	resolved := CPU
	switch {
	case p.GOOS == "darwin" && p.GOARCH == "arm64":
		resolved = MPS
	case p.LookPath != nil && p.hasTool("nvidia-smi"):
		resolved = CUDA
	}

	if resolved.Accelerated() {
		slog.Info("Accelerator available, evaluation will use it", "device", resolved)
	} else {
		slog.Warn("No accelerator available, falling back to CPU")
	}
	return resolved, nil
}

func (p Probe) hasTool(name string) bool {
	_, err := p.LookPath(name)
	return err == nil
}
