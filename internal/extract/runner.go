package extract

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner shells out to the real tool. It logs through the chain's logger
// so tool invocations carry the same handler and attrs as the rest of the
// extraction pipeline.
type execRunner struct {
	log *slog.Logger
}

func newExecRunner(logger *slog.Logger) execRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return execRunner{log: logger}
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var out, errb bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &errb

	start := time.Now()
	err := cmd.Run()

	log := r.log.With("cmd", name, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		log.Error("extract.exec.failed",
			"args", args,
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
		return out.Bytes(), errb.Bytes(), err
	}
	log.Debug("extract.exec.ok", "stdout_bytes", out.Len())
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
