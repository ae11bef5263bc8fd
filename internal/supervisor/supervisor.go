// Package supervisor runs one external worker process per active job,
// streams its output through the backend's progress parser, enforces the
// wall-clock timeout, and reports the exit outcome.
package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/fetchd/internal/backend"
	"github.com/veranemoloko/fetchd/internal/domain"
)

// tailLines bounds how much worker output is kept for failure
// classification.
const tailLines = 40

// ExitResult reports how a worker process ended.
type ExitResult struct {
	// Code is the process exit code, -1 if the process never ran or was
	// killed by a signal.
	Code int
	// TimedOut is set when the wall-clock timeout killed the worker.
	TimedOut bool
	// OutputTail holds the last lines of combined output for the retry
	// policy to match against.
	OutputTail string
}

// Sink receives supervisor callbacks. Implementations must not block for
// long; the engine funnels them into its own loop.
type Sink interface {
	WorkerProgress(jobID string, p backend.Progress)
	WorkerExit(jobID string, res ExitResult)
}

// Handle controls a running worker.
type Handle interface {
	// Kill terminates the worker. The exit callback still fires.
	Kill()
}

// Runner starts workers. The engine depends on this interface so tests
// can substitute a fake.
type Runner interface {
	// Start launches a worker for the job. A returned error means the
	// process never started (missing binary, permissions) and must be
	// treated as an immediate terminal failure; no exit callback follows.
	Start(job *domain.Job, opts backend.LaunchOptions, sink Sink) (Handle, error)
}

// ExecRunner is the os/exec implementation of Runner.
type ExecRunner struct {
	downloadDir string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewExecRunner creates a runner placing output under downloadDir and
// killing workers after timeout.
func NewExecRunner(downloadDir string, timeout time.Duration, logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{downloadDir: downloadDir, timeout: timeout, logger: logger}
}

type execHandle struct {
	cancel context.CancelFunc
}

func (h *execHandle) Kill() { h.cancel() }

// Start builds the backend invocation, spawns the process, and supervises
// it on a background goroutine until exit.
func (r *ExecRunner) Start(job *domain.Job, opts backend.LaunchOptions, sink Sink) (Handle, error) {
	if opts.DownloadDir == "" {
		opts.DownloadDir = r.downloadDir
	}
	inv := backend.BuildInvocation(job, opts)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	cmd := exec.CommandContext(ctx, inv.Bin, inv.Args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to launch %s: %w", inv.Bin, err)
	}

	r.logger.Info("worker started",
		"job_id", job.ID,
		"backend", job.Backend,
		"bin", inv.Bin,
		"pid", cmd.Process.Pid,
	)

	go r.supervise(ctx, cancel, cmd, job, stdout, stderr, sink)

	return &execHandle{cancel: cancel}, nil
}

func (r *ExecRunner) supervise(
	ctx context.Context,
	cancel context.CancelFunc,
	cmd *exec.Cmd,
	job *domain.Job,
	stdout, stderr io.Reader,
	sink Sink,
) {
	defer cancel()

	parser := backend.ParserFor(job.Backend)
	tail := newTailBuffer(tailLines)

	var g errgroup.Group
	for _, pipe := range []io.Reader{stdout, stderr} {
		pipe := pipe
		g.Go(func() error {
			scanner := bufio.NewScanner(pipe)
			scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
			scanner.Split(scanProgressLines)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				tail.Add(line)
				if p, ok := parser.ParseLine(line); ok {
					sink.WorkerProgress(job.ID, p)
				}
			}
			return scanner.Err()
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Debug("worker output scan ended", "job_id", job.ID, "error", err)
	}

	err := cmd.Wait()
	res := ExitResult{
		Code:       exitCode(err),
		TimedOut:   errors.Is(ctx.Err(), context.DeadlineExceeded),
		OutputTail: tail.String(),
	}

	r.logger.Info("worker exited",
		"job_id", job.ID,
		"exit_code", res.Code,
		"timed_out", res.TimedOut,
	)

	sink.WorkerExit(job.ID, res)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// scanProgressLines splits on both LF and CR so in-place progress updates
// (aria2c redraws its status line with carriage returns) arrive as
// individual lines.
func scanProgressLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, bytes.TrimSpace(data[:i]), nil
	}
	if atEOF {
		return len(data), bytes.TrimSpace(data), nil
	}
	return 0, nil, nil
}

// tailBuffer keeps the last n lines of worker output.
type tailBuffer struct {
	lines []string
	max   int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tailBuffer) String() string {
	var b bytes.Buffer
	for i, l := range t.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l)
	}
	return b.String()
}
