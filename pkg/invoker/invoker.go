package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 60 * time.Second

// waitDelay bounds how long Wait keeps draining pipes after the child was killed.
const waitDelay = 2 * time.Second

var ErrCanceled = errors.New("model invocation canceled")

type IInvoker interface {
	Run(ctx context.Context, imagePath string) (string, error)
}

type Config struct {
	Interpreter string
	Script      string
	Subcommand  string
	WorkDir     string
	Timeout     time.Duration
}

type invoker struct {
	cfg Config
	log *logrus.Logger
}

func New(cfg Config, log *logrus.Logger) IInvoker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Subcommand == "" {
		cfg.Subcommand = "detect"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &invoker{
		cfg: cfg,
		log: log,
	}
}

// Run executes `<interpreter> <script> <subcommand> <imagePath>` and returns
// the full standard output once the child exits with status zero.
func (i *invoker) Run(ctx context.Context, imagePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, i.cfg.Interpreter, i.cfg.Script, i.cfg.Subcommand, imagePath)
	cmd.Dir = i.cfg.WorkDir
	cmd.WaitDelay = waitDelay

	entry := i.log.WithFields(logrus.Fields{
		"interpreter":  i.cfg.Interpreter,
		"script":       i.cfg.Script,
		"staging_path": imagePath,
	})

	stderrLog := newLineLogger(entry)
	defer stderrLog.Flush()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, stderrLog)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		entry.WithField("error", err.Error()).Error("Failed to start model process")
		return "", &UnavailableError{Err: err}
	}

	err := cmd.Wait()
	elapsed := time.Since(start)

	// A grandchild holding the pipes open past the child's clean exit is not a model failure.
	if errors.Is(err, exec.ErrWaitDelay) && ctx.Err() == nil {
		err = nil
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			entry.WithFields(logrus.Fields{
				"elapsed_ms": elapsed.Milliseconds(),
				"error":      ctxErr.Error(),
			}).Warn("Model process terminated before completion")

			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return "", &TimeoutError{Timeout: i.cfg.Timeout, Stderr: stderr.String()}
			}
			return "", ErrCanceled
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			entry.WithFields(logrus.Fields{
				"exit_code":  exitErr.ExitCode(),
				"elapsed_ms": elapsed.Milliseconds(),
			}).Error("Model process exited with failure")
			return "", &ExecutionError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", fmt.Errorf("waiting for model process: %w", err)
	}

	entry.WithField("elapsed_ms", elapsed.Milliseconds()).Debug("Model process finished")

	return stdout.String(), nil
}
