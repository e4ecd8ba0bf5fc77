package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/bizflycloud/zfs-backup/pkg/reporter"
)

// LaunchFailed is the exit code reported when a process could not be started.
const LaunchFailed = -1

// Result is the outcome of one process invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (r Result) Success() bool {
	return r.ExitCode == 0
}

type Options struct {
	// Dir is the working directory, empty means the current one.
	Dir string
	// Capture collects stdout and stderr into the Result. Otherwise both
	// streams are passed through to the runner's writers.
	Capture bool
}

// Runner executes external processes. Implementations never return an error:
// every outcome is encoded in the Result.
type Runner interface {
	Run(ctx context.Context, argv []string, opts Options) Result
}

var _ Runner = (*ExecRunner)(nil)

type ExecRunner struct {
	rep    reporter.Reporter
	stdout io.Writer
	stderr io.Writer
}

func New(rep reporter.Reporter) *ExecRunner {
	return &ExecRunner{rep: rep, stdout: os.Stdout, stderr: os.Stderr}
}

func (e *ExecRunner) Run(ctx context.Context, argv []string, opts Options) Result {
	if len(argv) == 0 {
		e.rep.Error("exec: empty command")
		return Result{ExitCode: LaunchFailed}
	}
	e.rep.Debug("exec: " + shellquote.Join(argv...))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	var stdout, stderr bytes.Buffer
	if opts.Capture {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		cmd.Stdout = e.stdout
		cmd.Stderr = e.stderr
	}

	var res Result
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		e.rep.Error(fmt.Sprintf("exec: failed to launch %s: %v", argv[0], err))
		return Result{ExitCode: LaunchFailed}
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	e.rep.Debug(fmt.Sprintf("exec: %s exited with %d", argv[0], res.ExitCode))
	if s := strings.TrimSpace(res.Stdout); s != "" {
		e.rep.Debug("stdout: " + s)
	}
	if s := strings.TrimSpace(res.Stderr); s != "" {
		e.rep.Debug("stderr: " + s)
	}
	return res
}
