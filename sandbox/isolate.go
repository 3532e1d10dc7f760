package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime/debug"
	"sync"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// ChildEnv marks a process started to evaluate one script
const ChildEnv = "JOKU_SANDBOX_CHILD"

// MemoryLimit bounds the writable memory of an evaluation process
const MemoryLimit = 512 << 20

var (
	mu         sync.RWMutex
	executable string
)

type request struct {
	Source string         `json:"source"`
	Vars   map[string]any `json:"vars"`
}

type response struct {
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
	Timeout bool   `json:"timeout,omitempty"`
}

// Main must run first thing in main. In an evaluation process it serves the
// request on stdin and exits; otherwise it lets Run evaluate scripts in a
// child copy of this executable.
func Main() {
	if os.Getenv(ChildEnv) == "1" {
		os.Exit(serve(os.Stdin, os.Stdout))
	}

	exe, err := os.Executable()
	if err != nil {
		log.WithError(err).Warn("Cannot locate own executable, scripts will run in-process")
		return
	}
	mu.Lock()
	executable = exe
	mu.Unlock()
}

// Run evaluates source in a memory-limited child process when Main has been
// called, and in-process otherwise. Script failures, timeouts and a child
// killed for exceeding its limits are all reported as *ScriptError or
// ErrTimeout.
func Run(ctx context.Context, source string, vars map[string]any) (string, error) {
	mu.RLock()
	exe := executable
	mu.RUnlock()
	if exe == "" {
		return Eval(ctx, source, vars)
	}
	return runChild(ctx, exe, source, vars)
}

func runChild(ctx context.Context, exe, source string, vars map[string]any) (string, error) {
	payload, err := json.Marshal(request{Source: source, Vars: vars})
	if err != nil {
		return "", fmt.Errorf("failed to encode script: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout+time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe)
	cmd.Env = append(os.Environ(), ChildEnv+"=1")
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ErrTimeout
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.WithFields(log.Fields{
				"exit":   exitErr.ExitCode(),
				"stderr": firstLine(stderr.String()),
			}).Warn("Script process died")
			return "", &ScriptError{Message: "script exceeded its resource limits"}
		}
		return "", fmt.Errorf("failed to start script process: %w", err)
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("failed to decode script result: %w", err)
	}
	switch {
	case resp.Timeout:
		return "", ErrTimeout
	case resp.Error != "":
		return "", &ScriptError{Message: resp.Error}
	}
	return resp.Output, nil
}

func serve(in io.Reader, out io.Writer) int {
	limitResources(MemoryLimit)
	debug.SetMemoryLimit(MemoryLimit / 2)

	var req request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		fmt.Fprintf(os.Stderr, "bad request: %v\n", err)
		return 2
	}

	var resp response
	output, err := Eval(context.Background(), req.Source, req.Vars)
	var scriptErr *ScriptError
	switch {
	case errors.Is(err, ErrTimeout):
		resp.Timeout = true
	case errors.As(err, &scriptErr):
		resp.Error = scriptErr.Message
	case err != nil:
		resp.Error = err.Error()
	default:
		resp.Output = output
	}

	if err := json.NewEncoder(out).Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write result: %v\n", err)
		return 2
	}
	return 0
}
