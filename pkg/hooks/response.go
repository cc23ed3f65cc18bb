// Package hooks turns CLI hook invocations into worker calls.
package hooks

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// InputTimeout bounds how long a hook waits for its payload on stdin.
const InputTimeout = 2 * time.Second

// ReadInput reads a JSON payload from r. A payload that is missing, malformed
// or not delivered within timeout yields an empty Input.
func ReadInput(r io.Reader, timeout time.Duration) Input {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(r)
		ch <- result{data, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil || len(res.data) == 0 {
			return Input{}
		}
		var in Input
		if err := json.Unmarshal(res.data, &in); err != nil || in == nil {
			return Input{}
		}
		return in
	case <-time.After(timeout):
		return Input{}
	}
}

// Runner executes one hook invocation.
type Runner struct {
	CLI    models.CLITool
	Stdout io.Writer
	Stderr io.Writer
	// Ensure returns the port of a healthy worker, starting one if needed.
	Ensure func() (int, error)
}

// NewRunner returns a Runner writing to the process's stdout and stderr.
func NewRunner(cli models.CLITool) *Runner {
	return &Runner{
		CLI:    cli,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Ensure: EnsureWorkerRunning,
	}
}

// Run handles a native hook event of the CLI. Failures are logged to stderr
// and never surface to the host CLI: Run always writes a success response.
func (r *Runner) Run(ctx context.Context, event string, in Input) {
	if os.Getenv("UNIMEM_INTERNAL") == "1" {
		r.respond(event, "")
		return
	}

	calls := AdapterFor(r.CLI).Normalize(event, in)
	if len(calls) == 0 {
		r.respond(event, "")
		return
	}

	project := in.str("project")
	if project == "" {
		cwd := in.str("cwd")
		if cwd == "" {
			cwd, _ = os.Getwd()
		}
		project = DeriveProjectName(cwd)
	}

	port, err := r.Ensure()
	if err != nil {
		r.logf(event, "worker unavailable: %v", err)
		r.respond(event, "")
		return
	}
	client := NewClient(port)

	var injected string
	sessionID := ""
	for _, c := range calls {
		c.Event.Project = project
		if c.Event.SessionID == "" {
			c.Event.SessionID = sessionID
		}
		res, err := client.Hook(ctx, c.Hook, c.Event)
		if err != nil {
			r.logf(event, "%v", err)
			continue
		}
		// Later calls of the same event share the session the worker assigned.
		if sessionID == "" {
			sessionID = res.SessionID
		}
		if res.Context != "" {
			injected = res.Context
			if res.File != "" {
				r.logf(event, "context written to %s", res.File)
			}
		}
	}
	r.respond(event, injected)
}

func (r *Runner) logf(event, format string, args ...interface{}) {
	fmt.Fprintf(r.Stderr, "[unimem %s] %s\n", event, fmt.Sprintf(format, args...))
}

// respond writes the host CLI's expected success payload.
func (r *Runner) respond(event, additionalContext string) {
	var out interface{}
	switch {
	case r.CLI == models.CLIClaudeCode && additionalContext != "":
		out = map[string]interface{}{
			"continue": true,
			"hookSpecificOutput": map[string]interface{}{
				"hookEventName":     event,
				"additionalContext": additionalContext,
			},
		}
	case r.CLI == models.CLIClaudeCode:
		out = map[string]bool{"continue": true}
	default:
		out = map[string]bool{"success": true}
	}
	_ = json.NewEncoder(r.Stdout).Encode(out)
}

// Run is the entry point of hook binaries: it reads the payload from stdin
// and handles event for cli.
func Run(cli models.CLITool, event string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	NewRunner(cli).Run(ctx, event, ReadInput(os.Stdin, InputTimeout))
}

// StatuslineHandler renders a status line from the CLI's payload and the
// worker port. in is nil when no payload could be read.
type StatuslineHandler func(in Input, port int) string

// RunStatuslineHook prints one status line. It never starts the worker and
// never checks UNIMEM_INTERNAL.
func RunStatuslineHook(handler StatuslineHandler) {
	in := ReadInput(os.Stdin, 500*time.Millisecond)
	fmt.Println(handler(in, GetWorkerPort()))
}
