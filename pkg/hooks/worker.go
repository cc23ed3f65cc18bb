package hooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/GoSecreto/UniMem/internal/config"
	"github.com/GoSecreto/UniMem/pkg/models"
)

const (
	workerBinary   = "unimem"
	requestTimeout = 5 * time.Second
	startupTimeout = 5 * time.Second
)

// Client talks to a running worker.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for the worker on 127.0.0.1:port.
func NewClient(port int) *Client {
	return &Client{
		BaseURL: WorkerURL(port),
		HTTP:    &http.Client{Timeout: requestTimeout},
	}
}

// WorkerURL is the base URL of the worker listening on port.
func WorkerURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

// GetWorkerPort returns the port hooks use to reach the worker.
func GetWorkerPort() int {
	return config.GetWorkerPort()
}

// Healthy reports whether the worker answers its health check.
func (c *Client) Healthy(ctx context.Context) bool {
	var out map[string]string
	return c.get(ctx, "/api/health", &out) == nil
}

// Version returns the worker's version, or "" when it cannot be read.
func (c *Client) Version(ctx context.Context) string {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, "/api/version", &out); err != nil {
		return ""
	}
	return out.Version
}

// Hook posts one normalized event to the worker.
func (c *Client) Hook(ctx context.Context, hook models.HookType, ev models.HookEvent) (*models.HookResult, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/hooks/"+string(hook), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var res models.HookResult
	if err := c.do(req, &res); err != nil {
		return nil, fmt.Errorf("hook %s: %w", hook, err)
	}
	return &res, nil
}

// Status fetches GET /api/status for project. An empty project returns the
// global view.
func (c *Client) Status(ctx context.Context, project string, out interface{}) error {
	path := "/api/status"
	if project != "" {
		path += "?project=" + url.QueryEscape(project)
	}
	return c.get(ctx, path, out)
}

// Get decodes the JSON response of path into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.get(ctx, path, out)
}

// Post sends in as JSON to path and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("worker returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("worker returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// IsWorkerRunning reports whether a worker answers on port.
func IsWorkerRunning(port int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return NewClient(port).Healthy(ctx)
}

// EnsureWorkerRunning starts `unimem start` in the background when no worker
// answers on the configured port, then waits for it to become healthy.
func EnsureWorkerRunning() (int, error) {
	port := GetWorkerPort()
	if IsWorkerRunning(port) {
		return port, nil
	}

	bin := findWorkerBinary()
	if bin == "" {
		return port, fmt.Errorf("worker not running on port %d and %s binary not found", port, workerBinary)
	}
	cmd := exec.Command(bin, "start")
	cmd.Env = append(os.Environ(), "UNIMEM_INTERNAL=1")
	if err := cmd.Start(); err != nil {
		return port, fmt.Errorf("start worker: %w", err)
	}
	_ = cmd.Process.Release()

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		if IsWorkerRunning(port) {
			return port, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return port, fmt.Errorf("worker did not become healthy on port %d within %s", port, startupTimeout)
}

// findWorkerBinary looks next to the running executable first, then on PATH.
func findWorkerBinary() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), workerBinary)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	if p, err := exec.LookPath(workerBinary); err == nil {
		return p
	}
	return ""
}
