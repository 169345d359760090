// Package process talks to a JavaScript bundler and renderer running as a
// sidecar process. The sidecar serves HTTP/JSON on a unix socket; this
// package adapts it to bundler.Bundler and component.Renderer.
package process

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/slinkity/slinkity/bundler"
)

// SocketEnv is the environment variable the sidecar reads its socket path from.
const SocketEnv = "SLINKITY_SOCKET"

// Options configures Start.
type Options struct {
	// Command is the sidecar argv, e.g. {"bun", "run", "slinkity-sidecar.js"}.
	Command []string
	// Dir is the working directory; also the project root for module URLs.
	Dir string
	// Socket overrides the default socket path.
	Socket string
	// StartTimeout bounds how long Start waits for the socket. Defaults to 5s.
	StartTimeout time.Duration
	Logger       *slog.Logger
}

// Client is a connection to a sidecar. It implements bundler.Bundler.
type Client struct {
	cmd    *exec.Cmd
	socket string
	root   string
	http   *http.Client
	graph  *bundler.MemoryGraph
	logger *slog.Logger
}

var _ bundler.Bundler = (*Client)(nil)

// Start launches the sidecar and waits for its socket to appear.
func Start(ctx context.Context, opts Options) (*Client, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("missing sidecar command")
	}
	socket := opts.Socket
	if socket == "" {
		socket = filepath.Join(os.TempDir(), fmt.Sprintf("slinkity-%d.sock", os.Getpid()))
	}
	_ = os.Remove(socket)

	timeout := opts.StartTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	cmd := exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), SocketEnv+"="+socket)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start sidecar %s: %w", opts.Command[0], err)
	}
	if err := waitForSocket(socket, timeout); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	c := Dial(socket, opts.Dir, opts.Logger)
	c.cmd = cmd
	return c, nil
}

// Dial connects to a sidecar that is already listening on socket.
func Dial(socket, root string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}
	return &Client{
		socket: socket,
		root:   root,
		http:   &http.Client{Transport: transport},
		graph:  bundler.NewMemoryGraph(),
		logger: logger,
	}
}

// Stop kills the sidecar if this client started it.
func (c *Client) Stop() error {
	c.http.CloseIdleConnections()
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	err := c.cmd.Process.Kill()
	_ = os.Remove(c.socket)
	return err
}

func waitForSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for sidecar socket at %s", path)
}

// RemoteError is an error reported by the sidecar.
type RemoteError struct {
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

func (e *RemoteError) Error() string {
	if e.Stack == "" {
		return e.Message
	}
	return e.Message + "\n\nStack:\n" + e.Stack
}

type loadResponse struct {
	URL     string              `json:"url"`
	Exports map[string]any      `json:"exports"`
	Imports map[string][]string `json:"imports"`
	Error   *RemoteError        `json:"error"`
}

// SSRLoadModule implements bundler.Bundler. The sidecar reports the import
// edges it discovered, which feed ModuleGraph.
func (c *Client) SSRLoadModule(ctx context.Context, path string) (*bundler.Module, error) {
	var res loadResponse
	if err := c.postJSON(ctx, "/load", map[string]any{"path": path}, &res); err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load module %s: %w", path, res.Error)
	}
	for from, to := range res.Imports {
		c.graph.AddImport(from, to...)
	}
	url := res.URL
	if url == "" {
		url = c.URLFor(path)
	}
	return &bundler.Module{Path: path, URL: url, Exports: res.Exports}, nil
}

// ModuleGraph implements bundler.Bundler.
func (c *Client) ModuleGraph() bundler.Graph {
	return c.graph
}

// URLFor implements bundler.Bundler using the same root-relative scheme as
// the sidecar's dev server.
func (c *Client) URLFor(path string) string {
	rel, err := filepath.Rel(c.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "/@fs" + filepath.ToSlash(path)
	}
	return "/" + filepath.ToSlash(rel)
}

// ClientURL implements bundler.Bundler.
func (c *Client) ClientURL(ctx context.Context, path string) (string, error) {
	var res struct {
		URL   string       `json:"url"`
		Error *RemoteError `json:"error"`
	}
	if err := c.postJSON(ctx, "/client-url", map[string]any{"path": path}, &res); err != nil {
		return "", err
	}
	if res.Error != nil {
		return "", res.Error
	}
	return res.URL, nil
}

// TransformIndexHTML implements bundler.Bundler.
func (c *Client) TransformIndexHTML(ctx context.Context, url, html string) (string, error) {
	var res struct {
		HTML  string       `json:"html"`
		Error *RemoteError `json:"error"`
	}
	if err := c.postJSON(ctx, "/transform", map[string]any{"url": url, "html": html}, &res); err != nil {
		return "", err
	}
	if res.Error != nil {
		return "", res.Error
	}
	return res.HTML, nil
}

// Invalidate implements bundler.Bundler. Failures are logged; the next load
// simply sees the stale module.
func (c *Client) Invalidate(url string) {
	c.graph.Remove(url)
	var res struct {
		Error *RemoteError `json:"error"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.postJSON(ctx, "/invalidate", map[string]any{"url": url}, &res)
	if err == nil && res.Error != nil {
		err = res.Error
	}
	if err != nil {
		c.logger.Warn("sidecar invalidate failed", "url", url, "error", err)
	}
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://sidecar"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sidecar %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 && resp.Header.Get("Content-Type") != "application/json" {
		return fmt.Errorf("sidecar %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}
