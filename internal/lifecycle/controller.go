// Package lifecycle starts the places listener at most once per process and
// answers whether a correctly identified instance is reachable.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zhouzirui/favorite-places/backend/internal/config"
)

const (
	DefaultRetryCount = config.DefaultProbeRetryCount
	DefaultRetryDelay = config.DefaultProbeRetryDelay

	// maxProbeBody bounds how much of the root response is read.
	maxProbeBody = 4 << 10
)

var (
	// ErrForeignService means the port answered, but not with our identity.
	ErrForeignService = errors.New("another service is running on the configured port")
	// ErrUnexpectedStatus means the service answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Controller owns the process-wide listener for the dispatcher.
type Controller struct {
	addr     string
	baseURL  string
	identity string
	handler  http.Handler
	client   *http.Client

	mu    sync.Mutex
	srv   *http.Server
	errCh chan error
}

// NewController creates a controller for handler on the configured address.
// A nil client uses a default http.Client.
func NewController(cfg config.ServerConfig, handler http.Handler, client *http.Client) *Controller {
	if client == nil {
		client = &http.Client{}
	}
	return &Controller{
		addr:     cfg.Addr,
		baseURL:  cfg.BaseURL,
		identity: cfg.Identity,
		handler:  handler,
		client:   client,
	}
}

// Start binds the listener unless this controller already serves or another
// correctly identified instance already answers on the port. A foreign
// service on the port is reported as ErrForeignService.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.srv != nil {
		return nil
	}

	running, err := c.IsRunning(ctx, false, 1, 0)
	if err != nil {
		return err
	}
	if running {
		log.Printf("[lifecycle] places service already running at %s", c.baseURL)
		return nil
	}

	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.addr, err)
	}

	srv := &http.Server{
		Handler:           c.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	c.srv = srv
	c.errCh = errCh
	log.Printf("[lifecycle] places service listening on %s", ln.Addr())
	return nil
}

// Serving reports whether this controller owns a running listener.
func (c *Controller) Serving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.srv != nil
}

// Done yields the listener's terminal error. It is nil when this controller
// did not start a listener.
func (c *Controller) Done() <-chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errCh
}

// Shutdown gracefully stops the listener this controller started.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	srv := c.srv
	c.srv = nil
	c.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown places service: %w", err)
	}
	log.Println("[lifecycle] places service stopped")
	return nil
}

// IsRunning probes the root route. It returns true only for a 2xx response
// whose body equals the identity. Connection failures are retried when wait
// is set, up to retryCount attempts spaced by retryDelay; without wait a
// single attempt is made. A foreign body or non-2xx status is returned as an
// error straight away.
func (c *Controller) IsRunning(ctx context.Context, wait bool, retryCount int, retryDelay time.Duration) (bool, error) {
	for attempt := 1; attempt <= retryCount; attempt++ {
		err := c.probe(ctx)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, ErrForeignService) || errors.Is(err, ErrUnexpectedStatus) {
			return false, err
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if !wait || attempt == retryCount {
			break
		}

		timer := time.NewTimer(retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	return false, nil
}

func (c *Controller) probe(ctx context.Context) error {
	body, status, err := c.get(ctx, c.baseURL)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, status, c.baseURL)
	}
	if body != c.identity {
		return fmt.Errorf("%w: %s", ErrForeignService, c.baseURL)
	}
	return nil
}

// Reset asks the running service to reload its catalog. Any failure is
// returned to the caller.
func (c *Controller) Reset(ctx context.Context) error {
	url := c.baseURL + "/reset/"
	_, status, err := c.get(ctx, url)
	if err != nil {
		return fmt.Errorf("reset places service: %w", err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("reset places service: %w: %d", ErrUnexpectedStatus, status)
	}
	return nil
}

func (c *Controller) get(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return "", 0, err
	}
	return string(body), resp.StatusCode, nil
}
