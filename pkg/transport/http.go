// Package transport moves chunk bytes to and from cluster servers as plain
// HTTP PUT/GET against each server's chunk endpoint, through a retrying
// client so transient connection/timeout errors are retried automatically;
// HTTP error responses are forwarded as-is.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/server/balancer"
)

// HTTPTransport implements chunker.Transport over HTTP.
type HTTPTransport struct {
	client *retryablehttp.Client
}

// New creates an HTTPTransport with the given retry parameters.
func New(retryMax int, retryWaitMin, retryWaitMax time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: balancer.CreateRetryableClient(retryMax, retryWaitMin, retryWaitMax),
	}
}

// WriteChunk PUTs data to server's chunk endpoint at path.
func (t *HTTPTransport) WriteChunk(ctx context.Context, server, path string, data []byte) error {
	url := fmt.Sprintf("http://%s/chunk?path=%s", server, path)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("transport: write chunk: server %s returned %s", server, resp.Status)
	}
	return nil
}

// ReadChunk GETs the chunk at path from server.
func (t *HTTPTransport) ReadChunk(ctx context.Context, server, path string) ([]byte, error) {
	url := fmt.Sprintf("http://%s/chunk?path=%s", server, path)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport: read chunk: server %s returned %s", server, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// DeleteChunk deletes the chunk at path on server. A missing chunk is not
// treated as an error.
func (t *HTTPTransport) DeleteChunk(ctx context.Context, server, path string) error {
	url := fmt.Sprintf("http://%s/chunk?path=%s", server, path)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("transport: delete chunk: server %s returned %s", server, resp.Status)
	}
	return nil
}
