package balancer

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/log"
	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultHealthCheckInterval = 5 * time.Second
	defaultHealthCheckTimeout  = 5 * time.Second
	maxConsecutiveFailures     = 3
)

// BackendManager tracks the pool of cluster servers the head server may
// place chunk replicas on: which ones answer their /node/info poll, how
// much storage each reports free, and how long each took to answer.
type BackendManager struct {
	backends            map[string]*models.BackendStatus
	mu                  sync.RWMutex
	client              *http.Client
	healthCheckInterval time.Duration
	healthCheckTimeout  time.Duration
	stopCh              chan struct{}
	wg                  sync.WaitGroup
}

// NewBackendManager creates a manager that will poll each of clusterServerURLs'
// /node/info endpoint on healthCheckInterval, each poll bounded by healthCheckTimeout.
func NewBackendManager(clusterServerURLs []string, healthCheckInterval, healthCheckTimeout time.Duration) *BackendManager {
	if healthCheckInterval <= 0 {
		healthCheckInterval = defaultHealthCheckInterval
	}
	if healthCheckTimeout <= 0 {
		healthCheckTimeout = defaultHealthCheckTimeout
	}

	backends := make(map[string]*models.BackendStatus, len(clusterServerURLs))
	for _, url := range clusterServerURLs {
		backends[url] = &models.BackendStatus{
			URL:    url,
			Online: true, // assume reachable until the first poll proves otherwise
		}
	}

	return &BackendManager{
		backends:            backends,
		client:              &http.Client{Timeout: healthCheckTimeout},
		healthCheckInterval: healthCheckInterval,
		healthCheckTimeout:  healthCheckTimeout,
		stopCh:              make(chan struct{}),
	}
}

// Start runs one synchronous poll of every cluster server, then begins
// the background polling loop.
func (bm *BackendManager) Start() {
	bm.checkAllBackends()

	bm.wg.Add(1)
	go bm.healthCheckLoop()

	log.Info().
		Int("cluster_server_count", len(bm.backends)).
		Dur("interval", bm.healthCheckInterval).
		Msg("cluster server poller started")
}

// Stop halts the background polling loop and waits for it to exit.
func (bm *BackendManager) Stop() {
	close(bm.stopCh)
	bm.wg.Wait()
	log.Info().Msg("cluster server poller stopped")
}

// MarkBackendDead immediately removes a cluster server from the candidate
// pool, bypassing the poll interval. A later successful poll puts it back.
func (bm *BackendManager) MarkBackendDead(backendURL string, err error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	status, exists := bm.backends[backendURL]
	if !exists {
		return
	}

	if status.Online {
		log.Warn().
			Str("cluster_server", backendURL).
			Err(err).
			Msg("cluster server dropped from candidate pool after a failed chunk request")
	}

	status.Online = false
	status.ConsecFails = maxConsecutiveFailures
	status.LastError = err.Error()
	status.LastCheck = time.Now()
}

// GetOnlineBackends returns reachable cluster servers ordered by available
// storage (most free space first, ties broken by lower poll latency) — the
// candidate pool the head server hands to chunker.SplitAndStore, which
// shuffles it before picking replicas.
func (bm *BackendManager) GetOnlineBackends() []string {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	type backendInfo struct {
		url       string
		available uint64
		latency   int64
	}

	online := make([]backendInfo, 0, len(bm.backends))
	for url, status := range bm.backends {
		if status.Online {
			online = append(online, backendInfo{
				url:       url,
				available: status.AvailableSpace,
				latency:   status.Latency,
			})
		}
	}

	// Sort by available space descending, then by latency ascending
	sort.Slice(online, func(i, j int) bool {
		if online[i].available != online[j].available {
			return online[i].available > online[j].available
		}
		return online[i].latency < online[j].latency
	})

	urls := make([]string, len(online))
	for i, b := range online {
		urls[i] = b.url
	}

	return urls
}

// GetBackendForUpload returns the single online cluster server with the
// most available space that can still hold a chunk replica of chunkSize
// bytes. Useful when only one replacement replica is needed, as opposed to
// GetOnlineBackends' full ranked pool used for initial placement.
func (bm *BackendManager) GetBackendForUpload(chunkSize int64) (string, error) {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	var bestServer string
	var maxAvailable uint64

	for url, status := range bm.backends {
		if !status.Online {
			continue
		}

		if chunkSize > 0 && status.AvailableSpace < uint64(chunkSize) {
			log.Debug().
				Str("cluster_server", url).
				Int64("chunk_size", chunkSize).
				Uint64("available", status.AvailableSpace).
				Msg("cluster server does not have room for this chunk replica")
			continue
		}

		if status.AvailableSpace > maxAvailable {
			maxAvailable = status.AvailableSpace
			bestServer = url
		}
	}

	if bestServer == "" {
		return "", ErrNoBackendAvailable
	}

	return bestServer, nil
}

// GetAllBackendStatus returns the candidate-pool status of every cluster
// server, as served by the head server's /candidates endpoint.
func (bm *BackendManager) GetAllBackendStatus() []models.BackendStatus {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	statuses := make([]models.BackendStatus, 0, len(bm.backends))
	for _, status := range bm.backends {
		statuses = append(statuses, *status)
	}

	return statuses
}

// GetBackendStatus returns the candidate-pool status of one cluster server.
func (bm *BackendManager) GetBackendStatus(backendURL string) (*models.BackendStatus, bool) {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	status, exists := bm.backends[backendURL]
	if !exists {
		return nil, false
	}

	// return a copy so the caller can't mutate state behind the lock
	statusCopy := *status
	return &statusCopy, true
}

// HasOnlineBackends reports whether at least one cluster server is
// currently eligible to receive a chunk replica.
func (bm *BackendManager) HasOnlineBackends() bool {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	for _, status := range bm.backends {
		if status.Online {
			return true
		}
	}
	return false
}

// AllBackendURLs returns every configured cluster server, online or not.
func (bm *BackendManager) AllBackendURLs() []string {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	urls := make([]string, 0, len(bm.backends))
	for url := range bm.backends {
		urls = append(urls, url)
	}
	return urls
}

// BackendCount returns the total number of configured cluster servers.
func (bm *BackendManager) BackendCount() int {
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	return len(bm.backends)
}

// healthCheckLoop polls every cluster server's /node/info on healthCheckInterval.
func (bm *BackendManager) healthCheckLoop() {
	defer bm.wg.Done()

	ticker := time.NewTicker(bm.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-bm.stopCh:
			return
		case <-ticker.C:
			bm.checkAllBackends()
		}
	}
}

// checkAllBackends polls every cluster server concurrently.
func (bm *BackendManager) checkAllBackends() {
	bm.mu.RLock()
	urls := make([]string, 0, len(bm.backends))
	for url := range bm.backends {
		urls = append(urls, url)
	}
	bm.mu.RUnlock()

	var waitGroup sync.WaitGroup
	for _, url := range urls {
		waitGroup.Add(1)
		go func(backendURL string) {
			defer waitGroup.Done()
			bm.checkBackend(backendURL)
		}(url)
	}
	waitGroup.Wait()
}

// checkBackend polls a single cluster server's /node/info and updates its
// candidate-pool entry from the response.
func (bm *BackendManager) checkBackend(backendURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), bm.healthCheckTimeout)
	defer cancel()

	start := time.Now()
	nodeInfo, err := bm.fetchNodeInfo(ctx, backendURL)
	latency := time.Since(start)

	bm.mu.Lock()
	defer bm.mu.Unlock()

	status, exists := bm.backends[backendURL]
	if !exists {
		return
	}

	status.LastCheck = time.Now()
	status.Latency = latency.Milliseconds()

	if err != nil {
		status.LastError = err.Error()

		// only a timeout/connection error counts against the threshold; an
		// HTTP error status means the server answered but rejected the poll
		if isTimeoutOrConnectionError(err) {
			status.ConsecFails++
			if status.ConsecFails >= maxConsecutiveFailures {
				if status.Online {
					log.Warn().
						Str("cluster_server", backendURL).
						Int("consecutive_failures", status.ConsecFails).
						Err(err).
						Msg("cluster server dropped from candidate pool")
				}
				status.Online = false
			}
		}
		return
	}

	wasOffline := !status.Online
	status.Online = true
	status.ConsecFails = 0
	status.LastError = ""
	status.NodeInfo = nodeInfo
	status.AvailableSpace = nodeInfo.Storage.Available

	if wasOffline {
		log.Info().
			Str("cluster_server", backendURL).
			Int64("latency_ms", status.Latency).
			Msg("cluster server back online, re-added to candidate pool")
	}
}

// fetchNodeInfo polls a cluster server's /node/info endpoint. A bare
// host:port entry is polled over plain http.
func (bm *BackendManager) fetchNodeInfo(ctx context.Context, backendURL string) (*models.NodeInfo, error) {
	target := backendURL
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+"/node/info", nil)
	if err != nil {
		return nil, err
	}

	resp, err := bm.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close /node/info response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{StatusCode: resp.StatusCode}
	}

	var nodeInfo models.NodeInfo
	if err := json.NewDecoder(resp.Body).Decode(&nodeInfo); err != nil {
		return nil, err
	}

	return &nodeInfo, nil
}

// isTimeoutOrConnectionError reports whether err means the cluster server
// could not be reached at all (timeout, refused connection, DNS failure) as
// opposed to a response body that failed to decode; only the former counts
// against a server's consecutive-failure threshold, since the latter means
// the server answered.
func isTimeoutOrConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// BackendError is returned when a cluster server answers a /node/info poll
// with a non-200 status.
type BackendError struct {
	StatusCode int
}

func (e *BackendError) Error() string {
	return "cluster server returned status " + http.StatusText(e.StatusCode)
}

// CreateRetryableClient builds the HTTP client used for chunk transfer
// requests against cluster servers.
func CreateRetryableClient(retryMax int, retryWaitMin, retryWaitMax time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = retryWaitMin
	client.RetryWaitMax = retryWaitMax
	client.Logger = nil // disable retryablehttp's own logging; pkg/log covers it
	client.CheckRetry = customRetryPolicy
	return client
}

// customRetryPolicy only retries on connection/timeout errors, never on an
// HTTP status a cluster server actually returned, so chunk write/read
// failures (404 on a missing replica, 500 on a storage error) are forwarded
// to the caller as-is instead of being retried into a generic timeout.
func customRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if resp != nil {
		return false, nil
	}

	// only retry if there's a connection/timeout error (no response received)
	// We intentionally return nil error here because retryablehttp will handle
	// the retry or final error reporting. The error is preserved internally.
	if err != nil {
		return true, nil //nolint:nilerr // intentionally returning nil - retryablehttp handles the error
	}

	return false, nil
}
