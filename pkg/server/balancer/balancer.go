// Package balancer implements the head server's view of the cluster-server
// pool: which servers are reachable candidates for chunk replica placement
// (BackendManager, in backend.go) and a generic parallel-request-with-
// cancel-on-success fan-out used to race chunk reads across replicas
// (ExecuteBackendRequests, below).
package balancer

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// RequestResult is one cluster server's outcome from a fanned-out request
// — one chunk read attempt against one replica's host.
type RequestResult[T any] struct {
	Backend   string
	Data      T
	Status    int
	Error     error
	CtxCancel context.CancelFunc // set only when the caller must release this request's resources itself
}

// BackendRequestFunc issues one request against one cluster server and
// reports its outcome.
type BackendRequestFunc[T any] func(ctx context.Context, backend string) (T, int, error)

// ExecuteBackendRequests fans requestFunc out across backends in parallel
// and streams results back on the returned channel, closed once every
// request has completed. With cancelOnSuccess, the first HTTP-200 result
// cancels every request still in flight — used to race a chunk read across
// its replicas and stop once one answers, instead of waiting for or paying
// for the slower ones.
//
//nolint:govet,cyclop // cancel is intentionally not called on all paths to avoid canceling streaming downloads
func ExecuteBackendRequests[T any](
	ctx context.Context,
	backends []string,
	requestTimeout time.Duration,
	requestFunc BackendRequestFunc[T],
	cancelOnSuccess bool,
) <-chan RequestResult[T] {
	results := make(chan RequestResult[T], len(backends))

	if len(backends) == 0 {
		close(results)
		return results
	}

	var waitGroup sync.WaitGroup
	cancelCtx, cancel := context.WithCancel(ctx)

	for _, backend := range backends {
		waitGroup.Add(1)
		go func(url string) {
			defer waitGroup.Done()

			reqCtx, reqCancel := context.WithTimeout(cancelCtx, requestTimeout)

			data, status, err := requestFunc(reqCtx, url)
			result := RequestResult[T]{
				Backend:   url,
				Data:      data,
				Status:    status,
				Error:     err,
				CtxCancel: reqCancel,
			}

			// a failed or non-200 result is done with its context immediately;
			// a successful one hands the cancel func to the caller via the result
			if err != nil || status != http.StatusOK {
				reqCancel()
				result.CtxCancel = nil
			}

			select {
			case results <- result:
				if cancelOnSuccess && err == nil && status == http.StatusOK {
					cancel()
				}
			case <-cancelCtx.Done():
				if result.CtxCancel != nil {
					result.CtxCancel()
				}
			}
		}(backend)
	}

	go func() {
		waitGroup.Wait()
		close(results)
		// cancel() is deliberately not called here: a caller may still be
		// reading through a successful result's response, and its CtxCancel
		// is that caller's responsibility, not this fan-out's.
	}()

	return results
}
