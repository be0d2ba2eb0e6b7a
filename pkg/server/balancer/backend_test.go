package balancer

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
)

var errTestForced = errors.New("forced dead for test")

func nodeInfoServer(t *testing.T, available uint64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := models.NodeInfo{Storage: models.StorageInfo{Available: available, Total: available * 2}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	}))
}

func TestBackendManagerTracksOnlineBackends(t *testing.T) {
	srv := nodeInfoServer(t, 1<<30)
	defer srv.Close()

	bm := NewBackendManager([]string{srv.URL}, 50*time.Millisecond, 500*time.Millisecond)
	bm.Start()
	defer bm.Stop()

	require.Eventually(t, func() bool {
		return len(bm.GetOnlineBackends()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBackendManagerMarksDeadOnUnreachable(t *testing.T) {
	bm := NewBackendManager([]string{"http://127.0.0.1:1"}, 50*time.Millisecond, 200*time.Millisecond)
	bm.Start()
	defer bm.Stop()

	require.Eventually(t, func() bool {
		return !bm.HasOnlineBackends()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGetBackendForUploadPrefersMostAvailableSpace(t *testing.T) {
	small := nodeInfoServer(t, 1<<20)
	defer small.Close()
	big := nodeInfoServer(t, 1<<30)
	defer big.Close()

	bm := NewBackendManager([]string{small.URL, big.URL}, 50*time.Millisecond, 500*time.Millisecond)
	bm.Start()
	defer bm.Stop()

	require.Eventually(t, func() bool {
		return len(bm.GetOnlineBackends()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	best, err := bm.GetBackendForUpload(1024)
	require.NoError(t, err)
	require.Equal(t, big.URL, best)
}

func TestMarkBackendDeadImmediate(t *testing.T) {
	srv := nodeInfoServer(t, 1<<20)
	defer srv.Close()

	bm := NewBackendManager([]string{srv.URL}, time.Hour, time.Second)
	bm.Start()
	defer bm.Stop()

	require.Eventually(t, func() bool {
		return len(bm.GetOnlineBackends()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	bm.MarkBackendDead(srv.URL, errTestForced)
	require.False(t, bm.HasOnlineBackends())
}
