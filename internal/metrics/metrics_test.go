package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveKVOpIncrementsCounter(t *testing.T) {
	m := New()
	m.ObserveKVOp("get", nil)
	m.ObserveKVOp("get", errors.New("boom"))

	body := scrape(t, m)
	assert.Contains(t, body, `kvsfs_kvs_ops_total{op="get",result="ok"} 1`)
	assert.Contains(t, body, `kvsfs_kvs_ops_total{op="get",result="error"} 1`)
}

func TestObserveCFSOpRecordsLatency(t *testing.T) {
	m := New()
	start := time.Now().Add(-5 * time.Millisecond)
	m.ObserveCFSOp("write", start, nil)

	body := scrape(t, m)
	assert.Contains(t, body, `kvsfs_cfs_ops_total{op="write",result="ok"} 1`)
	assert.Contains(t, body, "kvsfs_cfs_op_duration_seconds")
}

func TestObserveDSIOLatency(t *testing.T) {
	m := New()
	m.ObserveDSIOLatency("READ", 2*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `kvsfs_dsal_io_op_duration_seconds_count{io_type="READ"} 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestServeShutsDownOnContextCancel(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
