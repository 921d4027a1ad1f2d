package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wrtd/internal/events"
	"grimm.is/wrtd/internal/logging"
)

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordScan(0.1, errors.New("x"))
		r.RecordTransition("claimed")
		r.SetOwned(map[string]int{"wan": 1}, 2)
		r.ManagerUp()
		r.ManagerDown()
		r.RecordManagerError("dns", "dispose")
	})
}

func TestRecordScan(t *testing.T) {
	r := New()
	r.RecordScan(0.001, nil)
	r.RecordScan(0.002, errors.New("netlink"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ScansTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ScanErrors))
}

func TestSetOwnedReplaces(t *testing.T) {
	r := New()
	r.SetOwned(map[string]int{"wan": 1}, 2)
	r.SetOwned(map[string]int{"lan": 3}, 0)

	assert.Equal(t, 1, testutil.CollectAndCount(r.InterfacesOwned))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.InterfacesOwned.WithLabelValues("lan")))
	assert.Zero(t, testutil.ToFloat64(r.InterfacesUnmanaged))
}

func TestManagerGauges(t *testing.T) {
	r := New()
	r.ManagerUp()
	r.ManagerUp()
	r.ManagerDown()
	r.RecordManagerError("dns", "init")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.ManagersActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ManagerErrors.WithLabelValues("dns", "init")))
}

func TestCollectorCountsEvents(t *testing.T) {
	r := New()
	hub := events.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	NewCollector(r, hub, logging.Discard()).Start(ctx)
	hub.EmitManagerInit("traffic", true)
	hub.EmitInterface(events.EventInterfaceClaimed, "eth0", "wan")
	hub.EmitInterface(events.EventInterfaceClaimed, "wl0", "lan")

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(r.EventsTotal.WithLabelValues(string(events.EventInterfaceClaimed))) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.EventsTotal.WithLabelValues(string(events.EventManagerInit))))
}

func TestServer(t *testing.T) {
	r := New()
	r.RecordTransition("claimed")

	srv, err := Listen("127.0.0.1:0", r, logging.Discard())
	require.NoError(t, err)
	defer srv.Shutdown(time.Second)

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `wrtd_interface_transitions_total{kind="claimed"} 1`))
}

func TestGathererExposesDaemonMetrics(t *testing.T) {
	r := New()
	r.SetOwned(map[string]int{"wan": 1, "bridge": 2}, 1)

	n, err := testutil.GatherAndCount(r.Gatherer(), "wrtd_interfaces_tracked", "wrtd_interfaces_unmanaged")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
