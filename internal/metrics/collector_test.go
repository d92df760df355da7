package bgpmetrics_test

import (
	"net/netip"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	bgpmetrics "github.com/trungkstn/bgpfsmd/internal/metrics"
	"github.com/trungkstn/bgpfsmd/internal/peer"
)

func testPeer() netip.Addr {
	return netip.MustParseAddr("192.0.2.1")
}

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := bgpmetrics.NewCollector(reg)

	if c.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if c.StateTransitions == nil {
		t.Error("StateTransitions is nil")
	}
	if c.Exceptions == nil {
		t.Error("Exceptions is nil")
	}
	if c.CurrentState == nil {
		t.Error("CurrentState is nil")
	}

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestSessionCreatedDestroyed(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := bgpmetrics.NewCollector(reg)
	addr := testPeer()

	c.SessionCreated(addr)
	c.SessionCreated(addr)

	if val := gaugeValue(t, c.Sessions); val != 2 {
		t.Errorf("Sessions after two SessionCreated = %v, want 2", val)
	}

	c.SessionDestroyed(addr)

	if val := gaugeValue(t, c.Sessions); val != 1 {
		t.Errorf("Sessions after SessionDestroyed = %v, want 1", val)
	}
}

func TestStateTransition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := bgpmetrics.NewCollector(reg)
	addr := testPeer()

	c.StateTransition(addr, peer.Primary, peer.StateIdle, peer.StateConnect)

	val := counterValue(t, c.StateTransitions,
		addr.String(), peer.Primary.String(), peer.StateIdle.String(), peer.StateConnect.String())
	if val != 1 {
		t.Errorf("StateTransitions(Idle->Connect) = %v, want 1", val)
	}

	old := gaugeVecValue(t, c.CurrentState, addr.String(), peer.Primary.String(), peer.StateIdle.String())
	if old != 0 {
		t.Errorf("CurrentState(Idle) after transition away = %v, want 0", old)
	}
	cur := gaugeVecValue(t, c.CurrentState, addr.String(), peer.Primary.String(), peer.StateConnect.String())
	if cur != 1 {
		t.Errorf("CurrentState(Connect) after transition = %v, want 1", cur)
	}
}

func TestExceptionReported(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := bgpmetrics.NewCollector(reg)
	addr := testPeer()

	c.ExceptionReported(addr, peer.ExceptionNOMRecv)
	c.ExceptionReported(addr, peer.ExceptionNOMRecv)

	val := counterValue(t, c.Exceptions, addr.String(), peer.ExceptionNOMRecv.String())
	if val != 2 {
		t.Errorf("Exceptions(NOMRecv) = %v, want 2", val)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func gaugeVecValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()
	g, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
