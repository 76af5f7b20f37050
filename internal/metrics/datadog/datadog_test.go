package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"badgeetl/internal/metrics"
)

func TestNewBackendRequiresAddr(t *testing.T) {
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("expected error for empty Addr")
	}
}

func TestLabelsToTags(t *testing.T) {
	got := labelsToTags(metrics.Labels{"step": "export", "job": "badges_cleaning"})
	if strings.Join(got, ",") != "job:badges_cleaning,step:export" {
		t.Fatalf("tags=%v", got)
	}
	if labelsToTags(nil) != nil {
		t.Fatal("nil labels should give nil tags")
	}
}

func TestBackendSendsOverUDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp listen: %v", err)
	}
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), Namespace: "badges."})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.RecordsTotal, 7, metrics.Labels{"kind": metrics.KindExported})
	b.ObserveHistogram(metrics.StepDuration, 0.25, metrics.Labels{"step": "export"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var got strings.Builder
	buf := make([]byte, 4096)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !strings.Contains(got.String(), "badges_records_total") || !strings.Contains(got.String(), "badges_step_duration_seconds") {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read: %v (got %q)", err, got.String())
		}
		got.Write(buf[:n])
	}
	if !strings.Contains(got.String(), "badges.badges_records_total:7|c|#kind:exported") {
		t.Fatalf("payload=%q", got.String())
	}
}

func TestNilClientIsNoop(t *testing.T) {
	b := &Backend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
