package pprof

import (
	"context"
	"net/http"
	"testing"
	"time"

	logx "planweave/pkg/logx"
)

func TestNewRejectsNonLoopback(t *testing.T) {
	t.Parallel()
	for _, addr := range []string{"0.0.0.0:6060", "192.168.1.10:6060", "no-port"} {
		if _, err := New(addr, logx.Nop()); err == nil {
			t.Errorf("New(%q) accepted", addr)
		}
	}
	for _, addr := range []string{"", "127.0.0.1:0", "localhost:0"} {
		if _, err := New(addr, logx.Nop()); err != nil {
			t.Errorf("New(%q): %v", addr, err)
		}
	}
}

func TestRunServesAndStops(t *testing.T) {
	t.Parallel()
	svc, err := New("127.0.0.1:0", logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	var addr string
	for addr == "" {
		select {
		case <-deadline:
			t.Fatal("server never bound")
		case <-time.After(10 * time.Millisecond):
			addr = svc.Addr()
		}
	}

	resp, err := http.Get("http://" + addr + "/debug/pprof/")
	if err != nil {
		t.Fatalf("pprof endpoint not reachable: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	if svc.Addr() != "" {
		t.Error("address still reported after stop")
	}
}
