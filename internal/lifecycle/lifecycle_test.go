package lifecycle_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/streamforge/sidecar/internal/lifecycle"
)

func TestDiscoverPort_PreferredFree_ReturnsPreferred(t *testing.T) {
	// Bind an ephemeral port first so we have a genuinely free "preferred" port.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	preferred := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	port, err := lifecycle.DiscoverPort(preferred, preferred, preferred)
	if err != nil {
		t.Fatalf("DiscoverPort: %v", err)
	}
	if port != preferred {
		t.Fatalf("expected preferred port %d, got %d", preferred, port)
	}
}

func TestDiscoverPort_PreferredTaken_ScansRange(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	taken := ln.Addr().(*net.TCPAddr).Port

	port, err := lifecycle.DiscoverPort(taken, taken, taken+50)
	if err != nil {
		t.Fatalf("DiscoverPort: %v", err)
	}
	if port == taken {
		t.Fatalf("expected a different port than the taken preferred one, got %d", port)
	}
	if port < taken || port > taken+50 {
		t.Fatalf("expected port within scan range, got %d", port)
	}
}

func TestDiscoverPort_RangeExhausted_FallsBackToOSAssigned(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	taken := ln.Addr().(*net.TCPAddr).Port

	// min==max==taken leaves nothing in range to scan, forcing the OS-assigned
	// fallback branch.
	port, err := lifecycle.DiscoverPort(taken, taken, taken)
	if err != nil {
		t.Fatalf("DiscoverPort: %v", err)
	}
	if port == 0 {
		t.Fatal("expected a concrete OS-assigned port, not 0")
	}
}

type fakeCloser struct {
	closed bool
}

func (f *fakeCloser) Close() error {
	f.closed = true
	return nil
}

func TestRun_ShutsDownOnContextCancel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{Handler: mux}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	closer := &fakeCloser{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- lifecycle.Run(ctx, nil, srv, port, closer) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if !closer.closed {
		t.Fatal("expected closer to be invoked during shutdown")
	}
}
