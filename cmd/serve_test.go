package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShutdownGracefullyDrainsInFlightRequests(t *testing.T) {
	release := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	})}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln) //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	drained := make(chan struct{})
	go func() {
		shutdownGracefully(ctx, srv, 5*time.Second)
		close(drained)
	}()

	respErr := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			resp.Body.Close()
		}
		respErr <- err
	}()

	// Let the request reach the handler, then trigger shutdown while it is
	// still in flight. The drain must wait for the handler, not cut the
	// connection because the triggering context is already canceled.
	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-respErr, "in-flight request must complete during the drain")

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not finish")
	}
}
