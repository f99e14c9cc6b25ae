package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/s3invsync/s3invsync/internal/debug"
)

// createGlobalContext returns a context that is cancelled as soon as the
// process receives SIGINT or SIGTERM, so that in-flight downloads, locks,
// and GC tasks can observe cancellation and shut down cleanly instead of
// leaving partial temp files behind.
func createGlobalContext(stderr io.Writer) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 1)
	go cleanupHandler(ch, cancel, stderr)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	return ctx
}

func cleanupHandler(c <-chan os.Signal, cancel context.CancelFunc, stderr io.Writer) {
	s := <-c
	debug.Log("signal %v received, cancelling", s)
	_, _ = fmt.Fprintf(stderr, "\rsignal %v received, cleaning up\n", s)
	cancel()
}
