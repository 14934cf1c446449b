package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/net/netutil"

	"github.com/janelia-flyem/volrender/volrender"
)

// Listen opens the bind target.  A target made only of digits is a TCP port on
// all interfaces; anything else is the path of a Unix domain socket, and any file
// already at that path is removed first.  If max is positive, the listener
// accepts at most max concurrent connections.
func Listen(target string, max int) (net.Listener, error) {
	var ln net.Listener
	if isPort(target) {
		port, err := strconv.Atoi(target)
		if err != nil || port > 65535 {
			return nil, fmt.Errorf("bad TCP port %q", target)
		}
		if ln, err = net.Listen("tcp", fmt.Sprintf(":%d", port)); err != nil {
			return nil, err
		}
		volrender.Infof("Web server listening on port %d ...\n", port)
	} else {
		if target == "" {
			return nil, fmt.Errorf("no bind target given")
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot remove existing socket %q: %v", target, err)
		}
		var err error
		if ln, err = net.Listen("unix", target); err != nil {
			return nil, err
		}
		volrender.Infof("Web server listening on Unix socket %s ...\n", target)
	}
	if max > 0 {
		volrender.Infof("Limiting server to %d concurrent connections\n", max)
		ln = netutil.LimitListener(ln, max)
	}
	return ln, nil
}

func isPort(target string) bool {
	if target == "" {
		return false
	}
	for _, c := range target {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Serve handles HTTP requests on ln until ctx is cancelled, then stops accepting
// connections and waits up to timeout for in-flight requests.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	srv := &http.Server{
		Handler:     handler,
		ReadTimeout: 1 * time.Hour,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	volrender.Infof("Shutting down web server, waiting up to %s for requests...\n", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return shutdownErr
}
