package hosting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"sciwi/internal/logging"
)

// Host is the static HTTP listener serving files from a store directory.
// It only reads from the directory; the Store owns it.
type Host struct {
	port    int
	verbose bool
	fs      afero.Fs
	logger  *logging.Logger
	metrics *Metrics

	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

func newHost(port int, verbose bool, fs afero.Fs, logger *logging.Logger, metrics *Metrics) *Host {
	return &Host{
		port:    port,
		verbose: verbose,
		fs:      fs,
		logger:  logger,
		metrics: metrics,
	}
}

// Start binds the listener and begins serving dir. The socket is bound
// before Start returns. Starting a running host is a no-op.
func (h *Host) Start(dir string) error {
	if h.ln != nil {
		return nil
	}

	ln, err := net.Listen("tcp", ":"+strconv.Itoa(h.port))
	if err != nil {
		return fmt.Errorf("%w: port %d: %w", ErrListenerBind, h.port, err)
	}

	h.srv = &http.Server{
		Handler:           h.Handler(dir),
		ReadHeaderTimeout: 5 * time.Second,
	}
	h.ln = ln
	h.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("file host stopped unexpectedly", map[string]any{"port": h.port}, err)
		}
	}(h.srv, h.done)

	if h.verbose {
		h.logger.Info("file host started", map[string]any{"addr": ln.Addr().String()})
	}
	return nil
}

// Running reports whether the listener is bound.
func (h *Host) Running() bool {
	return h.ln != nil
}

// Addr returns a dialable host:port for the bound listener. Wildcard
// addresses are reported as 127.0.0.1.
func (h *Host) Addr() string {
	if h.ln == nil {
		return ""
	}
	tcp, ok := h.ln.Addr().(*net.TCPAddr)
	if !ok {
		return h.ln.Addr().String()
	}
	ip := tcp.IP
	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4(127, 0, 0, 1)
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(tcp.Port))
}

// Stop closes the listener, draining in-flight requests until ctx expires.
// Stopping a host that is not running is a no-op.
func (h *Host) Stop(ctx context.Context) error {
	if h.ln == nil {
		return nil
	}

	err := h.srv.Shutdown(ctx)
	if err != nil {
		err = errors.Join(err, h.srv.Close())
	}
	<-h.done

	h.srv, h.ln, h.done = nil, nil, nil
	if h.verbose {
		h.logger.Info("file host stopped", map[string]any{"port": h.port})
	}
	return err
}

// Handler returns the router for dir wrapped in the middleware chain.
func (h *Host) Handler(dir string) http.Handler {
	r := mux.NewRouter().SkipClean(true)
	r.Handle("/{name}", h.serveFile(dir)).Methods(http.MethodGet)

	// Wrap middleware: requestID -> security headers -> observe -> router
	var handler http.Handler = r
	handler = observeMiddleware(h.metrics, h.logger, h.verbose)(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (h *Host) serveFile(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if !validName(name) {
			http.NotFound(w, r)
			return
		}

		f, err := h.fs.Open(filepath.Join(dir, name))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		// ServeContent resolves registered extensions itself; sniff the rest.
		if mime.TypeByExtension(filepath.Ext(name)) == "" {
			if mt, err := mimetype.DetectReader(f); err == nil {
				w.Header().Set("Content-Type", mt.String())
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				http.Error(w, "read error", http.StatusInternalServerError)
				return
			}
		}

		http.ServeContent(w, r, name, info.ModTime(), f)
		h.metrics.RecordServe(info.Size())
	})
}
