package hosting

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"sciwi/internal/logging"
)

// HostConfig configures a Service. It is not modified after New.
type HostConfig struct {
	// Port the listener binds on all interfaces. 0 picks a free port.
	Port int
	// BaseURL is the externally reachable prefix files resolve under. When
	// empty it is derived from the bound listener address.
	BaseURL string
	// Verbose logs every published file and every request.
	Verbose bool
}

// State is the lifecycle state of a Service.
type State int

const (
	StateUninitialized State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PublishedFile describes one publish result.
type PublishedFile struct {
	FileName string
	FullPath string
	URL      string
}

// Service combines a Store and a Host into the publish operations. It
// starts itself lazily on the first publish.
type Service struct {
	mu sync.Mutex

	cfg     HostConfig
	fs      afero.Fs
	logger  *logging.Logger
	metrics *Metrics

	state   State
	store   *Store
	host    *Host
	baseURL string
}

// Option customizes a Service.
type Option func(*Service)

// WithFs sets the filesystem used for the store, for sources and for serving.
func WithFs(fs afero.Fs) Option {
	return func(s *Service) { s.fs = fs }
}

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. Nothing touches the filesystem or network until
// Start or the first publish.
func New(cfg HostConfig, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		fs:      afero.NewOsFs(),
		logger:  logging.Default(),
		metrics: &Metrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store = NewStore(s.fs)
	s.host = newHost(cfg.Port, cfg.Verbose, s.fs, s.logger, s.metrics)
	return s
}

// Start creates the transient directory and binds the listener. Starting a
// running service is a no-op. A stopped service starts with a new directory.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start()
}

func (s *Service) start() error {
	if s.state == StateRunning {
		return nil
	}

	dir, err := s.store.EnsureDir()
	if err != nil {
		return err
	}
	if err := s.host.Start(dir); err != nil {
		_ = s.store.Destroy()
		return err
	}

	s.baseURL = strings.TrimSuffix(s.cfg.BaseURL, "/")
	if s.baseURL == "" {
		s.baseURL = "http://" + s.host.Addr()
	}
	s.state = StateRunning

	s.log("file service started", map[string]any{"dir": dir, "base_url": s.baseURL})
	return nil
}

// PublishFile copies the file at path into the store and returns its URL.
func (s *Service) PublishFile(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	// Fail before starting anything when the source is missing.
	info, err := s.fs.Stat(path)
	if err != nil {
		s.metrics.RecordPublishError()
		return "", fmt.Errorf("%w: %w", ErrSourceNotFound, err)
	}
	if info.IsDir() {
		s.metrics.RecordPublishError()
		return "", fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, path)
	}

	if err := s.start(); err != nil {
		s.metrics.RecordPublishError()
		return "", err
	}

	name, err := s.store.UniqueName(filepath.Ext(path))
	if err != nil {
		s.metrics.RecordPublishError()
		return "", err
	}
	n, err := s.store.CopyFile(path, name)
	if err != nil {
		s.metrics.RecordPublishError()
		return "", err
	}

	pf := s.published(name)
	s.metrics.RecordPublish(n, time.Since(start))
	s.log("serving new file", map[string]any{"source": path, "url": pf.URL})
	return pf.URL, nil
}

// PublishBuffer writes data into the store and returns its URL. ext may
// be empty, ".png" or "png".
func (s *Service) PublishBuffer(data []byte, ext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	ext = NormalizeExtension(ext)
	if strings.ContainsAny(ext, `/\`) {
		s.metrics.RecordPublishError()
		return "", fmt.Errorf("%w: extension %q", ErrInvalidName, ext)
	}

	if err := s.start(); err != nil {
		s.metrics.RecordPublishError()
		return "", err
	}

	name, err := s.store.UniqueName(ext)
	if err != nil {
		s.metrics.RecordPublishError()
		return "", err
	}
	if err := s.store.WriteBuffer(data, name); err != nil {
		s.metrics.RecordPublishError()
		return "", err
	}

	pf := s.published(name)
	s.metrics.RecordPublish(int64(len(data)), time.Since(start))
	s.log("serving new buffer", map[string]any{"bytes": len(data), "url": pf.URL})
	return pf.URL, nil
}

func (s *Service) published(name string) PublishedFile {
	return PublishedFile{
		FileName: name,
		FullPath: s.store.Path(name),
		URL:      s.baseURL + "/" + name,
	}
}

// Stop closes the listener, then removes the directory and everything in
// it. Stopping a service that is not running is a no-op.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return nil
	}

	dir := s.store.Dir()
	err := errors.Join(s.host.Stop(ctx), s.store.Destroy())
	s.state = StateStopped
	s.baseURL = ""

	if err != nil {
		s.logger.Error("file service stop failed", map[string]any{"dir": dir}, err)
		return err
	}
	s.log("file service stopped", map[string]any{"dir": dir})
	return nil
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BaseURL returns the prefix URLs are built from, or "" when not running.
func (s *Service) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

// Dir returns the live store directory, or "" when not running.
func (s *Service) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Dir()
}

// Metrics returns the service counters.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

func (s *Service) log(msg string, fields map[string]any) {
	if s.cfg.Verbose {
		s.logger.Info(msg, fields)
		return
	}
	s.logger.Debug(msg, fields)
}
