package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/adamancini/uplift/internal/types"
)

// DefaultConcurrency is the number of components checked at once.
const DefaultConcurrency = 4

// Engine is what a front end needs from an update session.
type Engine interface {
	Check(ctx context.Context, components []Component) ([]UpdateStatus, error)
	Install(ctx context.Context, name string) InstallResult
	Updates() []UpdateStatus
}

var _ Engine = (*Session)(nil)

// CheckResult is delivered by CheckAsync.
type CheckResult struct {
	Statuses []UpdateStatus
	Err      error
}

// Session owns the registry of pending updates and drives check and
// install cycles against it. It is safe for concurrent use.
type Session struct {
	planner     *Planner
	fetcher     *Fetcher
	installer   *Installer
	staging     StagingArea
	concurrency int
	log         *log.Logger
	newID       func() string

	mu             sync.RWMutex
	registry       []UpdateStatus
	components     map[string]Component
	debugAvailable bool

	installing sync.Mutex
}

type sessionConfig struct {
	fs          afero.Fs
	transport   Transport
	resolvers   map[types.Strategy]Resolver
	staging     StagingArea
	timeout     time.Duration
	concurrency int
	logger      *log.Logger
	verifier    Verifier
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

// WithFilesystem sets the filesystem used for staging and installs.
func WithFilesystem(fs afero.Fs) SessionOption {
	return func(c *sessionConfig) {
		c.fs = fs
	}
}

// WithTransport sets the transport used for listings and downloads.
func WithTransport(t Transport) SessionOption {
	return func(c *sessionConfig) {
		c.transport = t
	}
}

// WithResolver overrides the resolver used for a strategy.
func WithResolver(s types.Strategy, r Resolver) SessionOption {
	return func(c *sessionConfig) {
		c.resolvers[s] = r
	}
}

// WithStagingDir sets the staging root. Empty means DefaultStagingArea.
func WithStagingDir(root string) SessionOption {
	return func(c *sessionConfig) {
		c.staging = StagingArea{Root: root}
	}
}

// WithFetchTimeout bounds each artifact download.
func WithFetchTimeout(d time.Duration) SessionOption {
	return func(c *sessionConfig) {
		c.timeout = d
	}
}

// WithConcurrency bounds how many components are checked at once.
func WithConcurrency(n int) SessionOption {
	return func(c *sessionConfig) {
		c.concurrency = n
	}
}

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) SessionOption {
	return func(c *sessionConfig) {
		c.logger = l
	}
}

// WithVerifier checks each artifact after download and before install.
func WithVerifier(v Verifier) SessionOption {
	return func(c *sessionConfig) {
		c.verifier = v
	}
}

// NewSession creates a Session. Without options it uses the host
// filesystem, an HTTP transport and a logger that discards output.
func NewSession(opts ...SessionOption) *Session {
	cfg := &sessionConfig{
		resolvers:   make(map[types.Strategy]Resolver),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.fs == nil {
		cfg.fs = afero.NewOsFs()
	}
	if cfg.transport == nil {
		cfg.transport = NewHTTPTransport()
	}
	if cfg.logger == nil {
		cfg.logger = log.New(io.Discard)
	}
	if cfg.concurrency < 1 {
		cfg.concurrency = 1
	}
	if _, ok := cfg.resolvers[types.StrategyScrape]; !ok {
		cfg.resolvers[types.StrategyScrape] = NewPageResolver(cfg.transport)
	}
	if _, ok := cfg.resolvers[types.StrategyGitHubAPI]; !ok {
		cfg.resolvers[types.StrategyGitHubAPI] = NewAPIResolver(cfg.transport, "")
	}

	fetcher := NewFetcher(cfg.fs, cfg.transport, cfg.timeout, cfg.logger)
	fetcher.SetVerifier(cfg.verifier)

	return &Session{
		planner:     NewPlanner(cfg.resolvers),
		fetcher:     fetcher,
		installer:   NewInstaller(cfg.fs, cfg.logger),
		staging:     cfg.staging,
		concurrency: cfg.concurrency,
		log:         cfg.logger,
		newID:       uuid.NewString,
		components:  make(map[string]Component),
	}
}

// Check resolves every component and replaces the registry with the
// ones that have a newer release. A failure for one component does not
// stop the others; failures are returned joined, each as a
// *ComponentError. If ctx is cancelled the registry is left unchanged.
func (s *Session) Check(ctx context.Context, components []Component) ([]UpdateStatus, error) {
	statuses := make([]UpdateStatus, len(components))
	errs := make([]error, len(components))
	known := make(map[string]Component, len(components))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, c := range components {
		if _, dup := known[c.Name]; dup {
			errs[i] = &ComponentError{Name: c.Name, Err: errors.New("duplicate component name")}
			continue
		}
		known[c.Name] = c

		g.Go(func() error {
			st, err := s.planner.Plan(ctx, c)
			if err != nil {
				s.log.Warn("check failed", "component", c.Name, "err", err)
				errs[i] = &ComponentError{Name: c.Name, Err: err}
				return nil
			}
			s.log.Debug("checked", "component", c.Name, "installed", c.InstalledVersion,
				"release", st.ReleaseLabel, "available", st.Available)
			statuses[i] = st
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	available := []UpdateStatus{}
	for i, st := range statuses {
		if errs[i] == nil && st.Available {
			available = append(available, st)
		}
	}

	s.mu.Lock()
	s.registry = available
	s.components = known
	s.mu.Unlock()

	s.log.Info("check complete", "components", len(components), "updates", len(available))
	return slices.Clone(available), errors.Join(errs...)
}

// Install fetches and applies the pending update registered under name.
// Unknown names are Cancelled without touching the filesystem.
func (s *Session) Install(ctx context.Context, name string) InstallResult {
	s.mu.RLock()
	status, ok := s.lookup(name)
	comp := s.components[name]
	s.mu.RUnlock()
	if !ok {
		s.log.Warn("no pending update", "component", name)
		return cancelled(name, "not found")
	}

	if !s.installing.TryLock() {
		return cancelled(name, "install already in progress")
	}
	defer s.installing.Unlock()

	attemptID := s.newID()
	logger := s.log.With("component", name, "attempt", attemptID)

	staging := s.staging
	if staging.Root == "" {
		var err error
		if staging, err = DefaultStagingArea(); err != nil {
			logger.Error("install failed", "err", err)
			return failed(name, attemptID, err)
		}
	}

	logger.Info("installing", "version", status.ReleaseLabel, "from", status.InstalledVersion)
	artifact, err := s.fetcher.Fetch(ctx, status.DownloadLink, status.ArtifactKind, staging)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warn("install cancelled during download", "err", ctxErr)
			return cancelled(name, ctxErr.Error())
		}
		logger.Error("install failed", "err", err)
		return failed(name, attemptID, err)
	}

	return s.installer.Install(ctx, comp, status.ReleaseLabel, artifact, staging, attemptID)
}

// CheckAsync runs Check on its own goroutine.
func (s *Session) CheckAsync(ctx context.Context, components []Component) <-chan CheckResult {
	ch := make(chan CheckResult, 1)
	go func() {
		defer close(ch)
		statuses, err := s.Check(ctx, components)
		ch <- CheckResult{Statuses: statuses, Err: err}
	}()
	return ch
}

// InstallAsync runs Install on its own goroutine.
func (s *Session) InstallAsync(ctx context.Context, name string) <-chan InstallResult {
	ch := make(chan InstallResult, 1)
	go func() {
		defer close(ch)
		ch <- s.Install(ctx, name)
	}()
	return ch
}

// Updates returns a copy of the registry.
func (s *Session) Updates() []UpdateStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.registry)
}

// Lookup returns the pending update for name.
func (s *Session) Lookup(name string) (UpdateStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(name)
}

func (s *Session) lookup(name string) (UpdateStatus, bool) {
	for _, st := range s.registry {
		if st.ComponentName == name {
			return st, true
		}
	}
	return UpdateStatus{}, false
}

// AddonUpdateAvailable reports whether any component has a pending update.
func (s *Session) AddonUpdateAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry) > 0 || s.debugAvailable
}

// SetDebugAvailable forces AddonUpdateAvailable to report true.
func (s *Session) SetDebugAvailable(v bool) {
	s.mu.Lock()
	s.debugAvailable = v
	s.mu.Unlock()
}

// HostUpdateAvailable is not implemented; updating the host application
// is outside this engine.
func (s *Session) HostUpdateAvailable() (bool, error) {
	return false, fmt.Errorf("%w: host application updates", ErrUnsupported)
}
