package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/adamancini/uplift/internal/config"
	"github.com/adamancini/uplift/internal/git"
	"github.com/adamancini/uplift/internal/output"
	"github.com/adamancini/uplift/internal/types"
	"github.com/adamancini/uplift/internal/update"
)

// UpdateService drives one check/install run over the components of an
// Updatefile. It is the only caller of the update engine.
type UpdateService struct {
	path       string
	updatefile *config.Updatefile
	engine     update.Engine
	log        *log.Logger

	names     []string
	checkErrs map[string]error

	// worktree is consulted before each install; nil disables the check.
	worktree   worktreeChecker
	AllowDirty bool
}

type worktreeChecker interface {
	CheckPath(ctx context.Context, installPath string) git.Status
}

// LoadConfiguration finds and loads the Updatefile.
func LoadConfiguration(explicitPath string) (*config.Updatefile, string, error) {
	path, err := config.FindUpdatefile(explicitPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find Updatefile: %w", err)
	}

	f, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load Updatefile: %w", err)
	}
	return f, path, nil
}

// NewUpdateService builds a session from the layered settings.
func NewUpdateService(path string, f *config.Updatefile, s *runtimeSettings, l *log.Logger) *UpdateService {
	ua := update.WithUserAgent("uplift/" + upliftVersion)
	transport := update.NewHTTPTransport(ua)
	github := update.NewGitHubTransport(s.GitHubToken, ua)

	session := update.NewSession(
		update.WithFilesystem(afero.NewOsFs()),
		update.WithTransport(transport),
		update.WithResolver(types.StrategyGitHubAPI, update.NewAPIResolver(github, s.GitHubAPI)),
		update.WithStagingDir(s.StagingDir),
		update.WithFetchTimeout(s.Timeout),
		update.WithConcurrency(s.Concurrency),
		update.WithLogger(l),
	)
	svc := NewUpdateServiceWithEngine(path, f, session, l)
	svc.worktree = git.NewChecker()
	return svc
}

// NewUpdateServiceWithEngine creates a service around engine (for testing).
func NewUpdateServiceWithEngine(path string, f *config.Updatefile, engine update.Engine, l *log.Logger) *UpdateService {
	names := make([]string, 0, len(f.Components))
	for _, c := range f.Components {
		names = append(names, c.Name)
	}
	return &UpdateService{
		path:       path,
		updatefile: f,
		engine:     engine,
		log:        l,
		names:      names,
		checkErrs:  map[string]error{},
	}
}

// Check checks every component and returns the report. Per-component
// failures are in the report; only cancellation is returned as an error.
func (s *UpdateService) Check(ctx context.Context) (*output.CheckReport, error) {
	comps := s.updatefile.UpdateComponents()
	statuses, err := s.engine.Check(ctx, comps)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("check cancelled: %w", ctxErr)
	}

	s.checkErrs = componentErrors(err)

	all := make([]update.UpdateStatus, 0, len(comps))
	all = append(all, statuses...)
	pending := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		pending[st.ComponentName] = true
	}
	for _, c := range comps {
		if pending[c.Name] {
			continue
		}
		if _, failed := s.checkErrs[c.Name]; failed {
			continue
		}
		all = append(all, update.UpdateStatus{
			ComponentName:    c.Name,
			InstalledVersion: c.InstalledVersion,
			ReleaseLabel:     c.InstalledVersion,
		})
	}
	return output.NewCheckReport(s.names, all, s.checkErrs), nil
}

// Pending returns the updates found by the last Check, in Updatefile
// order, restricted to names when any are given.
func (s *UpdateService) Pending(names ...string) []update.UpdateStatus {
	updates := s.engine.Updates()
	if len(names) == 0 {
		return updates
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []update.UpdateStatus
	for _, u := range updates {
		if want[u.ComponentName] {
			out = append(out, u)
		}
	}
	return out
}

// CheckError returns the check failure recorded for name, if any.
func (s *UpdateService) CheckError(name string) error {
	return s.checkErrs[name]
}

// Install installs the pending update for name and records the new
// version in the Updatefile on success.
func (s *UpdateService) Install(ctx context.Context, name string) update.InstallResult {
	if reason := s.dirtyWorktree(ctx, name); reason != "" {
		return update.InstallResult{Status: update.InstallCancelled, Component: name, Reason: reason}
	}

	res := s.engine.Install(ctx, name)
	if !res.OK() {
		return res
	}
	if err := config.SetInstalledVersion(s.path, name, res.Version); err != nil {
		s.log.Warn("installed, but failed to record version in Updatefile", "component", name, "err", err)
	}
	return res
}

// dirtyWorktree returns a refusal reason when name's install path is inside
// a git working tree with uncommitted changes.
func (s *UpdateService) dirtyWorktree(ctx context.Context, name string) string {
	if s.worktree == nil || s.AllowDirty {
		return ""
	}
	c, err := s.updatefile.Component(name)
	if err != nil {
		return ""
	}
	st := s.worktree.CheckPath(ctx, c.InstallPath)
	if st.Error != nil {
		s.log.Debug("git status unavailable", "component", name, "err", st.Error)
		return ""
	}
	if !st.Dirty {
		return ""
	}
	return fmt.Sprintf("%s has uncommitted git changes (use --allow-dirty to overwrite)", st.Path)
}

// componentErrors splits a joined Check error by component name.
func componentErrors(err error) map[string]error {
	out := map[string]error{}
	if err == nil {
		return out
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var ce *update.ComponentError
		if errors.As(e, &ce) {
			if _, seen := out[ce.Name]; !seen {
				out[ce.Name] = ce.Err
			}
		}
	}
	return out
}
