// Package app wires the subsystems into the service the CLI drives.
// Construction resolves the effective config (global file, project
// overlay, environment), prepares the storage root, and builds the
// pipeline, hook runtime, and doctor against that resolved view.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"hooktrace/internal/attribution"
	"hooktrace/internal/audit"
	"hooktrace/internal/config"
	"hooktrace/internal/doctor"
	"hooktrace/internal/event"
	"hooktrace/internal/hooks"
	"hooktrace/internal/logging"
	"hooktrace/internal/pipeline"
	"hooktrace/internal/selfupdate"
	"hooktrace/internal/state"
)

// Options configures Service construction. Zero values resolve to what
// a plain CLI run would use.
type Options struct {
	// ConfigPath overrides the global config location. Empty means
	// ~/.hooktrace/config.toml.
	ConfigPath string

	// WorkDir anchors project overlay discovery. Empty means the
	// process working directory.
	WorkDir string

	// HTTPClient is used for self-update downloads.
	HTTPClient *http.Client
}

// Service owns the wired subsystems. Fields are exported so commands
// and tests can reach the layer they exercise directly.
type Service struct {
	ConfigPath  string
	Config      config.Config
	StateRoot   string
	ProjectRoot string

	Registry *event.Registry
	States   *state.Store
	Hooks    *hooks.Runtime
	Pipeline *pipeline.Service
	Doctor   *doctor.Service
	Audit    *audit.Logger
	Log      *slog.Logger

	httpClient *http.Client
}

func New(opts Options) (*Service, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cwd := opts.WorkDir
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	cfg, projectRoot, err := config.Resolve(configPath, cwd)
	if err != nil {
		return nil, err
	}
	stateRoot, err := config.ResolveStorageRoot(cfg)
	if err != nil {
		return nil, err
	}
	if err := state.EnsureLayout(stateRoot); err != nil {
		return nil, err
	}

	// Relative log files land under the storage root's logs dir.
	logCfg := cfg.Logging
	if logCfg.File != "" && !filepath.IsAbs(logCfg.File) {
		logCfg.File = filepath.Join(state.LogRoot(stateRoot), logCfg.File)
	}
	logger := logging.New(logCfg)
	auditLog := audit.New(state.AuditPath(stateRoot))

	store, err := state.NewStore(stateRoot, cfg.Pipeline.LockTimeoutDuration(), cfg.Pipeline.LockPollDuration())
	if err != nil {
		return nil, err
	}
	runtime, err := hooks.NewRuntime(cfg)
	if err != nil {
		return nil, err
	}

	pipe := &pipeline.Service{
		Registry: event.NewRegistry(),
		Store:    store,
		Config:   cfg,
		Log:      logger,
		Audit:    auditLog,
	}
	if cfg.Attribution.Enabled {
		pipe.Attribution = attribution.NewWriter(cfg.Attribution.OutputDir, cwd)
	}

	return &Service{
		ConfigPath:  configPath,
		Config:      cfg,
		StateRoot:   stateRoot,
		ProjectRoot: projectRoot,
		Registry:    pipe.Registry,
		States:      store,
		Hooks:       runtime,
		Pipeline:    pipe,
		Doctor: &doctor.Service{
			ConfigPath: configPath,
			StateRoot:  stateRoot,
			Runtime:    runtime,
		},
		Audit:      auditLog,
		Log:        logger,
		httpClient: opts.HTTPClient,
	}, nil
}

// HookRun normalizes and exports one hook invocation. The payload is
// whatever the calling tool piped to stdin.
func (s *Service) HookRun(ctx context.Context, tool string, payload []byte, providerOverride string) (pipeline.Report, error) {
	return s.Pipeline.Run(ctx, pipeline.Request{Tool: tool, Payload: payload, Provider: providerOverride})
}

// Enable writes the hook surface for one tool and records the
// registration in the global config so status and doctor see it.
func (s *Service) Enable(tool, scope, providerName string) (hooks.Change, error) {
	hk, err := s.Hooks.Get(tool)
	if err != nil {
		return hooks.Change{}, err
	}
	if providerName != "" && !config.KnownProvider(providerName) {
		return hooks.Change{}, fmt.Errorf("CFG_PROVIDER: unsupported provider %q", providerName)
	}
	change, err := hk.Enable(hooks.EnableOptions{Scope: config.Scope(scope), Provider: providerName})
	if err != nil {
		s.Audit.Log(audit.Event{Operation: audit.OpEnable, Status: audit.StatusError, Tool: hk.Name(), Message: err.Error()})
		return hooks.Change{}, err
	}
	if err := s.recordTool(hk.Name(), change.Scope, providerName, true); err != nil {
		return change, err
	}
	s.Audit.Log(audit.Event{
		Operation: audit.OpEnable,
		Status:    audit.StatusOK,
		Tool:      hk.Name(),
		Fields:    map[string]string{"scope": change.Scope, "path": change.Path},
	})
	return change, nil
}

// Disable removes the hook surface for one tool and marks the tool
// disabled in the global config. The config entry is kept so status
// still shows where the hook used to live.
func (s *Service) Disable(tool, scope string) (hooks.Change, error) {
	hk, err := s.Hooks.Get(tool)
	if err != nil {
		return hooks.Change{}, err
	}
	change, err := hk.Disable(config.Scope(scope))
	if err != nil {
		s.Audit.Log(audit.Event{Operation: audit.OpDisable, Status: audit.StatusError, Tool: hk.Name(), Message: err.Error()})
		return hooks.Change{}, err
	}
	if err := s.recordTool(hk.Name(), "", "", false); err != nil {
		return change, err
	}
	s.Audit.Log(audit.Event{
		Operation: audit.OpDisable,
		Status:    audit.StatusOK,
		Tool:      hk.Name(),
		Fields:    map[string]string{"scope": change.Scope, "path": change.Path},
	})
	return change, nil
}

// recordTool applies a tool toggle to the global config file. The
// merged in-memory view mutates the same way so a long-lived Service
// stays consistent without re-reading the file.
func (s *Service) recordTool(name, scope, providerName string, enabled bool) error {
	onDisk, err := config.Ensure(s.ConfigPath)
	if err != nil {
		return err
	}
	apply := func(cfg *config.Config) (bool, error) {
		if enabled {
			return config.EnableTool(cfg, name, scope, providerName)
		}
		return config.DisableTool(cfg, name)
	}
	changed, err := apply(&onDisk)
	if err != nil {
		return err
	}
	if changed {
		if err := config.Save(s.ConfigPath, onDisk); err != nil {
			return err
		}
	}
	if _, err := apply(&s.Config); err != nil {
		return err
	}
	s.Pipeline.Config = s.Config
	return nil
}

// ToolStatus is one row of the status output.
type ToolStatus struct {
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	Scope      string `json:"scope,omitempty"`
	Provider   string `json:"provider"`
	Registered bool   `json:"registered"`
	Path       string `json:"path,omitempty"`
}

// Status is the snapshot behind the status command.
type Status struct {
	Version     string       `json:"version"`
	ConfigPath  string       `json:"configPath"`
	StateRoot   string       `json:"stateRoot"`
	ProjectRoot string       `json:"projectRoot,omitempty"`
	Provider    string       `json:"provider"`
	ExportMode  string       `json:"exportMode"`
	Tools       []ToolStatus `json:"tools"`
	Sessions    int          `json:"sessions"`
}

// Status probes every supported tool's hook surface and reports it next
// to what the config says. Probe failures degrade to unregistered
// rather than failing the whole snapshot.
func (s *Service) Status() (Status, error) {
	st := Status{
		Version:     config.Version,
		ConfigPath:  s.ConfigPath,
		StateRoot:   s.StateRoot,
		ProjectRoot: s.ProjectRoot,
		Provider:    s.Config.Pipeline.Provider,
		ExportMode:  s.Config.Pipeline.ExportMode,
	}
	for _, name := range s.Hooks.Names() {
		row := ToolStatus{Name: name, Provider: config.ToolProvider(s.Config, name)}
		var scope config.Scope
		if entry, ok := config.FindTool(s.Config, name); ok {
			row.Enabled = entry.Enabled
			row.Scope = entry.Scope
			scope = config.Scope(entry.Scope)
		}
		if hk, err := s.Hooks.Get(name); err == nil {
			if registered, path, err := hk.Registered(scope); err == nil {
				row.Registered = registered
				row.Path = path
			}
		}
		st.Tools = append(st.Tools, row)
	}
	sessions, err := state.ListSessions(s.StateRoot)
	if err != nil {
		return st, err
	}
	st.Sessions = len(sessions)
	return st, nil
}

// DoctorRun executes the health checks against the live wiring.
func (s *Service) DoctorRun() doctor.Report {
	return s.Doctor.Run()
}

// EnableDetected enables every tool whose install footprint is present
// on this machine, each at its default scope.
func (s *Service) EnableDetected(providerName string) ([]hooks.Change, error) {
	var changes []hooks.Change
	for _, det := range hooks.DetectAvailable() {
		change, err := s.Enable(det.Name, "", providerName)
		if err != nil {
			return changes, fmt.Errorf("enable %s: %w", det.Name, err)
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// SelfUpdate replaces the running binary with the latest release on the
// channel. The result says whether anything was applied.
func (s *Service) SelfUpdate(ctx context.Context, channel string, requireSignatures bool) (selfupdate.Result, error) {
	res, err := selfupdate.New(s.httpClient).Update(ctx, channel, requireSignatures)
	ch := res.Channel
	if ch == "" {
		ch = channel
	}
	ev := audit.Event{Operation: audit.OpSelfUpdate, Status: audit.StatusOK, Fields: map[string]string{"channel": ch}}
	switch {
	case err != nil:
		ev.Status = audit.StatusError
		ev.Message = err.Error()
	case !res.Updated:
		ev.Status = audit.StatusSkipped
		ev.Message = res.Reason
	default:
		ev.Fields["version"] = res.Version
	}
	s.Audit.Log(ev)
	return res, err
}
