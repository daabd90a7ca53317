// Package doctor inspects an installation and reports what would keep
// hook invocations from landing: broken config, unwritable state,
// missing provider credentials, tools that are enabled but not wired
// up, and leftovers from crashed invocations.
package doctor

import (
	"fmt"
	"os"
	"strings"
	"time"

	"hooktrace/internal/config"
	"hooktrace/internal/hooks"
	"hooktrace/internal/state"
)

type Finding struct {
	Code    string `json:"code"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Report struct {
	Healthy       bool      `json:"healthy"`
	Findings      []Finding `json:"findings"`
	DetectedTools []string  `json:"detectedTools,omitempty"`
}

type Service struct {
	ConfigPath string
	StateRoot  string
	Runtime    *hooks.Runtime
	// Detect overrides the install-root probe; nil uses the real one.
	Detect func() []hooks.Detection
}

// staleLockAge is how long a lock file may sit unmodified before the
// invocation that took it is presumed dead.
const staleLockAge = time.Hour

func (s *Service) Run() Report {
	findings := []Finding{}
	detect := s.Detect
	if detect == nil {
		detect = hooks.DetectAvailable
	}
	detected := detect()
	reportDetected := make([]string, 0, len(detected))
	for _, d := range detected {
		reportDetected = append(reportDetected, d.Name)
	}

	var cfg config.Config
	loaded := false
	if _, err := os.Stat(s.ConfigPath); err != nil {
		findings = append(findings, Finding{Code: "DOC_CONFIG_MISSING", Level: "error", Message: err.Error()})
	} else if cfg, err = config.Load(s.ConfigPath); err != nil {
		findings = append(findings, Finding{Code: "DOC_CONFIG_INVALID", Level: "error", Message: err.Error()})
	} else {
		loaded = true
	}

	findings = append(findings, s.checkState()...)
	if loaded {
		findings = append(findings, checkProviders(cfg)...)
		findings = append(findings, s.checkRegistrations(cfg)...)
		enabled := map[string]struct{}{}
		for _, t := range cfg.Tools {
			if t.Enabled {
				enabled[strings.ToLower(t.Name)] = struct{}{}
			}
		}
		for _, d := range detected {
			if _, ok := enabled[strings.ToLower(d.Name)]; ok {
				continue
			}
			findings = append(findings, Finding{
				Code:    "HKS_DETECTED_DISABLED",
				Level:   "warn",
				Message: d.Name + " detected at " + d.Path + " but not enabled in config",
			})
		}
	}

	healthy := true
	for _, f := range findings {
		if f.Level == "error" {
			healthy = false
			break
		}
	}
	return Report{Healthy: healthy, Findings: findings, DetectedTools: reportDetected}
}

func (s *Service) checkState() []Finding {
	if err := state.EnsureLayout(s.StateRoot); err != nil {
		return []Finding{{Code: "DOC_STATE_UNWRITABLE", Level: "error", Message: err.Error()}}
	}
	probe, err := os.CreateTemp(state.Root(s.StateRoot), ".doctor-*")
	if err != nil {
		return []Finding{{Code: "DOC_STATE_UNWRITABLE", Level: "error", Message: err.Error()}}
	}
	probe.Close()
	os.Remove(probe.Name())

	findings := []Finding{}
	stale, err := state.OrphanedLocks(s.StateRoot, staleLockAge)
	if err != nil {
		findings = append(findings, Finding{Code: "DOC_LOCK_SCAN", Level: "warn", Message: err.Error()})
	}
	for _, lock := range stale {
		findings = append(findings, Finding{
			Code:    "DOC_STALE_LOCK",
			Level:   "warn",
			Message: fmt.Sprintf("lock %s untouched for over %s; a hook invocation likely died holding it", lock, staleLockAge),
		})
	}
	return findings
}

// checkProviders verifies that every backend named by the config has
// the credentials it cannot run without. Datadog is exempt: the agent
// transport has working defaults.
func checkProviders(cfg config.Config) []Finding {
	inUse := map[string]struct{}{cfg.Pipeline.Provider: {}}
	for _, t := range cfg.Tools {
		if t.Provider != "" {
			inUse[t.Provider] = struct{}{}
		}
	}
	findings := []Finding{}
	if _, ok := inUse["langfuse"]; ok {
		if cfg.Langfuse.PublicKey == "" || cfg.Langfuse.SecretKey == "" {
			findings = append(findings, Finding{
				Code:    "DOC_PROVIDER_CREDS",
				Level:   "error",
				Message: "langfuse selected but public_key/secret_key are not configured",
			})
		}
	}
	if _, ok := inUse["otlp"]; ok {
		if cfg.OTLP.Endpoint == "" {
			findings = append(findings, Finding{
				Code:    "DOC_PROVIDER_CREDS",
				Level:   "error",
				Message: "otlp selected but no endpoint is configured",
			})
		}
	}
	return findings
}

// checkRegistrations probes the settings surface of every enabled tool.
// A tool enabled in config whose hook file lost its entry silently
// stops reporting; that drift is exactly what doctor exists to catch.
func (s *Service) checkRegistrations(cfg config.Config) []Finding {
	if s.Runtime == nil {
		return nil
	}
	findings := []Finding{}
	for _, tc := range cfg.Tools {
		if !tc.Enabled {
			continue
		}
		tool, err := s.Runtime.Get(tc.Name)
		if err != nil {
			findings = append(findings, Finding{Code: "HKS_PROBE_FAIL", Level: "warn", Message: err.Error()})
			continue
		}
		ok, path, err := tool.Registered(config.Scope(tc.Scope))
		if err != nil {
			findings = append(findings, Finding{Code: "HKS_PROBE_FAIL", Level: "warn", Message: err.Error()})
			continue
		}
		if !ok {
			findings = append(findings, Finding{
				Code:    "HKS_NOT_REGISTERED",
				Level:   "warn",
				Message: fmt.Sprintf("%s enabled in config but no hook found at %s", tc.Name, path),
			})
		}
	}
	return findings
}
