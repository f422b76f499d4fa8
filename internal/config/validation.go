package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ValidateConfig checks structural invariants. Credential availability is
// checked later, when the provider chain and publisher are built.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	checks := []func() error{
		cv.validateWorkspace,
		cv.validateBuild,
		cv.validateAnalyzer,
		cv.validateProviders,
		cv.validateRepair,
		cv.validatePublish,
		cv.validateSide,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (cv *configurationValidator) validateWorkspace() error {
	w := cv.config.Workspace
	if filepath.IsAbs(w.AppDir) {
		return fmt.Errorf("workspace.app_dir must be relative to the root: %s", w.AppDir)
	}
	if strings.HasPrefix(filepath.Clean(w.AppDir), "..") {
		return fmt.Errorf("workspace.app_dir escapes the root: %s", w.AppDir)
	}
	if w.Clone && strings.TrimSpace(w.CloneDir) == "" {
		return errors.New("workspace.clone_dir is required when clone is enabled")
	}
	return nil
}

func (cv *configurationValidator) validateBuild() error {
	b := cv.config.Build
	if strings.TrimSpace(b.Command) == "" {
		return errors.New("build.command cannot be empty")
	}
	if err := validateDurationField("build.timeout", b.Timeout); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validateAnalyzer() error {
	for _, ext := range cv.config.Analyzer.Extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" || strings.ContainsAny(ext, "/\\. ") {
			return fmt.Errorf("analyzer.extensions contains invalid entry %q", ext)
		}
	}
	seen := make(map[LocatorStrategy]bool)
	for _, s := range cv.config.Analyzer.Strategies {
		if seen[s] {
			return fmt.Errorf("analyzer.strategies lists %s twice", s)
		}
		seen[s] = true
	}
	return nil
}

func (cv *configurationValidator) validateProviders() error {
	p := cv.config.Providers
	if len(p.Chain) == 0 {
		return errors.New("providers.chain cannot be empty")
	}
	if _, err := p.BackendSpecs(); err != nil {
		return fmt.Errorf("providers.chain: %w", err)
	}
	if err := validateDurationField("providers.request_timeout", p.RequestTimeout); err != nil {
		return err
	}
	if err := validateDurationField("providers.retry.initial_delay", p.Retry.InitialDelay); err != nil {
		return err
	}
	if err := validateDurationField("providers.retry.max_delay", p.Retry.MaxDelay); err != nil {
		return err
	}
	if p.LogWindow <= 0 {
		return errors.New("providers.log_window must be positive")
	}
	return nil
}

func (cv *configurationValidator) validateRepair() error {
	r := cv.config.Repair
	if r.MaxRetries <= 0 {
		return errors.New("repair.max_retries must be positive")
	}
	if filepath.IsAbs(r.DebugLog) {
		return fmt.Errorf("repair.debug_log must be relative to the root: %s", r.DebugLog)
	}
	return nil
}

func (cv *configurationValidator) validatePublish() error {
	p := cv.config.Publish
	if strings.ContainsAny(p.BranchPrefix, " ~^:?*[\\") {
		return fmt.Errorf("publish.branch_prefix is not a valid branch name prefix: %q", p.BranchPrefix)
	}
	if strings.TrimSpace(p.CommitMessage) == "" {
		return errors.New("publish.commit_message cannot be empty")
	}
	return nil
}

func (cv *configurationValidator) validateSide() error {
	if err := validateDurationField("watch.interval", cv.config.Watch.Interval); err != nil {
		return err
	}
	if cv.config.Notify.Enabled && strings.TrimSpace(cv.config.Notify.URL) == "" {
		return errors.New("notify.url is required when notify is enabled")
	}
	if cv.config.History.Enabled && strings.TrimSpace(cv.config.History.Path) == "" {
		return errors.New("history.path is required when history is enabled")
	}
	return nil
}

func validateDurationField(name, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return fmt.Errorf("%s cannot be negative", name)
	}
	return nil
}
