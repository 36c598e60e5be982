// Package config holds the value objects that carry per-instance and
// per-saved-search tunables, with fallback to instance-wide defaults.
// The shape mirrors the teacher's server.Config: a Bind method that
// registers CLI flags and a Preflight method that validates the
// merged configuration (YAML file plus flag overrides) before it is
// used to build a Collector.
package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Defaults holds the instance-wide fallback values recognized under
// init_config in the original check, renamed to Go field names. Every
// SavedSearch tunable falls back to one of these when not set on the
// selector itself.
type Defaults struct {
	RequestTimeoutSeconds       int  `yaml:"default_request_timeout_seconds"`
	SearchMaxRetryCount         int  `yaml:"default_search_max_retry_count"`
	SearchSecondsBetweenRetries int  `yaml:"default_search_seconds_between_retries"`
	VerifySSLCertificate        bool `yaml:"default_verify_ssl_certificate"`
	BatchSize                   int  `yaml:"default_batch_size"`
	SavedSearchesParallel       int  `yaml:"default_saved_searches_parallel"`
	InitialDelaySeconds         int  `yaml:"default_initial_delay_seconds"`

	InitialHistorySeconds int `yaml:"default_initial_history_time_seconds"`

	// The following two keys are recognized as aliases of one another;
	// Preflight rejects a config that sets both to different values.
	MaxRestartHistorySeconds   int `yaml:"default_max_restart_history_seconds"`
	RestartHistoryTimeSeconds  int `yaml:"default_restart_history_time_seconds"`

	// Likewise these two are aliases of one another.
	MaxQueryChunkSeconds int `yaml:"default_max_query_chunk_seconds"`
	MaxQueryTimeRange    int `yaml:"default_max_query_time_range"`
}

// DefaultDefaults returns the baseline values used when init_config
// supplies nothing at all, chosen to match the original check's
// undocumented but observed behavior of "poll everything from now on"
// when a fresh instance has no history configured.
func DefaultDefaults() Defaults {
	return Defaults{
		RequestTimeoutSeconds:       10,
		SearchMaxRetryCount:         3,
		SearchSecondsBetweenRetries: 1,
		VerifySSLCertificate:        true,
		BatchSize:                   1000,
		SavedSearchesParallel:       3,
		InitialDelaySeconds:         0,
		InitialHistorySeconds:       0,
		MaxRestartHistorySeconds:    0,
		MaxQueryChunkSeconds:        3600,
	}
}

// ResolvedRestartHistorySeconds reconciles the two alias keys,
// returning an error if both were set to conflicting non-zero values.
func (d Defaults) ResolvedRestartHistorySeconds() (int, error) {
	return reconcileAlias("default_max_restart_history_seconds", d.MaxRestartHistorySeconds,
		"default_restart_history_time_seconds", d.RestartHistoryTimeSeconds)
}

// ResolvedQueryChunkSeconds reconciles the two alias keys for the
// default query chunk size.
func (d Defaults) ResolvedQueryChunkSeconds() (int, error) {
	return reconcileAlias("default_max_query_chunk_seconds", d.MaxQueryChunkSeconds,
		"default_max_query_time_range", d.MaxQueryTimeRange)
}

func reconcileAlias(nameA string, a int, nameB string, b int) (int, error) {
	switch {
	case a == 0:
		return b, nil
	case b == 0:
		return a, nil
	case a == b:
		return a, nil
	default:
		return 0, errors.Errorf("conflicting values for aliased config keys %s=%d and %s=%d", nameA, a, nameB, b)
	}
}

// SavedSearchSelector is the config-time description of one configured
// saved search: exactly one of Name or Match must be set, and any
// numeric field left at zero falls back to the instance Defaults.
type SavedSearchSelector struct {
	Name       string            `yaml:"name"`
	Match      string            `yaml:"match"`
	Parameters map[string]string `yaml:"parameters"`

	BatchSize                   int `yaml:"batch_size"`
	RequestTimeoutSeconds       int `yaml:"request_timeout_seconds"`
	SearchMaxRetryCount         int `yaml:"search_max_retry_count"`
	SearchSecondsBetweenRetries int `yaml:"search_seconds_between_retries"`
	MaxInitialHistorySeconds    int `yaml:"max_initial_history_seconds"`

	MaxRestartHistorySeconds int `yaml:"max_restart_history_seconds"`

	MaxQueryChunkSeconds int `yaml:"max_query_chunk_seconds"`
	MaxQueryTimeRange    int `yaml:"max_query_time_range"`
}

// IsWildcard reports whether this selector expands against the live
// saved-search inventory rather than naming one search literally.
func (s SavedSearchSelector) IsWildcard() bool {
	return s.Match != ""
}

// Preflight validates that exactly one of Name/Match is present.
func (s SavedSearchSelector) Preflight() error {
	if (s.Name == "") == (s.Match == "") {
		return errors.Errorf("saved search selector must set exactly one of name or match, got name=%q match=%q", s.Name, s.Match)
	}
	return nil
}

// Instance is the user-visible configuration for a single Splunk
// endpoint: url, username, password, verify_ssl_certificate,
// saved_searches_parallel, saved_searches and tags. The instance-wide
// Defaults are not part of it; they come from File.InitConfig.
type Instance struct {
	URL                   string                `yaml:"url"`
	Username              string                `yaml:"username"`
	Password              string                `yaml:"password"`
	VerifySSLCertificate  *bool                 `yaml:"verify_ssl_certificate"`
	SavedSearchesParallel int                   `yaml:"saved_searches_parallel"`
	SavedSearches         []SavedSearchSelector `yaml:"saved_searches"`
	Tags                  []string              `yaml:"tags"`
}

// Preflight validates the required fields of an Instance and every
// selector it carries.
func (i Instance) Preflight() error {
	if i.URL == "" {
		return errors.New("instance configuration is missing required field 'url'")
	}
	if i.Username == "" || i.Password == "" {
		return errors.New("instance configuration is missing required credentials")
	}
	if len(i.SavedSearches) == 0 {
		return errors.New("instance configuration has no saved_searches")
	}
	for idx, s := range i.SavedSearches {
		if err := s.Preflight(); err != nil {
			return errors.Wrapf(err, "saved_searches[%d]", idx)
		}
	}
	return nil
}

// File is the top-level config.yaml shape: init_config plus a list of
// instances, matching the Datadog-agent-style check configuration the
// original Python implementation consumed.
type File struct {
	InitConfig Defaults   `yaml:"init_config"`
	Instances  []Instance `yaml:"instances"`
}

// Load reads and parses a YAML configuration file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}
	if f.InitConfig == (Defaults{}) {
		f.InitConfig = DefaultDefaults()
	}
	if err := f.Preflight(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Preflight validates the whole file, including alias conflicts in
// init_config and every instance's required fields.
func (f File) Preflight() error {
	if _, err := f.InitConfig.ResolvedRestartHistorySeconds(); err != nil {
		return err
	}
	if _, err := f.InitConfig.ResolvedQueryChunkSeconds(); err != nil {
		return err
	}
	for idx, inst := range f.Instances {
		if err := inst.Preflight(); err != nil {
			return errors.Wrapf(err, "instances[%d]", idx)
		}
	}
	return nil
}

// RuntimeFlags carries the small number of process-wide settings that
// are bound to CLI flags rather than the YAML file, following the
// teacher's Config.Bind / Config.Preflight split between per-instance
// data (YAML) and process bootstrap data (flags).
type RuntimeFlags struct {
	ConfigPath     string
	CheckInterval  int
	ForceReload    bool
	BindAddr       string
	CursorBackend  string
	CursorDSN      string
}

// Bind registers the process-wide flags on the given flag set.
func (r *RuntimeFlags) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&r.ConfigPath, "config", "config.yaml", "path to the instance configuration file")
	flags.IntVar(&r.CheckInterval, "checkIntervalSeconds", 15, "time between collection ticks when not in history-catchup mode")
	flags.BoolVar(&r.ForceReload, "forceReload", false, "force every saved search to recompute its earliest time from max_restart_history_seconds on the next tick")
	flags.StringVar(&r.BindAddr, "bindAddr", ":9191", "the network address to serve /metrics and /healthz on")
	flags.StringVar(&r.CursorBackend, "cursorBackend", "memory", "cursor persistence backend: memory, postgres, pgx, or mysql")
	flags.StringVar(&r.CursorDSN, "cursorDSN", "", "connection string for the cursor persistence backend, when not 'memory'")
}

// Preflight validates the runtime flags.
func (r RuntimeFlags) Preflight() error {
	if r.ConfigPath == "" {
		return errors.New("--config is required")
	}
	if r.CheckInterval <= 0 {
		return errors.New("--checkIntervalSeconds must be positive")
	}
	switch r.CursorBackend {
	case "memory":
	case "postgres", "pgx", "mysql":
		if r.CursorDSN == "" {
			return errors.Errorf("--cursorDSN is required for cursor backend %q", r.CursorBackend)
		}
	default:
		return errors.Errorf("unknown cursor backend %q", r.CursorBackend)
	}
	return nil
}

// String implements fmt.Stringer for diagnostic logging.
func (r RuntimeFlags) String() string {
	return fmt.Sprintf("config=%s interval=%ds cursorBackend=%s", r.ConfigPath, r.CheckInterval, r.CursorBackend)
}
