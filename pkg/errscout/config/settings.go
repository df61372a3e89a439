package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Planner names accepted in settings.
const (
	PlannerSweep  = "sweep"
	PlannerScript = "script"
	PlannerLLM    = "llm"
)

// Environment variables that override file settings.
const (
	EnvAPIToken      = "ERRSCOUT_API_TOKEN"
	EnvAccountID     = "ERRSCOUT_ACCOUNT_ID"
	EnvBaseURL       = "ERRSCOUT_BASE_URL"
	EnvLogLevel      = "ERRSCOUT_LOG_LEVEL"
	EnvOutputDir     = "ERRSCOUT_OUTPUT_DIR"
	EnvMaxIterations = "ERRSCOUT_MAX_ITERATIONS"
)

// ErrInvalidSettings is wrapped by every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the resolved runtime configuration of the CLI.
type Settings struct {
	BaseURL    string
	APIToken   string
	AccountID  string
	Timeout    time.Duration
	PathParams map[string]string

	Planner       string
	MaxIterations int
	ScriptPath    string
	Services      []string

	RetryAttempts int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration

	CatalogPath string
	JournalPath string
	OutputDir   string

	LLMModel   string
	ClaudePath string
	LLMTimeout time.Duration

	LogLevel  string
	LogFormat string
	Telemetry bool
}

// Defaults returns settings with every default applied.
func Defaults() Settings {
	return Settings{
		Timeout:       30 * time.Second,
		Planner:       PlannerSweep,
		MaxIterations: 50,
		RetryAttempts: 3,
		RetryBackoff:  time.Second,
		RetryMaxDelay: 30 * time.Second,
		OutputDir:     "errscout-out",
		ClaudePath:    "claude",
		LLMTimeout:    2 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// FromConfig resolves settings from a config document on top of Defaults.
//
//	api:     {base_url, token, account_id, timeout, path_params: {zone_id: ...}}
//	session: {planner, max_iterations, script, services: [...]}
//	retry:   {max_attempts, initial_backoff, max_backoff}
//	catalog: path
//	journal: path
//	output:  dir
//	llm:     {model, claude_path, timeout}
//	log:     {level, format}
//	telemetry: bool
func FromConfig(c Config) Settings {
	s := Defaults()

	api := c.Sub("api")
	s.BaseURL = api.String("base_url", s.BaseURL)
	s.APIToken = api.String("token", s.APIToken)
	s.AccountID = api.String("account_id", s.AccountID)
	s.Timeout = api.Duration("timeout", s.Timeout)
	s.PathParams = api.StringMap("path_params")

	session := c.Sub("session")
	s.Planner = session.String("planner", s.Planner)
	s.MaxIterations = session.Int("max_iterations", s.MaxIterations)
	s.ScriptPath = session.String("script", s.ScriptPath)
	s.Services = session.StringSlice("services", s.Services)

	s.RetryAttempts = c.Int("retry.max_attempts", s.RetryAttempts)
	s.RetryBackoff = c.Duration("retry.initial_backoff", s.RetryBackoff)
	s.RetryMaxDelay = c.Duration("retry.max_backoff", s.RetryMaxDelay)

	s.CatalogPath = c.String("catalog", s.CatalogPath)
	s.JournalPath = c.String("journal", s.JournalPath)
	s.OutputDir = c.String("output", s.OutputDir)

	s.LLMModel = c.String("llm.model", s.LLMModel)
	s.ClaudePath = c.String("llm.claude_path", s.ClaudePath)
	s.LLMTimeout = c.Duration("llm.timeout", s.LLMTimeout)

	s.LogLevel = c.String("log.level", s.LogLevel)
	s.LogFormat = c.String("log.format", s.LogFormat)
	s.Telemetry = c.Bool("telemetry", s.Telemetry)
	return s
}

// Load reads path (when non-empty) and applies ERRSCOUT_* environment
// overrides.
func Load(path string) (Settings, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Settings, error) {
	cfg := New(nil)
	if path != "" {
		var err error
		cfg, err = FromFile(path)
		if err != nil {
			return Settings{}, err
		}
	}

	s := FromConfig(cfg)
	if err := s.applyEnv(lookup); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIToken); ok {
		s.APIToken = v
	}
	if v, ok := lookup(EnvAccountID); ok {
		s.AccountID = v
	}
	if v, ok := lookup(EnvBaseURL); ok {
		s.BaseURL = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		s.LogLevel = v
	}
	if v, ok := lookup(EnvOutputDir); ok {
		s.OutputDir = v
	}
	if v, ok := lookup(EnvMaxIterations); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidSettings, EnvMaxIterations, v)
		}
		s.MaxIterations = n
	}
	return nil
}

// Validate checks the settings needed for a discovery run.
func (s Settings) Validate() error {
	switch s.Planner {
	case PlannerSweep, PlannerLLM:
	case PlannerScript:
		if s.ScriptPath == "" {
			return fmt.Errorf("%w: script planner needs session.script", ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unknown planner %q", ErrInvalidSettings, s.Planner)
	}
	if s.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be positive, got %d", ErrInvalidSettings, s.MaxIterations)
	}
	if s.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1, got %d", ErrInvalidSettings, s.RetryAttempts)
	}
	if s.APIToken == "" {
		return fmt.Errorf("%w: no API token (set %s)", ErrInvalidSettings, EnvAPIToken)
	}
	return nil
}

// DefaultPathParams returns the values used for path placeholders the
// caller leaves unset. account_id comes from AccountID.
func (s Settings) DefaultPathParams() map[string]string {
	out := make(map[string]string, len(s.PathParams)+1)
	for k, v := range s.PathParams {
		out[k] = v
	}
	if s.AccountID != "" {
		out["account_id"] = s.AccountID
	}
	return out
}
