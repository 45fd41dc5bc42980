// Package config loads and validates the YAML configuration that drives a
// synthesis run. A Config is built once at startup and treated as immutable
// afterwards; components receive the sections they need by value.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can use human-readable
// values like "60s" or "5m". Bare numbers are interpreted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	// bare numbers are seconds; everything else must parse as a Go duration
	if value.Tag == "!!int" || value.Tag == "!!float" {
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return fmt.Errorf("invalid duration value at line %d", value.Line)
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value at line %d", value.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration for a synthesis run.
type Config struct {
	// Notebook identifies the hosted notebook and which cells to drive
	Notebook NotebookConfig `yaml:"notebook"`

	// Browser controls how the automation browser is launched
	Browser BrowserConfig `yaml:"browser"`

	// Auth selects the authentication method
	Auth AuthConfig `yaml:"auth"`

	// Generation holds the synthesis parameters injected into the notebook
	Generation GenerationConfig `yaml:"generation"`

	// Timeouts bound each stage of the run
	Timeouts TimeoutConfig `yaml:"timeouts"`

	// Retry controls session-level retry behavior
	Retry RetryConfig `yaml:"retry"`

	// Paths holds local filesystem locations
	Paths PathConfig `yaml:"paths"`
}

// NotebookConfig identifies the notebook and the cells to execute.
type NotebookConfig struct {
	// URL of the hosted notebook
	URL string `yaml:"url"`

	// Cells lists the cell indices to execute, in order (0-based)
	Cells []int `yaml:"cells"`

	// InputCellIndex is the cell whose text variable is rewritten before
	// execution. It must appear in Cells.
	InputCellIndex int `yaml:"input_cell_index"`

	// TextVariable is the variable name assigned in the input cell
	TextVariable string `yaml:"text_variable"`

	// RemoteAudioPath is where the notebook writes the generated audio
	RemoteAudioPath string `yaml:"remote_audio_path"`
}

// BrowserConfig controls browser launch options.
type BrowserConfig struct {
	Headless       bool `yaml:"headless"`
	ViewportWidth  int  `yaml:"viewport_width"`
	ViewportHeight int  `yaml:"viewport_height"`
}

// AuthMethod selects how the session is authenticated.
type AuthMethod string

const (
	// AuthCookies authenticates with saved cookies and fails fast when
	// validation does not complete in time
	AuthCookies AuthMethod = "cookies"
	// AuthInteractive waits for a human to complete the login flow
	AuthInteractive AuthMethod = "interactive"
)

// AuthConfig selects the authentication method.
type AuthConfig struct {
	Method      AuthMethod `yaml:"method"`
	CookiesFile string     `yaml:"cookies_file"`
}

// GenerationConfig holds the synthesis parameters injected into the
// input cell alongside the bulletin text.
type GenerationConfig struct {
	NumStep       int     `yaml:"num_step"`
	Speed         float64 `yaml:"speed"`
	RemoveLongSil bool    `yaml:"remove_long_sil"`
	MaxDuration   int     `yaml:"max_duration"`
}

// TimeoutConfig bounds each stage of the run.
type TimeoutConfig struct {
	PageLoad        Duration `yaml:"page_load"`
	RuntimeConnect  Duration `yaml:"runtime_connect"`
	CellExecution   Duration `yaml:"cell_execution"`
	Generation      Duration `yaml:"generation"`
	Download        Duration `yaml:"download"`
	AuthValidation  Duration `yaml:"auth_validation"`
	InteractiveAuth Duration `yaml:"interactive_auth"`

	// CheckInterval is the polling interval for cell status and
	// runtime state checks
	CheckInterval Duration `yaml:"check_interval"`
}

// RetryConfig controls session-level retry behavior.
type RetryConfig struct {
	MaxAttempts       int      `yaml:"max_attempts"`
	BaseDelay         Duration `yaml:"base_delay"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
	MaxDelay          Duration `yaml:"max_delay"`
}

// PathConfig holds local filesystem locations.
type PathConfig struct {
	OutputDir   string `yaml:"output_dir"`
	BulletinDir string `yaml:"bulletin_dir"`
}

// DefaultConfig returns the configuration used when no file overrides are
// present. Cell indices match the published notebook layout.
func DefaultConfig() *Config {
	return &Config{
		Notebook: NotebookConfig{
			URL:             "https://colab.research.google.com/drive/1u2rOjNuBmmmaO6EtkmapR0itwHL31eal",
			Cells:           []int{2, 4, 6, 8, 10, 12, 14, 16, 17},
			InputCellIndex:  14,
			TextVariable:    "TEXT_TO_SYNTHESIZE",
			RemoteAudioPath: "/content/output_vietnamese.wav",
		},
		Browser: BrowserConfig{
			Headless:       true,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
		Auth: AuthConfig{
			Method:      AuthCookies,
			CookiesFile: "colab_cookies.json",
		},
		Generation: GenerationConfig{
			NumStep:       8,
			Speed:         1.0,
			RemoveLongSil: false,
			MaxDuration:   100,
		},
		Timeouts: TimeoutConfig{
			PageLoad:        Duration(60 * time.Second),
			RuntimeConnect:  Duration(5 * time.Minute),
			CellExecution:   Duration(5 * time.Minute),
			Generation:      Duration(10 * time.Minute),
			Download:        Duration(2 * time.Minute),
			AuthValidation:  Duration(30 * time.Second),
			InteractiveAuth: Duration(5 * time.Minute),
			CheckInterval:   Duration(2 * time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			BaseDelay:         Duration(5 * time.Second),
			BackoffMultiplier: 2.0,
			MaxDelay:          Duration(time.Minute),
		},
		Paths: PathConfig{
			OutputDir:   "output",
			BulletinDir: "bulletins",
		},
	}
}

// Load reads a YAML config file and merges it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Notebook.URL) == "" {
		return fmt.Errorf("notebook url is required")
	}

	if len(c.Notebook.Cells) == 0 {
		return fmt.Errorf("notebook cells list is empty")
	}

	prev := -1
	inputFound := false
	for _, idx := range c.Notebook.Cells {
		if idx < 0 {
			return fmt.Errorf("cell index %d is negative", idx)
		}
		if idx <= prev {
			return fmt.Errorf("cell indices must be strictly increasing, got %d after %d", idx, prev)
		}
		prev = idx
		if idx == c.Notebook.InputCellIndex {
			inputFound = true
		}
	}
	if !inputFound {
		return fmt.Errorf("input_cell_index %d is not in the cells list", c.Notebook.InputCellIndex)
	}

	if c.Notebook.TextVariable == "" {
		return fmt.Errorf("text_variable is required")
	}

	switch c.Auth.Method {
	case AuthCookies:
		if c.Auth.CookiesFile == "" {
			return fmt.Errorf("cookies auth requires cookies_file")
		}
	case AuthInteractive:
	default:
		return fmt.Errorf("invalid auth method: %s (must be 'cookies' or 'interactive')", c.Auth.Method)
	}

	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive")
	}

	for name, d := range map[string]Duration{
		"page_load":        c.Timeouts.PageLoad,
		"runtime_connect":  c.Timeouts.RuntimeConnect,
		"cell_execution":   c.Timeouts.CellExecution,
		"generation":       c.Timeouts.Generation,
		"download":         c.Timeouts.Download,
		"auth_validation":  c.Timeouts.AuthValidation,
		"interactive_auth": c.Timeouts.InteractiveAuth,
		"check_interval":   c.Timeouts.CheckInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("timeout %s must be positive", name)
		}
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry base_delay must be positive")
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		return fmt.Errorf("retry backoff_multiplier must be at least 1.0")
	}

	if c.Generation.NumStep <= 0 {
		return fmt.Errorf("generation num_step must be positive")
	}
	if c.Generation.Speed <= 0 {
		return fmt.Errorf("generation speed must be positive")
	}
	if c.Generation.MaxDuration <= 0 {
		return fmt.Errorf("generation max_duration must be positive")
	}

	if c.Paths.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.Paths.BulletinDir == "" {
		return fmt.Errorf("bulletin_dir is required")
	}

	return nil
}
