package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings for one sync profile. Values come from
// defaults, an optional YAML file, the environment (including .env)
// and finally command-line flags, each overriding the previous.
type Config struct {
	// Server URL. Completed to the ownCloud WebDAV endpoint when it
	// does not already name one.
	URL string `env:"DAVSYNC_URL"`

	User string `env:"DAVSYNC_USER"`

	// Password is only read from the environment, never from the
	// profile file.
	Password string `env:"DAVSYNC_PASSWORD"`

	// PasswordCommand is run through sh -c and its trimmed stdout used
	// as the password when DAVSYNC_PASSWORD is empty.
	PasswordCommand string `env:"DAVSYNC_PASSWORD_COMMAND"`

	// LocalDir is the local sync root.
	LocalDir string `env:"DAVSYNC_LOCAL"`

	// RemotePath is the remote base, relative to the WebDAV root.
	RemotePath string `env:"DAVSYNC_RPATH" envDefault:"/"`

	// Type is the sync policy: to, from or both.
	Type string `env:"DAVSYNC_TYPE" envDefault:"both"`

	Insecure bool `env:"DAVSYNC_INSECURE" envDefault:"false"`

	// Realm must appear in the server's WWW-Authenticate challenge.
	// Empty accepts any server that asks for credentials.
	Realm string `env:"DAVSYNC_REALM" envDefault:"ownCloud"`

	Exclude []string `env:"DAVSYNC_EXCLUDE" envSeparator:","`

	DryRun bool `env:"DAVSYNC_DRY_RUN" envDefault:"false"`

	// Watch keeps running after the first sync and re-syncs on local
	// changes and every Interval.
	Watch    bool          `env:"DAVSYNC_WATCH" envDefault:"false"`
	Interval time.Duration `env:"DAVSYNC_INTERVAL" envDefault:"0s"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `env:"DAVSYNC_TIMEOUT" envDefault:"5m"`

	// StatePath is the bbolt run history. Empty uses ~/.dav-sync/state.db.
	StatePath string `env:"DAVSYNC_STATE"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Verbose     bool   `env:"DAVSYNC_VERBOSE" envDefault:"false"`
}

// fileConfig is the YAML profile layout. Bool pointers distinguish an
// explicit false from an absent key.
type fileConfig struct {
	URL             string   `yaml:"url"`
	User            string   `yaml:"user"`
	PasswordCommand string   `yaml:"password_command"`
	LocalDir        string   `yaml:"local"`
	RemotePath      string   `yaml:"rpath"`
	Type            string   `yaml:"type"`
	Insecure        *bool    `yaml:"insecure"`
	Realm           string   `yaml:"realm"`
	Exclude         []string `yaml:"exclude"`
	DryRun          *bool    `yaml:"dry_run"`
	Watch           *bool    `yaml:"watch"`
	Interval        string   `yaml:"interval"`
	Timeout         string   `yaml:"timeout"`
	StatePath       string   `yaml:"state"`
	Environment     string   `yaml:"environment"`
	Verbose         *bool    `yaml:"verbose"`
}

// asEnv renders the file's keys under their environment variable
// names so they can sit beneath the real environment.
func (f *fileConfig) asEnv() map[string]string {
	m := make(map[string]string)

	setStr := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}

	setBool := func(key string, v *bool) {
		if v != nil {
			m[key] = strconv.FormatBool(*v)
		}
	}

	setStr("DAVSYNC_URL", f.URL)
	setStr("DAVSYNC_USER", f.User)
	setStr("DAVSYNC_PASSWORD_COMMAND", f.PasswordCommand)
	setStr("DAVSYNC_LOCAL", f.LocalDir)
	setStr("DAVSYNC_RPATH", f.RemotePath)
	setStr("DAVSYNC_TYPE", f.Type)
	setStr("DAVSYNC_INTERVAL", f.Interval)
	setStr("DAVSYNC_TIMEOUT", f.Timeout)
	setStr("DAVSYNC_STATE", f.StatePath)
	setStr("DAVSYNC_REALM", f.Realm)
	setStr("ENVIRONMENT", f.Environment)
	setBool("DAVSYNC_INSECURE", f.Insecure)
	setBool("DAVSYNC_DRY_RUN", f.DryRun)
	setBool("DAVSYNC_WATCH", f.Watch)
	setBool("DAVSYNC_VERBOSE", f.Verbose)

	if len(f.Exclude) > 0 {
		m["DAVSYNC_EXCLUDE"] = strings.Join(f.Exclude, ",")
	}

	return m
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied config path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return f.asEnv(), nil
}

func environ() map[string]string {
	m := make(map[string]string)

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}

	return m
}

// Load reads configuration. It first attempts to load a .env file if
// present, then layers the environment over the YAML profile at file
// (or DAVSYNC_CONFIG when file is empty). The result is not validated
// since flags may still override it.
func Load(file string) (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	if file == "" {
		file = os.Getenv("DAVSYNC_CONFIG")
	}

	vars := make(map[string]string)

	if file != "" {
		fromFile, err := readFile(file)
		if err != nil {
			return nil, err
		}

		vars = fromFile
	}

	for k, v := range environ() {
		vars[k] = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks required settings and resolves LocalDir to an
// absolute path, which the traversal checks rely on.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("server URL is required (--url or DAVSYNC_URL)")
	}

	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("server URL must start with http:// or https://, got %q", c.URL)
	}

	if c.User == "" {
		return fmt.Errorf("user is required (--user or DAVSYNC_USER)")
	}

	if c.LocalDir == "" {
		return fmt.Errorf("local directory is required (--local or DAVSYNC_LOCAL)")
	}

	switch strings.ToLower(c.Type) {
	case "to", "from", "both":
	default:
		return fmt.Errorf("sync type must be to, from or both, got %q", c.Type)
	}

	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}

	if c.Interval > 0 && c.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", c.Interval)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	absDir, err := filepath.Abs(c.LocalDir)
	if err != nil {
		return fmt.Errorf("resolving local dir to absolute path: %w", err)
	}

	c.LocalDir = absDir

	if c.RemotePath == "" {
		c.RemotePath = "/"
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
