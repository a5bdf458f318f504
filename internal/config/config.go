package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/goccy/go-yaml"

	pebblestore "github.com/rzbill/logcache/internal/storage/pebble"
)

// DefaultServiceNameRegex admits names that are safe as file names.
const DefaultServiceNameRegex = `^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`

// minPageSize is one record; smaller pages could never hold an append.
const minPageSize = 256

// Config is the top-level configuration loaded from file/env.
type Config struct {
	ListenAddr    string `json:"listenAddr"`
	AdminHTTPAddr string `json:"adminHTTPAddr"`
	GRPCAddr      string `json:"grpcAddr"`

	DataDir string `json:"dataDir"`
	// LogDir holds the service files; empty means <DataDir>/logs.
	LogDir string `json:"logDir"`

	MaxServices int `json:"maxServices"`
	MaxSessions int `json:"maxSessions"`
	// PageSize is the store growth unit; 0 uses the OS page size.
	PageSize int  `json:"pageSize"`
	UseMmap  bool `json:"useMmap"`

	ServiceNameRegex string `json:"serviceNameRegex"`

	FsyncOnFlush    bool     `json:"fsyncOnFlush"`
	FlushOnShutdown bool     `json:"flushOnShutdown"`
	Rotation        Rotation `json:"rotation"`
	// CatalogFsync is the catalog write durability: always|interval|never.
	CatalogFsync string `json:"catalogFsync"`

	Tracing bool `json:"tracing"`
}

// Rotation triggers for service files. Zero disables a trigger.
type Rotation struct {
	MaxBytes      int64 `json:"maxBytes"`
	MaxAgeSeconds int   `json:"maxAgeSeconds"`
}

// MaxAge returns MaxAgeSeconds as a duration.
func (r Rotation) MaxAge() time.Duration { return time.Duration(r.MaxAgeSeconds) * time.Second }

// Default returns built-in defaults.
func Default() Config {
	return Config{
		ListenAddr:       ":5555",
		AdminHTTPAddr:    ":8080",
		GRPCAddr:         ":50051",
		DataDir:          DefaultDataDir(),
		MaxServices:      64,
		MaxSessions:      256,
		UseMmap:          true,
		ServiceNameRegex: DefaultServiceNameRegex,
		FsyncOnFlush:     true,
		FlushOnShutdown:  true,
		Rotation:         Rotation{MaxBytes: 16 << 20},
		CatalogFsync:     "always",
	}
}

// Load reads configuration from a JSON or YAML file (by extension) over the
// defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// ResolvedLogDir returns LogDir, defaulting to <DataDir>/logs.
func (c Config) ResolvedLogDir() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(c.DataDir, "logs")
}

// MetaDir is where the service catalog is stored.
func (c Config) MetaDir() string { return filepath.Join(c.DataDir, "meta") }

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listenAddr is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("dataDir is required"))
	}
	if c.MaxServices <= 0 {
		errs = append(errs, fmt.Errorf("maxServices must be positive, got %d", c.MaxServices))
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("maxSessions must be positive, got %d", c.MaxSessions))
	}
	if c.PageSize != 0 && c.PageSize < minPageSize {
		errs = append(errs, fmt.Errorf("pageSize must be 0 or at least %d, got %d", minPageSize, c.PageSize))
	}
	if _, err := regexp.Compile(c.ServiceNameRegex); err != nil {
		errs = append(errs, fmt.Errorf("serviceNameRegex: %w", err))
	}
	if c.Rotation.MaxBytes < 0 || c.Rotation.MaxAgeSeconds < 0 {
		errs = append(errs, errors.New("rotation limits must not be negative"))
	}
	if _, err := pebblestore.ParseFsyncMode(c.CatalogFsync); err != nil {
		errs = append(errs, fmt.Errorf("catalogFsync: %w", err))
	}
	return errors.Join(errs...)
}
