// Package config loads famtree settings from a YAML file, then applies
// FAMTREE_* environment overrides on top of the defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FAMTREE_"

type Config struct {
	Storage  Storage  `yaml:"storage"`
	Log      Log      `yaml:"log"`
	Notifier Notifier `yaml:"notifier"`
	Tree     Tree     `yaml:"tree"`
}

// Storage locates the person and link files and the local database that
// holds consultation and audit records.
type Storage struct {
	DataDir     string `yaml:"data_dir" validate:"required"`
	PersonsFile string `yaml:"persons_file" validate:"required"`
	LinksFile   string `yaml:"links_file" validate:"required"`
	Database    string `yaml:"database" validate:"required"`
}

type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Notifier selects how workflow notifications leave the process.
type Notifier struct {
	Kind       string `yaml:"kind" validate:"oneof=log amqp"`
	URL        string `yaml:"url" validate:"required_if=Kind amqp"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key" validate:"required_if=Kind amqp"`
}

type Tree struct {
	// MaxDepth bounds family-link construction; zero means unbounded.
	MaxDepth int `yaml:"max_depth" validate:"gte=0"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Storage: Storage{
			DataDir:     "data",
			PersonsFile: "persons.csv",
			LinksFile:   "links.csv",
			Database:    "famtree.db",
		},
		Log: Log{Level: "info", Format: "text"},
		Notifier: Notifier{
			Kind:       "log",
			Exchange:   "famtree",
			RoutingKey: "notifications",
		},
	}
}

// Load reads path (optional), applies environment overrides and validates
// the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"DATA_DIR":         &c.Storage.DataDir,
		"PERSONS_FILE":     &c.Storage.PersonsFile,
		"LINKS_FILE":       &c.Storage.LinksFile,
		"DATABASE":         &c.Storage.Database,
		"LOG_LEVEL":        &c.Log.Level,
		"LOG_FORMAT":       &c.Log.Format,
		"NOTIFIER":         &c.Notifier.Kind,
		"AMQP_URL":         &c.Notifier.URL,
		"AMQP_EXCHANGE":    &c.Notifier.Exchange,
		"AMQP_ROUTING_KEY": &c.Notifier.RoutingKey,
	}
	for name, dst := range str {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup(envPrefix + "MAX_DEPTH"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sMAX_DEPTH: %w", envPrefix, err)
		}
		c.Tree.MaxDepth = n
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	return nil
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DatabasePath resolves Database against DataDir. Absolute paths and
// ":memory:" are returned as is.
func (s Storage) DatabasePath() string {
	if s.Database == ":memory:" || filepath.IsAbs(s.Database) {
		return s.Database
	}
	return filepath.Join(s.DataDir, s.Database)
}
