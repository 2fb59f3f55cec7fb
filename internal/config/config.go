package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/tracker"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// #region types
// Config is the process configuration shared by every subcommand.
type Config struct {
	Tracker       TrackerConfig  `yaml:"tracker"`
	KnowledgeBase KBConfig       `yaml:"knowledge_base"`
	Snapshots     SnapshotConfig `yaml:"snapshots"`
	Server        ServerConfig   `yaml:"server"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// TrackerConfig is the static shape of every tracker the process builds.
type TrackerConfig struct {
	Intents           []string `yaml:"intents" validate:"required,unique,dive,required"`
	Slots             []string `yaml:"slots" validate:"required,unique,dive,required"`
	AgentInformSlots  []string `yaml:"agent_inform_slots" validate:"unique,dive,required"`
	AgentRequestSlots []string `yaml:"agent_request_slots" validate:"unique,dive,required"`
	MaxRoundNum       int      `yaml:"max_round_num" validate:"gte=1"`
	DefaultKey        string   `yaml:"default_key" validate:"required"`
}

// KBConfig selects where records come from.
type KBConfig struct {
	Source string `yaml:"source" validate:"oneof=json sqlite postgres remote"`
	Path   string `yaml:"path" validate:"required_if=Source json"`
	DSN    string `yaml:"dsn" validate:"required_if=Source sqlite,required_if=Source postgres"`
	Table  string `yaml:"table" validate:"required"`
	Addr   string `yaml:"addr" validate:"required_if=Source remote"`
}

// SnapshotConfig controls episode persistence.
type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// ServerConfig is the knowledge-base gRPC listener.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// LoggingConfig selects the zap level.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// #endregion types

// #region defaults
// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Tracker: TrackerConfig{
			Intents: []string{"inform", "request", "thanks", "match_found", "done", "reject"},
			Slots: []string{
				dialogue.DefaultMatchKey, "name_activity", "type_activity", "holder", "reward",
				"contact", "register", "joiner", "time", "address", "name_place", "works",
			},
			AgentInformSlots: []string{
				"name_activity", "type_activity", "holder", "reward",
				"contact", "register", "joiner", "time", "address", "name_place", "works",
			},
			AgentRequestSlots: []string{"name_activity", "type_activity", "holder", "time", "name_place", "works"},
			MaxRoundNum:       20,
			DefaultKey:        dialogue.DefaultMatchKey,
		},
		KnowledgeBase: KBConfig{
			Source: "json",
			Path:   "data/activities.json",
			Table:  "activities",
		},
		Snapshots: SnapshotConfig{Path: "dialogue_state.db"},
		Server:    ServerConfig{Addr: "localhost:50061"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// TrackerConfig converts to the tracker's configuration.
func (c TrackerConfig) TrackerConfig() tracker.Config {
	return tracker.Config{
		Intents:           append([]string(nil), c.Intents...),
		Slots:             append([]string(nil), c.Slots...),
		AgentInformSlots:  append([]string(nil), c.AgentInformSlots...),
		AgentRequestSlots: append([]string(nil), c.AgentRequestSlots...),
		MaxRoundNum:       c.MaxRoundNum,
		DefaultKey:        c.DefaultKey,
	}
}

// #endregion defaults

// #region load
// Load reads path over the defaults, then applies DST_* environment
// overrides and validates. A missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file into the process environment. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.KnowledgeBase.Source = envOr("DST_KB_SOURCE", cfg.KnowledgeBase.Source)
	cfg.KnowledgeBase.Path = envOr("DST_KB_PATH", cfg.KnowledgeBase.Path)
	cfg.KnowledgeBase.DSN = envOr("DST_KB_DSN", cfg.KnowledgeBase.DSN)
	cfg.KnowledgeBase.Table = envOr("DST_KB_TABLE", cfg.KnowledgeBase.Table)
	cfg.KnowledgeBase.Addr = envOr("DST_KB_ADDR", cfg.KnowledgeBase.Addr)
	cfg.Snapshots.Path = envOr("DST_SNAPSHOT_DB", cfg.Snapshots.Path)
	cfg.Server.Addr = envOr("DST_SERVER_ADDR", cfg.Server.Addr)
	cfg.Logging.Level = envOr("DST_LOG_LEVEL", cfg.Logging.Level)
	cfg.Tracker.DefaultKey = envOr("DST_DEFAULT_KEY", cfg.Tracker.DefaultKey)

	if v := os.Getenv("DST_SNAPSHOTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DST_SNAPSHOTS: %w", err)
		}
		cfg.Snapshots.Enabled = b
	}
	if v := os.Getenv("DST_MAX_ROUND"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DST_MAX_ROUND: %w", err)
		}
		cfg.Tracker.MaxRoundNum = n
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load

// #region validate
var validate = validator.New()

// Validate checks field constraints and that every referenced slot is
// registered.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	known := make(map[string]struct{}, len(cfg.Tracker.Slots))
	for _, s := range cfg.Tracker.Slots {
		known[s] = struct{}{}
	}
	var missing []string
	for _, group := range [][]string{cfg.Tracker.AgentInformSlots, cfg.Tracker.AgentRequestSlots, {cfg.Tracker.DefaultKey}} {
		for _, s := range group {
			if _, ok := known[s]; !ok {
				missing = append(missing, s)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid config: unregistered slots %s", strings.Join(missing, ", "))
	}

	var mapping []string
	for _, s := range dialogue.MappingSlots {
		if _, ok := known[s]; !ok {
			mapping = append(mapping, s)
		}
	}
	if len(mapping) > 0 && len(mapping) < len(dialogue.MappingSlots) {
		return fmt.Errorf("invalid config: partial mapping slot group, missing %s", strings.Join(mapping, ", "))
	}
	return nil
}

// #endregion validate
