// Package config provides Viper-based configuration loading for the
// progression server and its admin tooling.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds listener and scheduling settings for progressiond.
type ServerConfig struct {
	// GRPCHost is the bind address for the health/gRPC listener.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the health/gRPC listener.
	GRPCPort int `mapstructure:"grpc_port"`
	// DailyResetInterval is how often the daily bonus-exp allowance is refreshed.
	DailyResetInterval time.Duration `mapstructure:"daily_reset_interval"`
	// FlushInterval is how often dirty player records are written back.
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	// EffectTickInterval is how often timed standing effects count down.
	EffectTickInterval time.Duration `mapstructure:"effect_tick_interval"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.GRPCHost, s.GRPCPort)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// ProgressionConfig holds the tuning knobs of the skill engine.
type ProgressionConfig struct {
	// Thresholds is the ascending list of skill levels that each award one ability point.
	Thresholds []int `mapstructure:"thresholds"`
	// DeadEndCheckpoint is the lowest skill level at which the dead-end point may be granted.
	DeadEndCheckpoint int `mapstructure:"dead_end_checkpoint"`
	// MinExpToRoll is the accumulator value below which no skill-up roll happens.
	MinExpToRoll int `mapstructure:"min_exp_to_roll"`
	// DailySkillPoints is the number of full-rate gains granted per day.
	DailySkillPoints int `mapstructure:"daily_skill_points"`
	// BonusTraitDailySkills is the extra daily allowance for players with the bonus-exp trait.
	BonusTraitDailySkills int `mapstructure:"bonus_trait_daily_skills"`
	// SlowGainDivisor divides exp once the daily allowance is spent.
	SlowGainDivisor float64 `mapstructure:"slow_gain_divisor"`
	// RequireApproval blocks skill gain for unapproved players.
	RequireApproval bool `mapstructure:"require_approval"`
	// SpecialtyAllowed is how many skills may sit above the basic cap.
	SpecialtyAllowed int `mapstructure:"specialty_allowed"`
	// BonusSpecialtyAllowed is added to SpecialtyAllowed for players with bonus skills.
	BonusSpecialtyAllowed int `mapstructure:"bonus_specialty_allowed"`
	// ZeroesForBonusSkills is how many skills must stay at zero to earn bonus skills.
	ZeroesForBonusSkills int `mapstructure:"zeroes_for_bonus_skills"`
}

// GateConfig holds ability-usage gate settings.
type GateConfig struct {
	// UniversalWait is the command lag applied after every ability use.
	UniversalWait time.Duration `mapstructure:"universal_wait"`
}

// ContentConfig points at on-disk content.
type ContentConfig struct {
	// CatalogDir holds skill and ability YAML files.
	CatalogDir string `mapstructure:"catalog_dir"`
	// EffectsDir holds standing effect YAML files; empty disables them.
	EffectsDir string `mapstructure:"effects_dir"`
	// ScriptsDir holds Lua sale hooks; empty disables scripting.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// ScriptInstructionLimit bounds each Lua hook call; 0 uses the default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Gate        GateConfig        `mapstructure:"gate"`
	Content     ContentConfig     `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateServer(c.Server),
		validateDatabase(c.Database),
		validateLogging(c.Logging),
		validateProgression(c.Progression),
		validateGate(c.Gate),
		validateContent(c.Content),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.GRPCHost == "" {
		errs = append(errs, "server.grpc_host must not be empty")
	}
	if s.GRPCPort < 1 || s.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.grpc_port must be 1-65535, got %d", s.GRPCPort))
	}
	if s.DailyResetInterval <= 0 {
		errs = append(errs, "server.daily_reset_interval must be positive")
	}
	if s.FlushInterval <= 0 {
		errs = append(errs, "server.flush_interval must be positive")
	}
	if s.EffectTickInterval <= 0 {
		errs = append(errs, "server.effect_tick_interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateProgression(p ProgressionConfig) error {
	var errs []string
	if len(p.Thresholds) == 0 {
		errs = append(errs, "progression.thresholds must not be empty")
	} else if !slices.IsSorted(p.Thresholds) || p.Thresholds[0] < 0 {
		errs = append(errs, "progression.thresholds must be ascending and non-negative")
	}
	if p.DeadEndCheckpoint < 0 {
		errs = append(errs, fmt.Sprintf("progression.dead_end_checkpoint must be >= 0, got %d", p.DeadEndCheckpoint))
	}
	if p.MinExpToRoll < 0 || p.MinExpToRoll > 100 {
		errs = append(errs, fmt.Sprintf("progression.min_exp_to_roll must be 0-100, got %d", p.MinExpToRoll))
	}
	if p.DailySkillPoints < 0 || p.BonusTraitDailySkills < 0 {
		errs = append(errs, "progression daily allowances must not be negative")
	}
	if p.SlowGainDivisor < 1 {
		errs = append(errs, fmt.Sprintf("progression.slow_gain_divisor must be >= 1, got %g", p.SlowGainDivisor))
	}
	if p.SpecialtyAllowed < 0 || p.BonusSpecialtyAllowed < 0 || p.ZeroesForBonusSkills < 0 {
		errs = append(errs, "progression specialty limits must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGate(g GateConfig) error {
	if g.UniversalWait < 0 {
		return errors.New("gate.universal_wait must not be negative")
	}
	return nil
}

func validateContent(c ContentConfig) error {
	if c.CatalogDir == "" {
		return errors.New("content.catalog_dir must not be empty")
	}
	if c.ScriptInstructionLimit < 0 {
		return errors.New("content.script_instruction_limit must not be negative")
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with ADV_ prefix
	v.SetEnvPrefix("ADV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadDatabase reads only the database section of the file at path, for
// tools that must run before the rest of the configuration is complete.
//
// Postcondition: Returns a valid DatabaseConfig or a non-nil error.
func LoadDatabase(path string) (DatabaseConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ADV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return DatabaseConfig{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return DatabaseConfig{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := validateDatabase(cfg.Database); err != nil {
		return DatabaseConfig{}, err
	}
	return cfg.Database, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults installs every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_host", "127.0.0.1")
	v.SetDefault("server.grpc_port", 50061)
	v.SetDefault("server.daily_reset_interval", "24h")
	v.SetDefault("server.flush_interval", "5m")
	v.SetDefault("server.effect_tick_interval", "6s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "advancement")
	v.SetDefault("database.password", "advancement")
	v.SetDefault("database.name", "advancement")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("progression.thresholds", []int{1, 5, 10, 15, 20, 25, 30, 40, 50, 60, 70, 75, 80, 90, 100})
	v.SetDefault("progression.dead_end_checkpoint", 10)
	v.SetDefault("progression.min_exp_to_roll", 10)
	v.SetDefault("progression.daily_skill_points", 15)
	v.SetDefault("progression.bonus_trait_daily_skills", 5)
	v.SetDefault("progression.slow_gain_divisor", 50.0)
	v.SetDefault("progression.require_approval", false)
	v.SetDefault("progression.specialty_allowed", 2)
	v.SetDefault("progression.bonus_specialty_allowed", 1)
	v.SetDefault("progression.zeroes_for_bonus_skills", 2)

	v.SetDefault("gate.universal_wait", "1250ms")

	v.SetDefault("content.catalog_dir", "content/skills")
	v.SetDefault("content.effects_dir", "content/effects")
	v.SetDefault("content.scripts_dir", "")
	v.SetDefault("content.script_instruction_limit", 0)
}
