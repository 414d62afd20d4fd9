// Package config loads runtime configuration. The embedded CUE schema is the
// single source of defaults and constraints; user files and environment
// overrides are unified with it before decoding.
package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/matthewbaird/rentalops/internal/apperr"
)

//go:embed schema.cue
var schemaSource string

// Config holds the decoded configuration.
type Config struct {
	ProposalValidityDays      int          `json:"proposal_validity_days"`
	DefaultCurrency           string       `json:"default_currency"`
	InspectionDurationMinutes int          `json:"inspection_duration_minutes"`
	SweepSchedule             string       `json:"sweep_schedule"`
	Store                     StoreConfig  `json:"store"`
	Lock                      LockConfig   `json:"lock"`
	Notify                    NotifyConfig `json:"notify"`
	LogMode                   string       `json:"log_mode"`
}

// StoreConfig selects the snapshot store backend.
type StoreConfig struct {
	Driver string `json:"driver"` // "memory" or "sqlite"
	DSN    string `json:"dsn"`
}

// LockConfig selects the lock manager backend.
type LockConfig struct {
	Driver    string `json:"driver"` // "local" or "redis"
	RedisAddr string `json:"redis_addr"`
}

type NotifyConfig struct {
	Recipient string `json:"recipient"`
	MinWeight string `json:"min_weight"`
}

func (c Config) ProposalValidity() time.Duration {
	return time.Duration(c.ProposalValidityDays) * 24 * time.Hour
}

func (c Config) InspectionDuration() time.Duration {
	return time.Duration(c.InspectionDurationMinutes) * time.Minute
}

type override struct {
	env     string
	path    string
	integer bool
}

var overrides = []override{
	{env: "RENTALOPS_PROPOSAL_VALIDITY_DAYS", path: "proposal_validity_days", integer: true},
	{env: "RENTALOPS_DEFAULT_CURRENCY", path: "default_currency"},
	{env: "RENTALOPS_INSPECTION_DURATION_MINUTES", path: "inspection_duration_minutes", integer: true},
	{env: "RENTALOPS_SWEEP_SCHEDULE", path: "sweep_schedule"},
	{env: "RENTALOPS_STORE_DRIVER", path: "store.driver"},
	{env: "DATABASE_URL", path: "store.dsn"},
	{env: "RENTALOPS_LOCK_DRIVER", path: "lock.driver"},
	{env: "REDIS_ADDR", path: "lock.redis_addr"},
	{env: "RENTALOPS_NOTIFY_RECIPIENT", path: "notify.recipient"},
	{env: "RENTALOPS_NOTIFY_MIN_WEIGHT", path: "notify.min_weight"},
	{env: "RENTALOPS_LOG_MODE", path: "log_mode"},
}

// Load reads the optional CUE or JSON file at path (empty means defaults
// only), applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	var src []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, apperr.Validation("config.load", "reading %s: %v", path, err)
		}
		src = data
	}
	return build(src, path, os.LookupEnv)
}

// Parse is Load for in-memory sources. Environment overrides still apply.
func Parse(src []byte) (Config, error) {
	return build(src, "config.cue", os.LookupEnv)
}

// Default returns the schema defaults without reading the environment.
func Default() Config {
	cfg, err := build(nil, "", func(string) (string, bool) { return "", false })
	if err != nil {
		panic("config: embedded schema is invalid: " + err.Error())
	}
	return cfg
}

func build(src []byte, name string, lookup func(string) (string, bool)) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, apperr.Validation("config.schema", "%v", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if len(src) > 0 {
		user := ctx.CompileBytes(src, cue.Filename(name))
		if err := user.Err(); err != nil {
			return Config{}, apperr.Validation("config.parse", "%v", err)
		}
		v = v.Unify(user)
	}

	for _, o := range overrides {
		raw, ok := lookup(o.env)
		if !ok || raw == "" {
			continue
		}
		if o.integer {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Config{}, apperr.Validation("config.env", "%s must be an integer, got %q", o.env, raw)
			}
			v = v.FillPath(cue.ParsePath(o.path), n)
			continue
		}
		v = v.FillPath(cue.ParsePath(o.path), raw)
	}

	if err := v.Validate(); err != nil {
		return Config{}, apperr.Validation("config.validate", "%v", err)
	}
	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, apperr.Validation("config.decode", "%v", err)
	}
	return cfg, nil
}
