// Package config provides layered configuration loading for the PIXELock
// service: struct defaults overlaid by PIXELOCK_* environment variables, then
// validated. Loaders are package variables so tests can inject failures.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces all environment variables read by Load.
const envPrefix = "PIXELOCK_"

// ByteSize is an int64 byte count that also unmarshals from human-friendly
// IEC strings ("10MiB", "128K").
type ByteSize int64

// Config holds the merged runtime configuration for the PIXELock service.
// Order of precedence (lowest to highest): defaults, then environment.
type Config struct {
	Addr            string        `koanf:"addr" validate:"required,ip_port"`
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	DataDir         string        `koanf:"data_dir" validate:"required,safe_path"`
	LinkTTL         time.Duration `koanf:"link_ttl" validate:"gt=0"`
	RevealSeconds   int           `koanf:"reveal_seconds" validate:"min=1,max=3600"`
	MaxAttempts     int           `koanf:"max_attempts" validate:"min=1,max=100"`
	SignedURLTTL    time.Duration `koanf:"signed_url_ttl" validate:"gt=0"`
	MaxUploadBytes  ByteSize      `koanf:"max_upload_bytes" validate:"gt=0"`
	SigningKey      string        `koanf:"signing_key" validate:"omitempty,min=32"`
	JanitorInterval time.Duration `koanf:"janitor_interval" validate:"gt=0"`
	PurgeGrace      time.Duration `koanf:"purge_grace" validate:"min=0"`
	MetricsToken    string        `koanf:"metrics_token"`
}

// DefaultAppConfig is the baseline configuration before any environment
// overlay. SigningKey has no safe default; when left empty the binary
// generates an ephemeral key at startup.
var DefaultAppConfig = Config{
	Addr:            ":8080",
	BaseURL:         "http://localhost:8080",
	DataDir:         "./data",
	LinkTTL:         24 * time.Hour,
	RevealSeconds:   15,
	MaxAttempts:     5,
	SignedURLTTL:    60 * time.Second,
	MaxUploadBytes:  10 << 20, // 10 MiB
	JanitorInterval: time.Minute,
	PurgeGrace:      time.Hour,
}

// defaultLoader populates k with DefaultAppConfig.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
}

// envLoader overlays PIXELOCK_* environment variables onto k.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil)
}

// registerValidators installs the custom validation rules used by Config.
var registerValidators = func(v *validator.Validate) error {
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		return err
	}
	return v.RegisterValidation("safe_path", validDataDir)
}

// Load merges defaults and environment, unmarshals, and validates. It
// returns the first configuration problem encountered.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", DecoderConfig: decoderConfig(&cfg)}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	v := validator.New()
	if err := registerValidators(v); err != nil {
		return nil, err
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if time.Duration(cfg.RevealSeconds)*time.Second >= cfg.LinkTTL {
		return nil, fmt.Errorf("reveal_seconds must be less than link_ttl")
	}
	if cfg.SignedURLTTL >= cfg.LinkTTL {
		return nil, fmt.Errorf("signed_url_ttl must be less than link_ttl")
	}
	return &cfg, nil
}

// decoderConfig wires the decode hooks for durations and byte sizes.
func decoderConfig(result any) *mapstructure.DecoderConfig {
	return &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToByteSize(),
		),
		Result:           result,
		WeaklyTypedInput: true,
	}
}

// stringToByteSize is a DecodeHookFunc converting strings like "10MiB" to ByteSize.
func stringToByteSize() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		n, err := ParseSize(data.(string))
		if err != nil {
			return nil, err
		}
		return ByteSize(n), nil
	}
}

// SQLiteDSN derives the ticket database DSN from the data directory.
func (c *Config) SQLiteDSN() string {
	return "file:" + filepath.Join(c.DataDir, "pixelock.db") +
		"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"
}

// ObjectsDir is the directory media objects are stored under.
func (c *Config) ObjectsDir() string {
	return filepath.Join(c.DataDir, "objects")
}

// validIPPort accepts "host:port" where host is empty or a literal IP and
// port is 1-65535. Hostnames are rejected so the bind address is unambiguous.
func validIPPort(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return p >= 1 && p <= 65535
}

// validDataDir rejects empty, root, and traversal-bearing data paths.
func validDataDir(fl validator.FieldLevel) bool {
	dir := fl.Field().String()
	if dir == "" {
		return false
	}
	clean := filepath.Clean(dir)
	if clean == "." || clean == "/" || clean == string(filepath.Separator) {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(clean), "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
