package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// InsecurePassphrase is the placeholder older deployments fell back to.
// It is refused unless explicitly allowed.
const InsecurePassphrase = "default_secret_key"

// Config is the process configuration, read once at start-up.
type Config struct {
	Server struct {
		ListenAddr     string  `yaml:"listen_addr"`
		TLSCertFile    string  `yaml:"tls_cert"`
		TLSKeyFile     string  `yaml:"tls_key"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`

		// TrustProxyHeaders takes the client address from X-Forwarded-For.
		// Enable only behind a proxy that overwrites the header.
		TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Store struct {
		Backend       string `yaml:"backend"`
		Table         string `yaml:"table"`
		Region        string `yaml:"region"`
		Endpoint      string `yaml:"endpoint"`
		AccessKey     string `yaml:"access_key"`
		SecretKey     string `yaml:"secret_key"`
		PostgresURL   string `yaml:"postgres_url"`
		MigrationsDir string `yaml:"migrations_dir"`
		AutoMigrate   bool   `yaml:"auto_migrate"`
	} `yaml:"store"`
	Crypto struct {
		Passphrase              string `yaml:"passphrase"`
		AllowInsecurePassphrase bool   `yaml:"allow_insecure_passphrase"`
	} `yaml:"crypto"`
	Auth struct {
		Mode             string `yaml:"mode"`
		JWTSecret        string `yaml:"jwt_secret"`
		JWTPublicKeyFile string `yaml:"jwt_public_key_file"`
		Issuer           string `yaml:"issuer"`
		Audience         string `yaml:"audience"`
		RequireScopes    bool   `yaml:"require_scopes"`
	} `yaml:"auth"`
	Feedback struct {
		RedactErrors            bool `yaml:"redact_errors"`
		LegacyPlaintextFallback bool `yaml:"legacy_plaintext_fallback"`
	} `yaml:"feedback"`
	Audit struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"audit"`
}

// Default returns the configuration used when no file or variable overrides a field.
func Default() Config {
	var c Config
	c.Server.ListenAddr = ":8080"
	c.Server.RateLimitRPS = 100
	c.Server.RateLimitBurst = 200
	c.Log.Level = "info"
	c.Store.Backend = "dynamodb"
	c.Store.Table = "feedback"
	c.Store.MigrationsDir = "migrations"
	c.Store.AutoMigrate = true
	c.Auth.Mode = "allow_all"
	c.Audit.Enabled = true
	return c
}

// Path returns the config file location: $FEEDBACK_CONFIG or ./config.yaml.
func Path() string {
	if v := os.Getenv("FEEDBACK_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

// Load reads the YAML file at path (a missing file is not an error), applies
// environment overrides and validates the result for a process that serves feedback.
func Load(path string) (Config, error) {
	return load(path, os.Getenv, Config.Validate)
}

// LoadAuthorizer is Load for the token authorizer, which never touches stored
// comments and so only needs the passphrase when the JWT key is derived from it.
func LoadAuthorizer(path string) (Config, error) {
	return load(path, os.Getenv, Config.ValidateAuthorizer)
}

func load(path string, getenv func(string) string, validate func(Config) error) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Debug().Str("file", path).Msg("config file not found, using defaults")
	default:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}
	return cfg, validate(cfg)
}

// applyEnv overrides file values. The DYNAMODB_TABLE and AES_SECRET_KEY names are
// kept from the Node.js deployment.
func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"FEEDBACK_LISTEN_ADDR":         &c.Server.ListenAddr,
		"FEEDBACK_TLS_CERT":            &c.Server.TLSCertFile,
		"FEEDBACK_TLS_KEY":             &c.Server.TLSKeyFile,
		"LOG_LEVEL":                    &c.Log.Level,
		"FEEDBACK_STORE":               &c.Store.Backend,
		"DYNAMODB_TABLE":               &c.Store.Table,
		"AWS_REGION":                   &c.Store.Region,
		"DYNAMODB_ENDPOINT":            &c.Store.Endpoint,
		"DATABASE_URL":                 &c.Store.PostgresURL,
		"FEEDBACK_MIGRATIONS_DIR":      &c.Store.MigrationsDir,
		"AES_SECRET_KEY":               &c.Crypto.Passphrase,
		"FEEDBACK_AUTH_MODE":           &c.Auth.Mode,
		"FEEDBACK_JWT_SECRET":          &c.Auth.JWTSecret,
		"FEEDBACK_JWT_PUBLIC_KEY_FILE": &c.Auth.JWTPublicKeyFile,
		"FEEDBACK_JWT_ISSUER":          &c.Auth.Issuer,
		"FEEDBACK_JWT_AUDIENCE":        &c.Auth.Audience,
	}
	for name, dst := range strs {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"FEEDBACK_LOG_PRETTY":                &c.Log.Pretty,
		"FEEDBACK_REDACT_ERRORS":             &c.Feedback.RedactErrors,
		"FEEDBACK_LEGACY_PLAINTEXT":          &c.Feedback.LegacyPlaintextFallback,
		"FEEDBACK_REQUIRE_SCOPES":            &c.Auth.RequireScopes,
		"FEEDBACK_AUTO_MIGRATE":              &c.Store.AutoMigrate,
		"FEEDBACK_AUDIT":                     &c.Audit.Enabled,
		"FEEDBACK_ALLOW_INSECURE_PASSPHRASE": &c.Crypto.AllowInsecurePassphrase,
		"FEEDBACK_TRUST_PROXY_HEADERS":       &c.Server.TrustProxyHeaders,
	}
	for name, dst := range bools {
		v := getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}
	return nil
}

// Validate checks the settings a feedback-serving process needs: the field
// passphrase, a usable store and a known auth mode.
func (c Config) Validate() error {
	if err := c.validatePassphrase(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return errors.New("store.postgres_url must be configured (or DATABASE_URL env var)")
		}
	case "dynamodb":
		if c.Store.Table == "" {
			return errors.New("store.table must be configured (or DYNAMODB_TABLE env var)")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return c.validateAuth()
}

// ValidateAuthorizer checks the settings the token authorizer needs. The store is
// ignored and the passphrase is required only for a derived HS256 key.
func (c Config) ValidateAuthorizer() error {
	if err := c.validateAuth(); err != nil {
		return err
	}
	if c.DerivesJWTSecret() {
		return c.validatePassphrase()
	}
	return nil
}

// DerivesJWTSecret reports whether the JWT signing key comes from the field passphrase.
func (c Config) DerivesJWTSecret() bool {
	return c.Auth.Mode == "jwt" && c.Auth.JWTSecret == "" && c.Auth.JWTPublicKeyFile == ""
}

func (c Config) validatePassphrase() error {
	if c.Crypto.Passphrase == "" {
		return errors.New("crypto.passphrase must be configured (or AES_SECRET_KEY env var)")
	}
	if c.Crypto.Passphrase == InsecurePassphrase && !c.Crypto.AllowInsecurePassphrase {
		return fmt.Errorf("refusing the placeholder passphrase %q", InsecurePassphrase)
	}
	return nil
}

func (c Config) validateAuth() error {
	switch c.Auth.Mode {
	case "allow_all", "jwt":
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	if c.Auth.JWTSecret != "" && c.Auth.JWTPublicKeyFile != "" {
		return errors.New("auth: set either jwt_secret or jwt_public_key_file, not both")
	}
	return nil
}
