package app

import (
	"context"
	"fmt"
	"os"

	"github.com/org/feedbackvault/internal/auth"
	"github.com/org/feedbackvault/internal/config"
	"github.com/org/feedbackvault/internal/crypto"
	"github.com/org/feedbackvault/internal/feedback"
	"github.com/org/feedbackvault/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// jwtSubkeyContext binds the derived token-signing key to its purpose.
const jwtSubkeyContext = "feedback-jwt-v1"

// App bundles the components every entry point shares.
type App struct {
	Config     config.Config
	Store      storage.Store
	Service    *feedback.Service
	Authorizer auth.Authorizer
}

// ConfigureLogging sets the global zerolog level and output.
func ConfigureLogging(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return log.Logger
}

// New opens the configured store and builds the service and authorizer.
// The caller owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	key := crypto.DeriveKey(cfg.Crypto.Passphrase)

	authz, err := NewAuthorizer(cfg, key)
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc := feedback.NewService(store, crypto.NewCipher(key), feedback.Options{
		RedactErrors:            cfg.Feedback.RedactErrors,
		LegacyPlaintextFallback: cfg.Feedback.LegacyPlaintextFallback,
	})
	return &App{
		Config:     cfg,
		Store:      store,
		Service:    svc,
		Authorizer: authz,
	}, nil
}

// Close releases the store.
func (a *App) Close() {
	a.Store.Close()
}

// OpenStore connects the backend named by cfg.Store.Backend.
func OpenStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Store.Backend {
	case storage.BackendMemory:
		log.Warn().Msg("using in-memory store, feedback is lost on exit")
		return storage.NewMemoryBackend(), nil

	case storage.BackendPostgres:
		if cfg.Store.AutoMigrate {
			if err := storage.RunMigrations(cfg.Store.PostgresURL, cfg.Store.MigrationsDir); err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			log.Info().Msg("migrations applied")
		}
		store, err := storage.NewPostgresBackend(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		return store, nil

	case storage.BackendDynamoDB:
		store, err := storage.NewDynamoBackend(ctx, storage.DynamoConfig{
			Table:     cfg.Store.Table,
			Region:    cfg.Store.Region,
			Endpoint:  cfg.Store.Endpoint,
			AccessKey: cfg.Store.AccessKey,
			SecretKey: cfg.Store.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("creating dynamodb store: %w", err)
		}
		log.Info().Str("table", cfg.Store.Table).Msg("using dynamodb store")
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// NewAuthorizer builds the authorizer named by cfg.Auth.Mode.
func NewAuthorizer(cfg config.Config, key crypto.Key) (auth.Authorizer, error) {
	switch cfg.Auth.Mode {
	case auth.ModeAllowAll:
		log.Warn().Msg("allow-all authorizer enabled, every call is admitted")
		return auth.AllowAll{}, nil
	case auth.ModeJWT:
		jc := auth.JWTConfig{
			Issuer:        cfg.Auth.Issuer,
			Audience:      cfg.Auth.Audience,
			RequireScopes: cfg.Auth.RequireScopes,
		}
		if cfg.Auth.JWTPublicKeyFile != "" {
			pem, err := os.ReadFile(cfg.Auth.JWTPublicKeyFile)
			if err != nil {
				return nil, fmt.Errorf("reading jwt public key: %w", err)
			}
			jc.PublicKeyPEM = pem
		} else {
			secret, err := JWTSecret(cfg, key)
			if err != nil {
				return nil, err
			}
			jc.HMACSecret = secret
		}
		return auth.NewJWTAuthorizer(jc)
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
}

// JWTSecret returns the configured HMAC secret, or one derived from the field key
// when none is set.
func JWTSecret(cfg config.Config, key crypto.Key) ([]byte, error) {
	if cfg.Auth.JWTSecret != "" {
		return []byte(cfg.Auth.JWTSecret), nil
	}
	return crypto.DeriveSubkey(key, jwtSubkeyContext)
}
