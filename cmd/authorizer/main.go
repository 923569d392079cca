package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/org/feedbackvault/internal/app"
	"github.com/org/feedbackvault/internal/config"
	"github.com/org/feedbackvault/internal/crypto"
	"github.com/org/feedbackvault/internal/lambdaapi"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadAuthorizer(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	app.ConfigureLogging(cfg)

	// The field key is only touched when the HS256 secret is derived from it.
	var key crypto.Key
	if cfg.DerivesJWTSecret() {
		key = crypto.DeriveKey(cfg.Crypto.Passphrase)
	}
	authz, err := app.NewAuthorizer(cfg, key)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build authorizer")
	}
	lambda.Start(lambdaapi.NewAuthorizerHandler(authz).Handle)
}
