package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/org/feedbackvault/internal/app"
	"github.com/org/feedbackvault/internal/config"
	"github.com/org/feedbackvault/internal/lambdaapi"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	app.ConfigureLogging(cfg)

	// Built once per cold start and reused across invocations.
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	lambda.Start(lambdaapi.NewHandler(a.Service).Handle)
}
