package storage

import (
	"context"
	"errors"

	"github.com/org/feedbackvault/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the durable key-value store behind the feedback service.
// Records are keyed by Feedback.ID; Put overwrites, Delete of a missing key succeeds.
type Store interface {
	Put(ctx context.Context, rec *models.Feedback) error
	Get(ctx context.Context, id string) (*models.Feedback, error)
	Delete(ctx context.Context, id string) error

	// Lifecycle
	Close()
}

// Backend names accepted by configuration.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)
