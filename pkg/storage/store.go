package storage

import (
	"errors"

	"github.com/cuemby/burrow/pkg/types"
)

// ErrNotFound is returned when an attempt does not exist
var ErrNotFound = errors.New("not found")

// Store defines the interface for brokering attempt storage
type Store interface {
	CreateAttempt(attempt *types.BrokeringAttempt) error
	GetAttempt(id string) (*types.BrokeringAttempt, error)
	ListAttempts() ([]*types.BrokeringAttempt, error)
	ListAttemptsByWorkspace(workspaceID string) ([]*types.BrokeringAttempt, error)
	UpdateAttempt(attempt *types.BrokeringAttempt) error
	DeleteAttempt(id string) error

	// Utility
	Close() error
}
