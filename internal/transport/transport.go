package transport

import (
	"context"
	"errors"

	"github.com/zmcp/odata-sample/internal/constants"
	"github.com/zmcp/odata-sample/internal/models"
)

// ErrMetadataRequired is returned when a request carries no metadata document
var ErrMetadataRequired = errors.New(constants.ErrMetadataRequired)

// Transport defines the interface for the ways metadata reaches the converter
type Transport interface {
	// Start begins serving and blocks until the work is done or ctx is cancelled
	Start(ctx context.Context) error

	// Close gracefully shuts down the transport
	Close() error
}

// Handler converts one metadata document into its sample result
type Handler func(ctx context.Context, metadata []byte) (*models.ParsedResult, error)
