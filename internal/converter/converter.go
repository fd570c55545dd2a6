// Package converter runs the full metadata to sample pipeline: fetch or
// receive an EDMX document, parse it, and resolve the sample tree.
package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zmcp/odata-sample/internal/client"
	"github.com/zmcp/odata-sample/internal/debug"
	"github.com/zmcp/odata-sample/internal/metadata"
	"github.com/zmcp/odata-sample/internal/models"
	"github.com/zmcp/odata-sample/internal/resolver"
)

// ErrNoClient is returned by ConvertURL when no metadata client is configured
var ErrNoClient = errors.New("no metadata client configured")

// Converter turns EDMX documents into sample results. It holds no
// per-call state and is safe for concurrent use once configured.
type Converter struct {
	opts    metadata.Options
	clock   resolver.Clock
	client  *client.MetadataClient
	tracer  *debug.TraceLogger
	verbose bool
}

// NewConverter creates a converter using the wall clock
func NewConverter(opts metadata.Options, verbose bool) *Converter {
	return &Converter{
		opts:    opts,
		clock:   resolver.SystemClock,
		verbose: verbose,
	}
}

// SetClock overrides the clock used for date samples
func (c *Converter) SetClock(clock resolver.Clock) {
	if clock != nil {
		c.clock = clock
	}
}

// SetClient configures the client used by ConvertURL
func (c *Converter) SetClient(mc *client.MetadataClient) {
	c.client = mc
}

// SetTracer sets the trace logger for debugging
func (c *Converter) SetTracer(tracer *debug.TraceLogger) {
	c.tracer = tracer
}

// Convert parses an EDMX document and resolves its sample result
func (c *Converter) Convert(ctx context.Context, data []byte) (*models.ParsedResult, error) {
	return c.convert(ctx, "request", data)
}

// ConvertURL fetches $metadata through the configured client and converts it
func (c *Converter) ConvertURL(ctx context.Context) (*models.ParsedResult, error) {
	if c.client == nil {
		return nil, ErrNoClient
	}

	data, err := c.client.FetchMetadata(ctx)
	if err != nil {
		c.tracer.LogError("Failed to fetch metadata", err, debug.MaskURL(c.client.BaseURL()))
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}

	return c.convert(ctx, c.client.BaseURL()+"$metadata", data)
}

func (c *Converter) convert(ctx context.Context, source string, data []byte) (*models.ParsedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.tracer.LogInput(source, len(data))

	start := time.Now()
	schema, err := metadata.ParseSchema(data, c.opts)
	if err != nil {
		c.tracer.LogError("Failed to parse metadata", err, map[string]interface{}{"source": debug.MaskURL(source)})
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	summary := metadata.Summarize(schema)
	c.tracer.LogParsed(summary, time.Since(start))
	if c.verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Parsed schema %s (OData %s): %d complex types, %d entity types, %d actions, %d functions\n",
			summary.Namespace, summary.Version, summary.ComplexTypes, summary.EntityTypes, summary.Actions, summary.Functions)
	}

	result := resolver.Resolve(schema, c.clock)

	c.tracer.LogResult(map[string]int{
		"actions":      len(result.Actions),
		"functions":    len(result.Functions),
		"entities":     result.Entities.Len(),
		"complexTypes": result.ComplexTypes.Len(),
	})

	return result, nil
}
