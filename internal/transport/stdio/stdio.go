package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/zmcp/odata-sample/internal/constants"
	"github.com/zmcp/odata-sample/internal/debug"
	"github.com/zmcp/odata-sample/internal/models"
	"github.com/zmcp/odata-sample/internal/render"
	"github.com/zmcp/odata-sample/internal/transport"
)

// StdioTransport reads one metadata document from its input and writes the
// rendered result to its output
type StdioTransport struct {
	reader  io.Reader
	writer  io.Writer
	handler transport.Handler
	tracer  *debug.TraceLogger

	format  string
	indent  int
	depth   int
	maxSize int64
}

// New creates a stdio transport reading stdin and writing stdout
func New(handler transport.Handler) *StdioTransport {
	return &StdioTransport{
		reader:  os.Stdin,
		writer:  os.Stdout,
		handler: handler,
		format:  constants.FormatJSON,
		indent:  constants.DefaultIndent,
		maxSize: constants.DefaultMaxRequestSize,
	}
}

// SetInput replaces the input, for example with an opened metadata file
func (t *StdioTransport) SetInput(r io.Reader) {
	t.reader = r
}

// SetOutput replaces the output
func (t *StdioTransport) SetOutput(w io.Writer) {
	t.writer = w
}

// SetFormat selects the output format with its indent (json) and depth (tree)
func (t *StdioTransport) SetFormat(format string, indent, depth int) {
	t.format = format
	t.indent = indent
	t.depth = depth
}

// SetMaxSize limits how many bytes are read from the input
func (t *StdioTransport) SetMaxSize(size int64) {
	if size > 0 {
		t.maxSize = size
	}
}

// SetTracer sets the trace logger
func (t *StdioTransport) SetTracer(tracer *debug.TraceLogger) {
	t.tracer = tracer
}

// Start reads the input to EOF, converts it and writes the result. Failures
// are written to the output as an error object and returned.
func (t *StdioTransport) Start(ctx context.Context) error {
	data, err := t.readInput()
	if err != nil {
		return t.WriteError(err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return t.WriteError(transport.ErrMetadataRequired)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := t.handler(ctx, data)
	if err != nil {
		return t.WriteError(err)
	}

	return t.WriteResult(result)
}

func (t *StdioTransport) readInput() ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(t.reader, t.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	if int64(len(data)) > t.maxSize {
		return nil, fmt.Errorf("metadata exceeds %d bytes", t.maxSize)
	}

	t.tracer.Log("TRANSPORT_IN", "Metadata read", map[string]interface{}{
		"size": len(data),
	})
	return data, nil
}

// WriteResult renders result in the configured format
func (t *StdioTransport) WriteResult(result *models.ParsedResult) error {
	var err error
	if t.format == constants.FormatTree {
		err = render.Tree(t.writer, result, t.depth)
	} else {
		err = render.JSON(t.writer, result, t.indent)
	}
	if err != nil {
		t.tracer.LogError("Failed to write result", err, nil)
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// WriteError writes {"error": ...} to the output and returns err
func (t *StdioTransport) WriteError(err error) error {
	t.tracer.LogError("Conversion failed", err, nil)

	data, marshalErr := json.Marshal(models.ErrorResponse{Error: err.Error()})
	if marshalErr != nil {
		return err
	}
	data = append(data, '\n')
	t.writer.Write(data)
	return err
}

// Close closes the input when it is closable and not stdin
func (t *StdioTransport) Close() error {
	if closer, ok := t.reader.(io.Closer); ok && t.reader != os.Stdin {
		return closer.Close()
	}
	return nil
}
