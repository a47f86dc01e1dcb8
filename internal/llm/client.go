package llm

import (
	"context"
	"io"

	"hfllm/internal/models"
)

// Client defines the interface for LLM clients.
type Client interface {
	// StreamRequest sends the whole conversation and writes reply fragments to
	// out as they arrive. It returns the complete reply once the stream ends.
	StreamRequest(ctx context.Context, history []models.Message, out io.Writer) (string, error)
}
