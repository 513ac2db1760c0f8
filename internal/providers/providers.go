package providers

import (
	"context"
)

// Config represents the configuration for an LLM provider call. Images are
// data-URI payloads; each provider adapts them to its own wire shape.
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	Images      []string
}

// Provider defines the interface for a vision-capable LLM provider.
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}
