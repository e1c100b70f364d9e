// Package provider abstracts the LLM backend. The orchestrator depends
// only on the Provider interface; the OpenAI-compatible adapter is the
// one concrete implementation.
package provider

import "context"

// Request wraps a single completion call.
type Request struct {
	Model        string
	System       string
	Prompt       string
	Temperature  float32
	MaxTokens    int
	JSONResponse bool // ask the server for a JSON object response
}

// Response is the completed model output.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	PromptTokens int
	OutputTokens int
}

// Provider is the model backend interface.
type Provider interface {
	// Complete sends a prompt and returns the full response. It honors
	// ctx cancellation and deadlines.
	Complete(ctx context.Context, req Request) (Response, error)

	// Transcribe converts recorded audio to text.
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)

	// Name returns the provider name.
	Name() string
}
