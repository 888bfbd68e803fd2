// Package ai wraps the text-generation provider used by the brew pipeline.
package ai

import (
	"context"
	"errors"
	"strings"
)

// Request is one single-turn completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator returns the provider's text for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var (
	ErrEmptyResponse = errors.New("ai: empty response")
	ErrNoJSON        = errors.New("ai: no JSON value in response")
	ErrNotConfigured = errors.New("ai: provider not configured")
)

// Disabled fails every call with ErrNotConfigured.
var Disabled Generator = GeneratorFunc(func(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
})

// ExtractJSON strips markdown code fences and surrounding prose from a model
// response and returns the outermost JSON object or array it contains.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", ErrEmptyResponse
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}
