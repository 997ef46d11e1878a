// Package llm names the black-box text generator the classifier and
// summarizer call, and ships the Bedrock-backed default implementation.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// TextGenerator produces a completion for a prompt. Implementations may
// be slow and must be called through the worker pool; no streaming.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// ParseResult extracts the first JSON object from a model completion and
// flattens its values to strings. Models wrap the object in prose often
// enough that strict unmarshalling of the whole completion is useless.
func ParseResult(completion string) (map[string]string, error) {
	start := strings.Index(completion, "{")
	end := strings.LastIndex(completion, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in completion")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(completion[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("parsing completion: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[strings.ToLower(k)] = val
		case nil:
			// skip
		default:
			out[strings.ToLower(k)] = fmt.Sprintf("%v", val)
		}
	}
	return out, nil
}

// Merge combines two classification passes. Keys from the second pass win
// only where the first pass produced nothing; unknown keys are preserved
// for the caller to stash in the alert's extension map.
func Merge(first, second map[string]string) map[string]string {
	out := make(map[string]string, len(first)+len(second))
	for k, v := range second {
		out[k] = v
	}
	for k, v := range first {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
