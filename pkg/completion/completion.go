package completion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
)

// ErrEmptyCompletion is returned when the model answers with no text
var ErrEmptyCompletion = errors.New("empty completion")

// Completer renders a prompt template and returns the model's answer
type Completer interface {
	Complete(ctx context.Context, template string, vars map[string]any) (string, error)
}

// Config holds the OpenAI-compatible endpoint settings
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	return nil
}

// LLMCompleter implements Completer on top of a langchaingo model
type LLMCompleter struct {
	model       llms.Model
	temperature float64
	timeout     time.Duration
}

// New creates a completer talking to an OpenAI-compatible chat endpoint
func New(cfg Config) (*LLMCompleter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// langchaingo requires a token, self-hosted endpoints ignore it
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	return &LLMCompleter{
		model:       llm,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

// Complete formats template with vars and sends it as a single prompt
func (c *LLMCompleter) Complete(ctx context.Context, template string, vars map[string]any) (string, error) {
	prompt, err := Render(template, vars)
	if err != nil {
		return "", err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	answer, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrEmptyCompletion
	}
	return answer, nil
}

// Render formats a Go-template prompt. Every var is declared as an input
// variable so a template referencing an unknown name fails instead of
// rendering "<no value>".
func Render(template string, vars map[string]any) (string, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, ref := range referencedVars(template) {
		if _, ok := vars[ref]; !ok {
			return "", fmt.Errorf("rendering prompt: missing variable %q", ref)
		}
	}

	prompt, err := prompts.NewPromptTemplate(template, names).Format(vars)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return prompt, nil
}

// referencedVars lists the {{.name}} references of a template
func referencedVars(template string) []string {
	var refs []string
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			return refs
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return refs
		}
		action := strings.TrimSpace(rest[start+2 : start+end])
		if name, ok := strings.CutPrefix(action, "."); ok && name != "" && !strings.ContainsAny(name, " .|()") {
			refs = append(refs, name)
		}
		rest = rest[start+end+2:]
	}
}
