package rag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ollama/ollama/api"
)

// Generation defaults, mirrored by the configuration keys.
const (
	DefaultTemperature    = 0.7
	DefaultGenMaxTokens   = 2048
	DefaultOllamaGenModel = "llama3.2"
)

// errStopReached aborts a backend stream once the driver has seen a stop
// sequence; it is swallowed before reaching callers.
var errStopReached = errors.New("stop sequence reached")

// DefaultStopSequences terminate a rambling answer at the template
// boundaries of the composed prompt.
var DefaultStopSequences = []string{"Question:", "\n\n\n"}

// GenerateOptions are the per-request knobs of the generation driver.
type GenerateOptions struct {
	// MaxTokens bounds the emitted tokens; zero means the default.
	MaxTokens int
	// Temperature is the sampling temperature.
	Temperature float64
	// StopSequences terminate the stream when any of them appears. Nil
	// means DefaultStopSequences.
	StopSequences []string
}

// GeneratorBackend is the pluggable language model runtime. Stream calls
// emit with raw text chunks in model order until completion or until emit
// returns an error, which aborts the stream.
type GeneratorBackend interface {
	Stream(ctx context.Context, prompt string, opts GenerateOptions, emit func(chunk string) error) error
	ModelName() string
}

// OllamaGenerator streams completions from a local Ollama daemon.
type OllamaGenerator struct {
	client *api.Client
	model  string
	logger Logger
}

// NewOllamaGenerator connects to the local daemon and verifies it is
// reachable. Load-time diagnostics go to the logger, never into a token
// stream. A failed probe is reported as a model load failure so callers
// can degrade to retrieval-only answers.
func NewOllamaGenerator(model, baseURL string, logger Logger) (*OllamaGenerator, error) {
	if model == "" {
		model = DefaultOllamaGenModel
	}
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	if logger == nil {
		logger = GlobalLogger
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base url %q: %v", ErrModelLoadFailure, baseURL, err)
	}
	client := api.NewClient(u, http.DefaultClient)
	if err := client.Heartbeat(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: ollama daemon unreachable: %v", ErrModelLoadFailure, err)
	}
	logger.Info("generation backend ready", "model", model, "address", baseURL)
	return &OllamaGenerator{client: client, model: model, logger: logger}, nil
}

// Stream implements GeneratorBackend.
func (g *OllamaGenerator) Stream(ctx context.Context, prompt string, opts GenerateOptions, emit func(chunk string) error) error {
	stream := true
	req := &api.GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": opts.Temperature,
			"num_predict": opts.MaxTokens,
			"stop":        opts.StopSequences,
		},
	}
	return g.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		if resp.Response == "" {
			return nil
		}
		return emit(resp.Response)
	})
}

// ModelName returns the generation model identifier.
func (g *OllamaGenerator) ModelName() string { return g.model }

// Generator drives a backend and enforces the streaming contract: tokens
// arrive in model order, every emitted token is whole text, and the stream
// terminates on a stop sequence, the token budget, model EOS or context
// cancellation.
type Generator struct {
	backend     GeneratorBackend
	maxTokens   int
	temperature float64
	stops       []string
	logger      Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGenMaxTokens sets the default token budget.
func WithGenMaxTokens(n int) GeneratorOption {
	return func(g *Generator) { g.maxTokens = n }
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) GeneratorOption {
	return func(g *Generator) { g.temperature = t }
}

// WithStopSequences replaces the default stop sequences.
func WithStopSequences(stops ...string) GeneratorOption {
	return func(g *Generator) { g.stops = stops }
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(l Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator wraps a backend with the driver defaults.
func NewGenerator(backend GeneratorBackend, options ...GeneratorOption) *Generator {
	g := &Generator{
		backend:     backend,
		maxTokens:   DefaultGenMaxTokens,
		temperature: DefaultTemperature,
		stops:       DefaultStopSequences,
		logger:      GlobalLogger,
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// ModelName returns the backend's model identifier.
func (g *Generator) ModelName() string { return g.backend.ModelName() }

// Generate streams the completion for prompt into emit. Stop sequences are
// enforced driver-side with a holdback buffer, so a stop string split
// across backend chunks still terminates the stream and is never emitted.
func (g *Generator) Generate(ctx context.Context, prompt string, opts GenerateOptions, emit func(token string) error) error {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = g.maxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = g.temperature
	}
	if opts.StopSequences == nil {
		opts.StopSequences = g.stops
	}

	holdback := 0
	for _, s := range opts.StopSequences {
		if len(s) > holdback {
			holdback = len(s)
		}
	}
	if holdback > 0 {
		holdback--
	}

	var pending string
	stopped := false
	err := g.backend.Stream(ctx, prompt, opts, func(chunk string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		pending += chunk

		if idx := firstStop(pending, opts.StopSequences); idx >= 0 {
			stopped = true
			if idx > 0 {
				if err := emit(pending[:idx]); err != nil {
					return err
				}
			}
			pending = ""
			return errStopReached
		}

		flush := len(pending) - holdback
		flush = runeBoundary(pending, flush)
		if flush > 0 {
			out := pending[:flush]
			pending = pending[flush:]
			return emit(out)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Some backends wrap the abort error; match by message as well.
		if !errors.Is(err, errStopReached) && !strings.Contains(err.Error(), errStopReached.Error()) {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !stopped && pending != "" {
		return emit(pending)
	}
	return nil
}

// firstStop returns the earliest index at which any stop sequence occurs,
// or -1.
func firstStop(s string, stops []string) int {
	first := -1
	for _, stop := range stops {
		if stop == "" {
			continue
		}
		if idx := strings.Index(s, stop); idx >= 0 && (first < 0 || idx < first) {
			first = idx
		}
	}
	return first
}

// runeBoundary backs n off to the nearest UTF-8 boundary at or before n so
// emitted text never splits a code point.
func runeBoundary(s string, n int) int {
	if n <= 0 {
		return 0
	}
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
