package rag

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Disclaimer terminates every generated answer. Defined once; the composer
// instructs the model to close with it verbatim.
const Disclaimer = "This answer was assembled from an offline library; verify critical steps against the cited sources before acting on them."

// Default token budgeting for the composed prompt.
const (
	DefaultContextSize = 8192
	DefaultMaxTokens   = 2048
	// promptReserve keeps headroom for the instruction block and the
	// model's chat template.
	promptReserve = 256
)

// TokenCounter counts tokens in text. Implementations range from simple
// word counting to model-accurate subword tokenization.
type TokenCounter interface {
	// Count returns the number of tokens in the given text.
	Count(text string) int
}

// DefaultTokenCounter approximates token counts by whitespace-separated
// words. Used as the fallback when no tokenizer data is available.
type DefaultTokenCounter struct{}

// Count returns the number of whitespace-separated fields in text.
func (DefaultTokenCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// TikTokenCounter counts tokens with a tiktoken encoding, matching how the
// language model's context window is actually consumed.
type TikTokenCounter struct {
	tke *tiktoken.Tiktoken
}

// NewTikTokenCounter creates a counter for the given encoding, e.g.
// "cl100k_base".
func NewTikTokenCounter(encoding string) (*TikTokenCounter, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("get encoding: %w", err)
	}
	return &TikTokenCounter{tke: tke}, nil
}

// Count returns the exact token count under the configured encoding.
func (t *TikTokenCounter) Count(text string) int {
	return len(t.tke.Encode(text, nil, nil))
}

// Composer assembles the grounded prompt: a CONTEXT region of numbered
// sources, a QUESTION region, and a fixed instruction block. Source
// numbers are 1-based and follow result order, in lockstep with any
// user-facing source list for the same query.
type Composer struct {
	contextSize int
	maxTokens   int
	counter     TokenCounter
	logger      Logger
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithContextSize sets the model context window the prompt must fit.
func WithContextSize(n int) ComposerOption {
	return func(c *Composer) { c.contextSize = n }
}

// WithMaxTokens sets the generation budget subtracted from the window.
func WithMaxTokens(n int) ComposerOption {
	return func(c *Composer) { c.maxTokens = n }
}

// WithTokenCounter replaces the token counter.
func WithTokenCounter(tc TokenCounter) ComposerOption {
	return func(c *Composer) { c.counter = tc }
}

// WithComposerLogger sets the logger.
func WithComposerLogger(l Logger) ComposerOption {
	return func(c *Composer) { c.logger = l }
}

// NewComposer creates a Composer. Token counting uses the cl100k_base
// tiktoken encoding when its data is available and degrades to word
// counting otherwise, so fully offline machines keep working.
func NewComposer(options ...ComposerOption) *Composer {
	c := &Composer{
		contextSize: DefaultContextSize,
		maxTokens:   DefaultMaxTokens,
		logger:      GlobalLogger,
	}
	for _, option := range options {
		option(c)
	}
	if c.counter == nil {
		if tc, err := NewTikTokenCounter("cl100k_base"); err == nil {
			c.counter = tc
		} else {
			c.logger.Warn("tiktoken encoding unavailable, using word counts", "error", err)
			c.counter = DefaultTokenCounter{}
		}
	}
	return c
}

// SourceTag renders the citation header for the i-th result (0-based
// input, 1-based tag). The same text keys the clickable source list.
func SourceTag(i int, r SearchResult) string {
	return fmt.Sprintf("[Source %d: %s/%s, Page %d, Relevance: %.1f%%]",
		i+1, DisplayCategory(r.Metadata.Category), r.Metadata.FileName,
		r.Metadata.PageNum, r.Similarity*100)
}

// DisplayCategory strips the on-disk "library-" prefix from a category
// name for user-facing output.
func DisplayCategory(category string) string {
	return strings.TrimPrefix(category, "library-")
}

// Compose builds the prompt for a query over its retrieved results. When
// the full context would overflow the window, whole sources are dropped
// from the tail; the ones that remain keep their original numbers.
func (c *Composer) Compose(query string, results []SearchResult) string {
	budget := c.contextSize - c.maxTokens - promptReserve
	fixed := c.counter.Count(promptInstructions) + c.counter.Count(query)

	var parts []string
	used := fixed
	for i, r := range results {
		part := SourceTag(i, r) + "\n" + r.Text + "\n"
		cost := c.counter.Count(part)
		if used+cost > budget && len(parts) > 0 {
			c.logger.Warn("context window full, dropping trailing sources",
				"kept", len(parts), "dropped", len(results)-len(parts))
			break
		}
		parts = append(parts, part)
		used += cost
	}
	context := strings.Join(parts, "\n")

	return fmt.Sprintf(promptTemplate, context, query)
}

// promptInstructions is the fixed instruction block shared by every query.
var promptInstructions = fmt.Sprintf(`You are an assistant with access to a library of reference documents.
Answer the question using only the information provided in the context below.
Cite the source of each fact inline by its number, like [Source 2].
If the context does not contain enough information to answer, say so plainly.
Keep the answer focused and free of repetition.
End your answer with this exact sentence: %s`, Disclaimer)

var promptTemplate = promptInstructions + `

CONTEXT:
%s

QUESTION: %s

Answer:`
