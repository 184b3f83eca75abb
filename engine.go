package loki

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mikeplath/loki/rag"
	"github.com/mikeplath/loki/rag/providers"
)

// Engine is the query-side entry point. It owns the open vector store, the
// embedding and generation backends, and the supervisor that runs query
// workers. Queries from one engine are processed serially: starting a new
// answer cancels the one still running.
type Engine struct {
	core      *CoreContext
	store     *rag.Store
	embedder  providers.Embedder
	retriever *rag.Retriever
	composer  *rag.Composer
	generator *rag.Generator
	super     *rag.Supervisor
	resolver  *rag.Resolver

	mu      sync.Mutex
	current *rag.Handle
}

// NewEngine opens the configured vector store and wires the query
// pipeline. A generation backend that fails to come up is not fatal: the
// engine degrades to retrieval-only answers and reports the failure
// through the logger.
func NewEngine(core *CoreContext) (*Engine, error) {
	cfg := core.Config
	log := core.Logger

	embedder, err := rag.NewEmbedder(
		rag.SetEmbedderProvider(cfg.Embedding.Provider),
		rag.SetEmbedderModel(cfg.Embedding.Model),
		rag.SetEmbedderOption("base_url", cfg.Embedding.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	store, err := rag.OpenStore(cfg.Paths.VectorDBDir, embedder.ModelName())
	if err != nil {
		return nil, err
	}
	log.Info("vector store loaded",
		"chunks", store.Len(), "documents", store.Manifest().NumDocuments,
		"model", store.Manifest().ModelName, "index_type", store.Manifest().IndexType)

	e := &Engine{
		core:     core,
		store:    store,
		embedder: embedder,
		retriever: rag.NewRetriever(store, embedder,
			rag.WithTopK(cfg.Search.MaxResults),
			rag.WithMinSimilarity(cfg.Search.MinSimilarity),
			rag.WithRetrieverLogger(log)),
		composer: rag.NewComposer(
			rag.WithContextSize(cfg.LLM.ContextSize),
			rag.WithMaxTokens(cfg.LLM.MaxTokens),
			rag.WithComposerLogger(log)),
		super:    rag.NewSupervisor(rag.WithSupervisorLogger(log)),
		resolver: rag.NewResolver(cfg.Paths.DatabaseDir, rag.WithResolverLogger(log)),
	}

	backend, err := rag.NewOllamaGenerator(cfg.LLM.Model, cfg.LLM.BaseURL, log)
	if err != nil {
		log.Warn("generation backend unavailable, running retrieval-only", "error", err)
	} else {
		e.generator = rag.NewGenerator(backend,
			rag.WithGenMaxTokens(cfg.LLM.MaxTokens),
			rag.WithTemperature(cfg.LLM.Temperature),
			rag.WithGeneratorLogger(log))
	}
	return e, nil
}

// Retrieve returns the top passages for a query. k and minSimilarity fall
// back to the configured defaults when zero.
func (e *Engine) Retrieve(ctx context.Context, query string, k int, minSimilarity float64) ([]rag.SearchResult, error) {
	if k <= 0 {
		k = e.core.Config.Search.MaxResults
	}
	if minSimilarity == 0 {
		minSimilarity = e.core.Config.Search.MinSimilarity
	}
	return e.retriever.RetrieveK(ctx, query, k, minSimilarity)
}

// AnswerOptions tune a single Answer call. Zero values fall back to the
// configured defaults.
type AnswerOptions struct {
	Mode          Mode
	K             int
	MinSimilarity float64
	Temperature   float64
	MaxTokens     int
}

// Answer is one in-flight answer: the source list, available immediately,
// and a lazy token stream with a single consumer. The stream terminates on
// generation end, stop sequences, cancellation or timeout.
type Answer struct {
	// Sources are the retrieved passages, in the order the prompt cites
	// them; Source N in the answer text is Sources[N-1].
	Sources []rag.SearchResult

	tokens chan string
	done   chan struct{}
	handle *rag.Handle
	code   atomic.Int32
}

// Next returns the next token of the answer. It blocks until a token is
// available and reports false when the stream has terminated.
func (a *Answer) Next() (string, bool) {
	select {
	case tok := <-a.tokens:
		return tok, true
	case <-a.done:
		select {
		case tok := <-a.tokens:
			return tok, true
		default:
			return "", false
		}
	}
}

// Wait blocks until the answer has fully terminated.
func (a *Answer) Wait() { a.handle.Wait() }

// Status returns the completion code once the answer has terminated:
// 0 success, -1 cancelled or error, positive fatal categories.
func (a *Answer) Status() int { return int(a.code.Load()) }

// Err reports cancellation or timeout, nil otherwise.
func (a *Answer) Err() error { return a.handle.Err() }

// Handle exposes the supervising handle, e.g. for an emergency stop.
func (a *Answer) Handle() *rag.Handle { return a.handle }

// Answer retrieves passages for the query and streams a grounded answer.
// The source list is complete before the first token is emitted. A new
// call cancels any answer still running on this engine.
func (e *Engine) Answer(ctx context.Context, query string, opts AnswerOptions) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", rag.ErrInvalidQuery)
	}
	cfg := e.core.Config
	if opts.K <= 0 {
		opts.K = cfg.Search.MaxResults
	}
	if opts.MinSimilarity == 0 {
		opts.MinSimilarity = cfg.Search.MinSimilarity
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = cfg.LLM.MaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = cfg.LLM.Temperature
	}
	if opts.Mode == ModeRetrieve {
		opts.Mode = ModeRetrieveAndGenerate
	}

	var sources []rag.SearchResult
	if opts.Mode != ModeGenerateOnly {
		var err error
		sources, err = e.retriever.RetrieveK(ctx, query, opts.K, opts.MinSimilarity)
		if err != nil {
			return nil, err
		}
	}

	answer := &Answer{
		Sources: sources,
		tokens:  make(chan string, 64),
		done:    make(chan struct{}),
	}

	worker := e.answerWorker(query, sources, opts)

	onLine := func(line string) {
		select {
		case answer.tokens <- line:
		case <-answer.done:
		}
	}
	onComplete := func(code int) {
		answer.code.Store(int32(code))
		close(answer.done)
	}

	e.mu.Lock()
	if e.current != nil {
		e.current.RequestStop()
	}
	answer.handle = e.super.Start(worker, onLine, onComplete)
	e.current = answer.handle
	e.mu.Unlock()

	return answer, nil
}

// answerWorker builds the worker that produces the token stream for one
// query.
func (e *Engine) answerWorker(query string, sources []rag.SearchResult, opts AnswerOptions) rag.WorkerFunc {
	return func(ctx context.Context, emit func(string)) int {
		if e.generator == nil {
			e.emitFallback(emit, sources)
			return rag.StatusSuccess
		}

		prompt := query
		if opts.Mode != ModeGenerateOnly {
			if len(sources) == 0 {
				emit("I couldn't find any relevant information in the library to answer your question.")
				return rag.StatusSuccess
			}
			prompt = e.composer.Compose(query, sources)
		}

		err := e.generator.Generate(ctx, prompt, rag.GenerateOptions{
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
		}, func(token string) error {
			emit(token)
			return ctx.Err()
		})
		switch {
		case err == nil:
			return rag.StatusSuccess
		case ctx.Err() != nil:
			return rag.StatusCancelled
		case errors.Is(err, rag.ErrModelLoadFailure):
			e.core.Logger.Error("generation model unavailable", "error", err)
			return rag.StatusMissingModel
		default:
			e.core.Logger.Error("generation failed", "error", err)
			return rag.StatusCancelled
		}
	}
}

// emitFallback produces the retrieval-only answer used when no generation
// backend is available.
func (e *Engine) emitFallback(emit func(string), sources []rag.SearchResult) {
	if len(sources) == 0 {
		emit("I couldn't find any relevant information in the library to answer your question.")
		return
	}
	emit("The language model is unavailable; here is what the library holds:\n")
	for i, s := range sources {
		text := s.Text
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		emit(fmt.Sprintf("\n%s\n%s\n", rag.SourceTag(i, s), text))
	}
}

// Cancel stops the currently running answer, if any. It is idempotent.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		e.current.RequestStop()
	}
}

// HandleInput routes raw user input: when it equals the configured stop
// word (case-sensitive) the running answer is cancelled and true is
// returned; otherwise false.
func (e *Engine) HandleInput(input string) bool {
	if input == e.core.Config.Emergency.StopCommandWord {
		e.core.Logger.Info("emergency stop received")
		e.Cancel()
		return true
	}
	return false
}

// OpenSource opens the document behind a search result with the OS
// default handler.
func (e *Engine) OpenSource(result rag.SearchResult) error {
	return e.resolver.Open(result.Metadata.Category, result.Metadata.FileName)
}

// Store exposes the underlying read-only store.
func (e *Engine) Store() *rag.Store { return e.store }

// Degraded reports whether the engine runs without a generation backend.
func (e *Engine) Degraded() bool { return e.generator == nil }
