// Command loki is the interactive query interface of the offline library:
// vector search, grounded streaming answers, clickable-by-number sources
// and an emergency stop word.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mikeplath/loki"
	"github.com/mikeplath/loki/config"
	"github.com/mikeplath/loki/rag"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	query := flag.String("query", "", "one-shot query (omit for interactive mode)")
	mode := flag.String("mode", "rag", "conversation mode: retrieve, rag or gen")
	topK := flag.Int("top-k", cfg.Search.MaxResults, "number of results")
	minSim := flag.Float64("min-similarity", cfg.Search.MinSimilarity, "similarity threshold")
	flag.Parse()

	core := loki.NewCoreContext(cfg)
	engine, err := loki.NewEngine(core)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if engine.Degraded() {
		fmt.Println("Language model unavailable; running in search-only mode.")
	}

	session := &session{
		engine: engine,
		cfg:    cfg,
		mode:   parseMode(*mode),
		topK:   *topK,
		minSim: *minSim,
	}

	if *query != "" {
		session.ask(context.Background(), *query, nil)
		return
	}
	session.interactive()
}

type session struct {
	engine *loki.Engine
	cfg    *config.Config
	mode   loki.Mode
	topK   int
	minSim float64
	last   []rag.SearchResult
}

func parseMode(s string) loki.Mode {
	switch strings.ToLower(s) {
	case "retrieve", "search":
		return loki.ModeRetrieve
	case "gen", "generate":
		return loki.ModeGenerateOnly
	default:
		return loki.ModeRetrieveAndGenerate
	}
}

// interactive runs the REPL. Input is read on its own goroutine so the
// stop word can interrupt an answer while it is still streaming.
func (s *session) interactive() {
	fmt.Println("Ask a question about the library. Type 'help' for commands.")

	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- strings.TrimSpace(scanner.Text())
		}
		close(input)
	}()

	for line := range input {
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit" || line == "q":
			return
		case line == "help" || line == "?":
			s.help()
		default:
			if n, err := strconv.Atoi(line); err == nil && len(s.last) > 0 {
				s.openSource(n)
				continue
			}
			s.ask(context.Background(), line, input)
		}
	}
}

// ask runs one query in the session's mode. While an answer streams, the
// input channel is watched for the emergency stop word.
func (s *session) ask(ctx context.Context, query string, input <-chan string) {
	if s.mode == loki.ModeRetrieve {
		results, err := s.engine.Retrieve(ctx, query, s.topK, s.minSim)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		s.printResults(results)
		return
	}

	answer, err := s.engine.Answer(ctx, query, loki.AnswerOptions{
		Mode:          s.mode,
		K:             s.topK,
		MinSimilarity: s.minSim,
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	s.last = answer.Sources

	tokens := make(chan string)
	go func() {
		for {
			tok, ok := answer.Next()
			if !ok {
				close(tokens)
				return
			}
			tokens <- tok
		}
	}()

	for tokens != nil {
		select {
		case tok, ok := <-tokens:
			if !ok {
				tokens = nil
				break
			}
			fmt.Print(tok)
		case line, ok := <-input:
			if !ok {
				input = nil
				break
			}
			if s.engine.HandleInput(line) {
				fmt.Println("\nResponse halted.")
			}
		}
	}
	fmt.Println()

	switch answer.Err() {
	case rag.ErrCancelled:
		fmt.Println("[response halted by user]")
	case rag.ErrTimeout:
		fmt.Println("[operation timed out]")
	}
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources (enter a number to open):")
		for i, r := range answer.Sources {
			fmt.Println(" ", rag.SourceTag(i, r))
		}
	}
}

func (s *session) printResults(results []rag.SearchResult) {
	s.last = results
	if len(results) == 0 {
		fmt.Println("No results found.")
		return
	}
	for i, r := range results {
		fmt.Println(rag.SourceTag(i, r))
		text := r.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
}

func (s *session) openSource(n int) {
	if n < 1 || n > len(s.last) {
		fmt.Println("Invalid source number.")
		return
	}
	if err := s.engine.OpenSource(s.last[n-1]); err != nil {
		fmt.Println("Could not find file:", s.last[n-1].Metadata.FileName)
	}
}

func (s *session) help() {
	fmt.Printf(`Commands:
  <question>   ask the library
  <number>     open that source document
  %s           halt the current answer
  exit         leave the session
`, s.cfg.Emergency.StopCommandWord)
}
