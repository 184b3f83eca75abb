package rag

import (
	"strings"
)

// Chunking defaults. Every limit is a tunable on TextChunker.
const (
	// DefaultChunkSize is the maximum characters per chunk.
	DefaultChunkSize = 2000
	// DefaultChunkOverlap is the suffix carried into the next chunk when a
	// paragraph split would otherwise lose cross-boundary context.
	DefaultChunkOverlap = 200
	// DefaultMaxChunksPerDoc bounds the chunk count of one document;
	// excess chunks are consolidated.
	DefaultMaxChunksPerDoc = 100
)

// Chunk is a contiguous passage of one document, the unit of retrieval.
type Chunk struct {
	// ChunkID is the ordinal of the chunk within its document.
	ChunkID int
	// Text is the passage content, paragraph-preserving.
	Text string
	// PageNum is the 1-based page on which the passage begins, 0 when the
	// document carries no page information.
	PageNum int
}

// Chunker splits document text into retrieval-sized passages.
type Chunker interface {
	// Chunk splits text into passages. pageOffsets, when non-nil, holds
	// the rune-free byte offset of each page start within text and is used
	// to stamp chunks with their starting page.
	Chunk(text string, pageOffsets []int) []Chunk
}

// TextChunker implements Chunker with a paragraph-first strategy: text is
// split on blank lines, over-long paragraphs fall back to sentence groups,
// adjacent chunks share a bounded character overlap, and a consolidation
// pass fuses chunks when a document would exceed MaxChunksPerDoc.
type TextChunker struct {
	// ChunkSize is the maximum characters per chunk.
	ChunkSize int
	// ChunkOverlap is the number of trailing characters repeated at the
	// start of the next chunk on a paragraph-boundary split.
	ChunkOverlap int
	// MaxChunksPerDoc triggers the consolidation pass.
	MaxChunksPerDoc int
	// ConsolidateLimit is the combined length below which adjacent chunks
	// are fused in the first consolidation pass; each further pass doubles
	// it. Zero means 2 × ChunkSize.
	ConsolidateLimit int
}

// TextChunkerOption configures a TextChunker.
type TextChunkerOption func(*TextChunker)

// ChunkSize sets the maximum characters per chunk.
func ChunkSize(size int) TextChunkerOption {
	return func(tc *TextChunker) { tc.ChunkSize = size }
}

// ChunkOverlap sets the overlap carried across paragraph-boundary splits.
func ChunkOverlap(overlap int) TextChunkerOption {
	return func(tc *TextChunker) { tc.ChunkOverlap = overlap }
}

// MaxChunksPerDoc sets the per-document chunk bound.
func MaxChunksPerDoc(n int) TextChunkerOption {
	return func(tc *TextChunker) { tc.MaxChunksPerDoc = n }
}

// ConsolidateLimit sets the fuse length of the first consolidation pass.
func ConsolidateLimit(n int) TextChunkerOption {
	return func(tc *TextChunker) { tc.ConsolidateLimit = n }
}

// NewTextChunker creates a TextChunker with the given options.
func NewTextChunker(options ...TextChunkerOption) *TextChunker {
	tc := &TextChunker{
		ChunkSize:       DefaultChunkSize,
		ChunkOverlap:    DefaultChunkOverlap,
		MaxChunksPerDoc: DefaultMaxChunksPerDoc,
	}
	for _, option := range options {
		option(tc)
	}
	if tc.ConsolidateLimit == 0 {
		tc.ConsolidateLimit = 2 * tc.ChunkSize
	}
	return tc
}

// PageOffsets returns the byte offset of each page's start within the
// joined document text produced by ExtractResult.Text.
func PageOffsets(pages []string) []int {
	offsets := make([]int, len(pages))
	pos := 0
	for i, p := range pages {
		offsets[i] = pos
		pos += len(p) + 2 // joined with a blank line
	}
	return offsets
}

// chunkBuf accumulates one chunk and remembers where its content started in
// the source text.
type chunkBuf struct {
	text  strings.Builder
	start int
	set   bool
}

func (b *chunkBuf) add(s string, offset int) {
	if !b.set {
		b.start = offset
		b.set = true
	}
	b.text.WriteString(s)
}

func (b *chunkBuf) len() int { return b.text.Len() }

func (b *chunkBuf) reset() {
	b.text.Reset()
	b.set = false
}

// Chunk implements Chunker.
func (tc *TextChunker) Chunk(text string, pageOffsets []int) []Chunk {
	if len(text) <= tc.ChunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []Chunk{{ChunkID: 0, Text: text, PageNum: pageForOffset(0, pageOffsets)}}
	}

	type raw struct {
		text  string
		start int
	}
	var chunks []raw
	var cur chunkBuf

	flush := func() {
		if cur.len() > 0 {
			chunks = append(chunks, raw{text: cur.text.String(), start: cur.start})
			cur.reset()
		}
	}

	offset := 0
	for _, para := range strings.Split(text, "\n\n") {
		paraStart := offset
		offset += len(para) + 2

		switch {
		case len(para) > tc.ChunkSize:
			// Wall-of-text paragraph: flush what we have and regroup the
			// paragraph sentence by sentence.
			flush()

			sentences := splitSentences(para)
			var group chunkBuf
			for _, sentence := range sentences {
				if group.len()+len(sentence)+1 > tc.ChunkSize && group.len() > 0 {
					chunks = append(chunks, raw{text: group.text.String(), start: group.start})
					group.reset()
					group.add(sentence, paraStart)
				} else {
					if group.len() > 0 {
						group.text.WriteString(" ")
					}
					group.add(sentence, paraStart)
				}
			}
			// The residual sentence group seeds the next chunk so a short
			// following paragraph can still attach to it.
			if group.len() > 0 {
				cur.add(group.text.String(), group.start)
			}

		case cur.len()+len(para)+2 > tc.ChunkSize && cur.len() > 0:
			emitted := cur.text.String()
			chunks = append(chunks, raw{text: emitted, start: cur.start})
			cur.reset()
			if tc.ChunkOverlap > 0 && len(emitted) > tc.ChunkOverlap {
				cur.add(emitted[len(emitted)-tc.ChunkOverlap:], paraStart)
				cur.text.WriteString("\n\n")
				cur.text.WriteString(para)
			} else {
				cur.add(para, paraStart)
			}

		default:
			if cur.len() > 0 {
				cur.text.WriteString("\n\n")
				cur.text.WriteString(para)
			} else {
				cur.add(para, paraStart)
			}
		}
	}
	flush()

	// Consolidation passes: fuse adjacent chunks until the per-document
	// bound holds. The fuse limit grows when one pass is not enough, so
	// the bound always converges.
	limit := tc.ConsolidateLimit
	for len(chunks) > tc.MaxChunksPerDoc {
		var fused []raw
		var buf strings.Builder
		start := 0
		for _, c := range chunks {
			if buf.Len() > 0 && buf.Len()+len(c.text) >= limit {
				fused = append(fused, raw{text: buf.String(), start: start})
				buf.Reset()
			}
			if buf.Len() == 0 {
				start = c.start
			} else {
				buf.WriteString("\n\n")
			}
			buf.WriteString(c.text)
		}
		if buf.Len() > 0 {
			fused = append(fused, raw{text: buf.String(), start: start})
		}
		chunks = fused
		limit *= 2
	}

	out := make([]Chunk, 0, len(chunks))
	for i, c := range chunks {
		if strings.TrimSpace(c.text) == "" {
			continue
		}
		out = append(out, Chunk{
			ChunkID: i,
			Text:    c.text,
			PageNum: pageForOffset(c.start, pageOffsets),
		})
	}
	// Renumber in case empty chunks were dropped.
	for i := range out {
		out[i].ChunkID = i
	}
	return out
}

// splitSentences breaks a paragraph on periods, trimming fragments and
// reattaching the period. A paragraph without periods is returned whole.
func splitSentences(para string) []string {
	parts := strings.Split(para, ".")
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s+".")
		}
	}
	if len(sentences) == 0 {
		return []string{para}
	}
	return sentences
}

// pageForOffset maps a byte offset in the joined text to a 1-based page.
func pageForOffset(offset int, pageOffsets []int) int {
	if len(pageOffsets) == 0 {
		return 0
	}
	page := 1
	for i, start := range pageOffsets {
		if offset >= start {
			page = i + 1
		} else {
			break
		}
	}
	return page
}
