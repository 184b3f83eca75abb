package loki

import (
	"github.com/mikeplath/loki/rag"
)

// Resolver maps a search result's (category, filename) back to a document
// under the library root and opens it with the OS default handler.
type Resolver = rag.Resolver

// ResolverOption configures a Resolver.
type ResolverOption = rag.ResolverOption

// NewResolver creates a Resolver over a library root.
func NewResolver(root string, options ...ResolverOption) *Resolver {
	return rag.NewResolver(root, options...)
}
