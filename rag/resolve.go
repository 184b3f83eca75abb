package rag

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Resolver maps a search result's (category, filename) back to a document
// under the library root and opens it with the OS default handler.
type Resolver struct {
	root   string
	opener func(path string) error
	logger Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithOpener replaces the OS launcher, mainly for tests.
func WithOpener(open func(path string) error) ResolverOption {
	return func(r *Resolver) { r.opener = open }
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a Resolver over a library root.
func NewResolver(root string, options ...ResolverOption) *Resolver {
	r := &Resolver{
		root:   root,
		opener: openWithOS,
		logger: GlobalLogger,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Resolve returns the absolute path of a document. Candidates are tried in
// order: the category directory, the category directory with its on-disk
// "library-" prefix restored, and finally a recursive descent by filename.
func (r *Resolver) Resolve(category, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("%w: empty filename", ErrSourceNotFound)
	}
	category = DisplayCategory(category)

	candidates := []string{
		filepath.Join(r.root, category, filename),
		filepath.Join(r.root, "library-"+category, filename),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	var found string
	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep descending elsewhere
		}
		if !d.IsDir() && d.Name() == filename {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err == nil && found != "" {
		return found, nil
	}
	return "", fmt.Errorf("%w: %s/%s under %s", ErrSourceNotFound, category, filename, r.root)
}

// Open resolves the document and launches it with the OS default handler.
func (r *Resolver) Open(category, filename string) error {
	path, err := r.Resolve(category, filename)
	if err != nil {
		return err
	}
	r.logger.Info("opening source document", "path", path)
	return r.opener(path)
}

// openWithOS hands the file to the platform's default document handler.
func openWithOS(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}
