package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/localdocs/localdocs-cli/internal/logger"
)

// Result is what loading a set of files produces: the documents that loaded,
// in input order, and the files that were skipped with their reasons.
type Result struct {
	Documents []Document
	Skipped   []LoadError
}

func typeForExt(path string) (Type, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return TypePDF, true
	case ".docx":
		return TypeDOCX, true
	case ".md", ".markdown":
		return TypeMarkdown, true
	}
	return "", false
}

// Supported reports whether path has a loadable extension.
func Supported(path string) bool {
	_, ok := typeForExt(path)
	return ok
}

// Discover walks root recursively and returns the sorted absolute paths of
// all supported files. Hidden files and directories are skipped.
func Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot read documents directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if _, ok := typeForExt(path); ok {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			paths = append(paths, abs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadFile loads a single supported file.
func LoadFile(path string) (*Document, error) {
	t, ok := typeForExt(path)
	if !ok {
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var (
		text  string
		spans []Span
		title string
	)
	switch t {
	case TypePDF:
		text, spans, err = extractPDF(path, content)
	case TypeDOCX:
		text, spans, title, err = extractDOCX(content)
	case TypeMarkdown:
		text, spans, title, err = extractMarkdown(content)
	}
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(abs)
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return &Document{Path: abs, Name: name, Type: t, Title: title, Text: text, Spans: spans}, nil
}

// LoadFiles loads paths with at most maxParallel loads in flight. Document
// order follows the input order regardless of completion order; failures
// become Skipped entries rather than aborting the run.
func LoadFiles(ctx context.Context, paths []string, maxParallel int) (*Result, error) {
	if maxParallel <= 0 {
		maxParallel = min(8, runtime.NumCPU())
	}

	docs := make([]*Document, len(paths))
	skips := make([]*LoadError, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := LoadFile(path)
			if err != nil {
				logger.Warn("skipping %s: %v", path, err)
				skips[i] = &LoadError{Path: path, Err: err}
				return nil
			}
			logger.Debug("loaded %s (%d runes, %d spans)", path, len([]rune(doc.Text)), len(doc.Spans))
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for i := range paths {
		if docs[i] != nil {
			res.Documents = append(res.Documents, *docs[i])
		}
		if skips[i] != nil {
			res.Skipped = append(res.Skipped, *skips[i])
		}
	}
	return res, nil
}

// LoadDirectory discovers and loads every supported file under root.
// Zero loadable documents is fatal: ErrNoDocuments.
func LoadDirectory(ctx context.Context, root string, maxParallel int) (*Result, error) {
	paths, err := Discover(root)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoDocuments, root)
	}
	res, err := LoadFiles(ctx, paths, maxParallel)
	if err != nil {
		return nil, err
	}
	if len(res.Documents) == 0 {
		return nil, fmt.Errorf("%w under %s (%d files failed to load)", ErrNoDocuments, root, len(res.Skipped))
	}
	return res, nil
}
