// Package importer resolves a dsl.Song's import declarations into a
// single song with every imported instrument merged in, following
// local/github/http(s) sources with cycle detection.
package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kadraman/beatbax/dsl"
	"github.com/kadraman/beatbax/internal/blog"
	"github.com/kadraman/beatbax/internal/diag"
)

// Options configures source resolution. SearchPaths and BaseFilePath
// govern `local:` sources; the HTTP fields govern `http(s)://` sources.
// StrictMode turns duplicate-import warnings into errors.
type Options struct {
	BaseFilePath        string
	SearchPaths         []string
	AllowAbsolutePaths  bool
	HTTPSOnly           bool
	AllowedDomains      []string
	MaxFileSize         int64
	Timeout             time.Duration
	StrictMode          bool
	OnWarn              diag.OnWarn
	Fetch               func(ctx context.Context, url string) ([]byte, error) // override for tests
	Log                 blog.Logger
}

func (o Options) logger() blog.Logger {
	if o.Log == nil {
		return blog.Discard
	}
	return o.Log
}

const defaultMaxFileSize = 1 << 20 // 1 MiB

// Resolve walks ast.Imports, recursively loading and merging each
// source's instruments into a new Song whose Imports is empty (spec.md
// §4.H). The enclosing song's own instruments always win over imported
// ones with the same name.
func Resolve(ast *dsl.Song, opts Options) (*dsl.Song, error) {
	out := cloneSongShallow(ast)
	out.Imports = nil

	seen := map[string]bool{}
	merged := map[string]*dsl.Instrument{}
	var order []string

	for _, imp := range ast.Imports {
		if err := resolveOne(imp.Source, opts, nil, seen, merged, &order); err != nil {
			return nil, err
		}
	}

	for _, name := range order {
		if _, exists := out.Insts[name]; exists {
			continue // enclosing song's own instrument wins
		}
		out.Insts[name] = merged[name]
		out.InstOrder = append(out.InstOrder, name)
	}
	return out, nil
}

// resolveOne loads source and merges its instruments into merged, then
// recurses into its own imports. chain holds the sources currently being
// resolved, in entry order, so a cycle's ImportError can name every
// participating source rather than just the one that re-entered it.
func resolveOne(source string, opts Options, chain []string, seen map[string]bool, merged map[string]*dsl.Instrument, order *[]string) error {
	canonical := canonicalSource(source)
	for _, s := range chain {
		if canonicalSource(s) == canonical {
			full := append(append([]string{}, chain...), source)
			opts.logger().Error("import cycle detected", "chain", strings.Join(full, " -> "))
			return &diag.ImportError{Source: source, Message: fmt.Sprintf("import cycle detected: %s", strings.Join(full, " -> "))}
		}
	}
	chain = append(chain, source)

	data, err := fetchSource(source, opts)
	if err != nil {
		opts.logger().Warn("import fetch failed", "source", source, "error", err.Error())
		return err
	}

	song, err := dsl.Parse(string(data), dsl.Options{OnWarn: opts.OnWarn})
	if err != nil {
		return &diag.ImportError{Source: source, Message: "parse error: " + err.Error()}
	}
	if err := validateInsFile(song); err != nil {
		return &diag.ImportError{Source: source, Message: err.Error()}
	}

	for _, name := range song.InstOrder {
		if seen[name] {
			if opts.StrictMode {
				return &diag.ImportError{Source: source, Message: fmt.Sprintf("duplicate imported instrument %q", name)}
			}
			if opts.OnWarn != nil {
				opts.OnWarn(diag.ResolveWarning{Kind: diag.WarnDuplicateImport, Message: fmt.Sprintf("duplicate imported instrument %q from %s", name, source)})
			}
			continue
		}
		seen[name] = true
		opts.logger().Debug("merged imported instrument", "name", name, "source", source)
		merged[name] = song.Insts[name]
		*order = append(*order, name)
	}

	for _, nested := range song.Imports {
		if err := resolveOne(nested.Source, opts, chain, seen, merged, order); err != nil {
			return err
		}
	}
	return nil
}

// validateInsFile enforces spec.md §4.H: an imported file may only
// contain inst and import statements.
func validateInsFile(song *dsl.Song) error {
	for _, st := range song.Statements {
		switch st.(type) {
		case dsl.InstStmt, dsl.ImportStmt:
			continue
		default:
			return fmt.Errorf("imported file contains a non-inst/import statement")
		}
	}
	return nil
}

func canonicalSource(source string) string {
	return strings.TrimSpace(strings.ToLower(source))
}

func fetchSource(source string, opts Options) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "local:"):
		return fetchLocal(strings.TrimPrefix(source, "local:"), opts)
	case strings.HasPrefix(source, "github:"):
		return fetchRemote(githubRawURL(strings.TrimPrefix(source, "github:")), opts)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return fetchRemote(source, opts)
	default:
		return nil, &diag.ImportError{Source: source, Message: "unrecognized import source scheme"}
	}
}

// fetchRemote dispatches to opts.Fetch when the caller supplied one
// (tests, or a non-stdlib transport), otherwise to the real HTTP client.
func fetchRemote(url string, opts Options) ([]byte, error) {
	if opts.Fetch != nil {
		ctx, cancel := withTimeout(opts)
		defer cancel()
		return opts.Fetch(ctx, url)
	}
	return fetchHTTP(url, opts)
}

func githubRawURL(rest string) string {
	// owner/repo/ref/path -> https://raw.githubusercontent.com/owner/repo/ref/path
	return "https://raw.githubusercontent.com/" + rest
}

func fetchLocal(path string, opts Options) ([]byte, error) {
	resolved := path
	if !filepath.IsAbs(path) {
		base := filepath.Dir(opts.BaseFilePath)
		resolved = filepath.Join(base, path)
	} else if !opts.AllowAbsolutePaths {
		return nil, &diag.ImportError{Source: path, Message: "absolute local import paths are not allowed"}
	}

	resolved = filepath.Clean(resolved)
	if !withinSearchPaths(resolved, opts) {
		return nil, &diag.ImportError{Source: path, Message: "local import path escapes allowed search roots"}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &diag.ImportError{Source: path, Message: err.Error()}
	}
	return data, nil
}

func withinSearchPaths(resolved string, opts Options) bool {
	if opts.AllowAbsolutePaths {
		return true
	}
	roots := opts.SearchPaths
	if len(roots) == 0 {
		roots = []string{filepath.Dir(opts.BaseFilePath)}
	}
	for _, root := range roots {
		rel, err := filepath.Rel(filepath.Clean(root), resolved)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

func fetchHTTP(url string, opts Options) ([]byte, error) {
	if opts.HTTPSOnly && !strings.HasPrefix(url, "https://") {
		return nil, &diag.ImportError{Source: url, Message: "only https sources are allowed"}
	}
	if len(opts.AllowedDomains) > 0 && !domainAllowed(url, opts.AllowedDomains) {
		return nil, &diag.ImportError{Source: url, Message: "domain not in allowlist"}
	}

	ctx, cancel := withTimeout(opts)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &diag.ImportError{Source: url, Message: err.Error()}
	}
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &diag.ImportError{Source: url, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &diag.ImportError{Source: url, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, &diag.ImportError{Source: url, Message: err.Error()}
	}
	if int64(len(data)) > maxSize {
		return nil, &diag.ImportError{Source: url, Message: "response exceeds MaxFileSize"}
	}
	return data, nil
}

func domainAllowed(url string, allowed []string) bool {
	for _, d := range allowed {
		if strings.Contains(url, d) {
			return true
		}
	}
	return false
}

func withTimeout(opts Options) (context.Context, context.CancelFunc) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func cloneSongShallow(ast *dsl.Song) *dsl.Song {
	out := dsl.NewSong()
	*out = *ast
	out.Insts = make(map[string]*dsl.Instrument, len(ast.Insts))
	for k, v := range ast.Insts {
		out.Insts[k] = v
	}
	out.InstOrder = append([]string(nil), ast.InstOrder...)
	return out
}
