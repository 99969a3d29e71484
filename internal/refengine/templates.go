package refengine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// dependencyGraph tracks, for every template under templates/, which other
// templates import it via a CSS-style "@import url(...)" directive — a toy
// stand-in for a production engine's include/extends graph, just enough to
// exercise BuildTrigger's "template has at least one dependent page"
// classification branch.
type dependencyGraph struct {
	mu         sync.RWMutex
	dependents map[string]map[string]struct{} // imported path -> importing paths
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{dependents: make(map[string]map[string]struct{})}
}

func (g *dependencyGraph) hasDependents(path string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.dependents[filepath.Clean(path)]) > 0
}

func (g *dependencyGraph) addEdge(imported, importer string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	imported = filepath.Clean(imported)
	if g.dependents[imported] == nil {
		g.dependents[imported] = make(map[string]struct{})
	}
	g.dependents[imported][filepath.Clean(importer)] = struct{}{}
}

// scanTemplateImports walks templates/, tokenizing each file with
// tdewolff/parse/v2/css to find "@import" edges and recording them in the
// dependency graph.
func (e *Engine) scanTemplateImports() error {
	templatesDir := filepath.Join(e.siteRoot, "templates")
	entries, err := os.ReadDir(templatesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(templatesDir, entry.Name())
		imports, err := extractImports(path)
		if err != nil {
			return err
		}
		for _, imp := range imports {
			e.deps.addEdge(filepath.Join(templatesDir, imp), path)
		}
	}
	return nil
}

// extractImports tokenizes src for "@import <url-or-string>;" directives
// and returns the referenced paths.
func extractImports(src string) ([]string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}

	lexer := css.NewLexer(parse.NewInputString(string(data)))
	var imports []string
	expectTarget := false

	for {
		tt, text := lexer.Next()
		if tt == css.ErrorToken {
			break
		}
		if tt == css.AtKeywordToken && string(text) == "@import" {
			expectTarget = true
			continue
		}
		if expectTarget {
			switch tt {
			case css.StringToken:
				imports = append(imports, trimQuotes(string(text)))
				expectTarget = false
			case css.URLToken:
				imports = append(imports, trimURL(string(text)))
				expectTarget = false
			case css.SemicolonToken:
				expectTarget = false
			}
		}
	}
	return imports, nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

func trimURL(s string) string {
	s = s[4 : len(s)-1] // strip "url(" and trailing ")"
	return trimQuotes(s)
}
