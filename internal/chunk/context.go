package chunk

import (
	"context"
	"strings"
)

// contextExtractor produces the leading context (package clause, imports)
// of a source file, used to enrich chunk text before it is embedded.
// It is a best-effort optional pass: parse failures fall back to no
// context rather than failing the chunk operation.
type contextExtractor struct {
	parser   *Parser
	registry *LanguageRegistry
}

// newContextExtractor creates a context extractor using the default
// language registry.
func newContextExtractor() *contextExtractor {
	return &contextExtractor{
		parser:   NewParser(),
		registry: DefaultRegistry(),
	}
}

// Close releases the underlying tree-sitter parser.
func (e *contextExtractor) Close() {
	if e.parser != nil {
		e.parser.Close()
	}
}

// Extract returns the detected language name and leading context text for
// the given source. Both return values are empty when the language is
// unsupported or parsing fails.
func (e *contextExtractor) Extract(ctx context.Context, source []byte, extension string) (language, leadingContext string) {
	cfg, ok := e.registry.GetByExtension(extension)
	if !ok {
		return "", ""
	}
	language = cfg.Name

	tree, err := e.parser.Parse(ctx, source, language)
	if err != nil {
		return language, ""
	}

	var parts []string
	switch language {
	case "go":
		parts = contextNodes(tree, "package_clause", "import_declaration")
	case "typescript", "tsx", "javascript", "jsx":
		parts = contextNodes(tree, "import_statement")
	case "python":
		parts = contextNodes(tree, "import_statement", "import_from_statement")
	}

	return language, strings.Join(parts, "\n")
}

// contextNodes collects the content of every top-level child node whose
// type matches one of wantedTypes, in source order.
func contextNodes(tree *Tree, wantedTypes ...string) []string {
	want := make(map[string]struct{}, len(wantedTypes))
	for _, t := range wantedTypes {
		want[t] = struct{}{}
	}

	var parts []string
	for _, node := range tree.Root.Children {
		if _, ok := want[node.Type]; ok {
			parts = append(parts, node.GetContent(tree.Source))
		}
	}
	return parts
}
