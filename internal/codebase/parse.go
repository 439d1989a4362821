package codebase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
)

// Function is one function definition extracted from a source file.
type Function struct {
	Name      string
	Code      string
	StartLine int
}

// languageFor returns the grammar used for a file, or nil when the file is
// not indexed.
func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return python.GetLanguage()
	case ".go":
		return golang.GetLanguage()
	default:
		return nil
	}
}

// Supported reports whether path has an indexed extension.
func Supported(path string) bool {
	return languageFor(path) != nil
}

// ExtractFunctions parses src and returns its top-level functions in source
// order. Go methods are named "Receiver.Method".
func ExtractFunctions(ctx context.Context, path string, src []byte) ([]Function, error) {
	lang := languageFor(path)
	if lang == nil {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var funcs []Function
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "function_definition", "function_declaration":
			if fn, ok := functionAt(child, child, src, ""); ok {
				funcs = append(funcs, fn)
			}
		case "decorated_definition":
			// The decorators belong to the function's code.
			if def := child.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
				if fn, ok := functionAt(child, def, src, ""); ok {
					funcs = append(funcs, fn)
				}
			}
		case "method_declaration":
			if fn, ok := functionAt(child, child, src, receiverType(child, src)); ok {
				funcs = append(funcs, fn)
			}
		}
	}
	return funcs, nil
}

func functionAt(outer, def *sitter.Node, src []byte, receiver string) (Function, bool) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return Function{}, false
	}
	name := nameNode.Content(src)
	if receiver != "" {
		name = receiver + "." + name
	}
	return Function{
		Name:      name,
		Code:      outer.Content(src),
		StartLine: int(outer.StartPoint().Row) + 1,
	}, true
}

// receiverType returns the bare receiver type of a Go method, without
// pointer or type parameters.
func receiverType(method *sitter.Node, src []byte) string {
	recv := method.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		param := recv.NamedChild(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		typ := param.ChildByFieldName("type")
		if typ == nil {
			continue
		}
		name := strings.TrimLeft(typ.Content(src), "*")
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		return strings.TrimSpace(name)
	}
	return ""
}
