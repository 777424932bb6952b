// Package stubs generates IDE-facing .pyi type stub text from a script's
// extracted declarations (spec.md §4.8 step 4): one declaration per input,
// one stub function per external, importing only the typing names that
// are actually referenced inside annotations.
package stubs

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"grail/internal/decls"
)

// knownTypingNames is the set of typing-module identifiers grail looks
// for inside annotation text. A name is only imported if it appears as a
// whole identifier token, so an unrelated identifier merely containing
// "Any" as a substring (e.g. a user type named "AnyCorpPrice") is never
// mistaken for typing.Any.
var knownTypingNames = []string{
	"Any", "Optional", "Union", "List", "Dict", "Tuple", "Set",
	"Sequence", "Mapping", "Iterable", "Iterator", "Callable", "Literal",
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Generate renders the .pyi stub text for a script's externals and
// inputs.
func Generate(d *decls.Declarations) string {
	var b strings.Builder

	used := map[string]bool{}
	for _, ext := range d.Externals {
		collectTypingNames(used, ext.ReturnAnnotation)
		for _, p := range ext.Parameters {
			collectTypingNames(used, p.Annotation)
		}
	}
	for _, in := range d.Inputs {
		collectTypingNames(used, in.Annotation)
	}

	if len(used) > 0 {
		names := make([]string, 0, len(used))
		for n := range used {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "from typing import %s\n\n", strings.Join(names, ", "))
	}

	for _, in := range d.Inputs {
		annotation := in.Annotation
		if annotation == "" {
			annotation = "Any"
		}
		fmt.Fprintf(&b, "%s: %s\n", in.Name, annotation)
	}
	if len(d.Inputs) > 0 && len(d.Externals) > 0 {
		b.WriteString("\n")
	}

	for i, ext := range d.Externals {
		if i > 0 {
			b.WriteString("\n")
		}
		prefix := "def"
		if ext.IsAsync {
			prefix = "async def"
		}
		params := make([]string, 0, len(ext.Parameters))
		for _, p := range ext.Parameters {
			name := p.Name
			switch p.Kind {
			case "var-positional":
				name = "*" + name
			case "var-keyword":
				name = "**" + name
			}
			annotation := p.Annotation
			if annotation == "" {
				annotation = "Any"
			}
			params = append(params, name+": "+annotation)
		}
		returnAnnotation := ext.ReturnAnnotation
		if returnAnnotation == "" {
			returnAnnotation = "Any"
		}
		fmt.Fprintf(&b, "%s %s(%s) -> %s: ...\n", prefix, ext.Name, strings.Join(params, ", "), returnAnnotation)
	}

	return b.String()
}

func collectTypingNames(used map[string]bool, annotation string) {
	if annotation == "" {
		return
	}
	tokens := identifierPattern.FindAllString(annotation, -1)
	for _, tok := range tokens {
		for _, known := range knownTypingNames {
			if tok == known {
				used[known] = true
			}
		}
	}
}
