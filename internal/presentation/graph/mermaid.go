package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/trio/pkg/diagram"
)

// GenerateMermaid produces a Mermaid flowchart of a substance program.
// Objects become nodes and binary relations become labelled edges from the
// first argument to the second. Relations of any other arity get a
// {{hexagon}} node joined to each argument by a dotted line.
// Objects named in highlight are drawn with the "focus" class.
func GenerateMermaid(objects []diagram.Object, relations []diagram.Relation, highlight ...string) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, o := range objects {
		label := o.Name + ": " + o.Type
		if o.Label != "" && o.Label != o.Name {
			label += " <br/> " + escape(o.Label)
		}
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", sanitizeMermaidID(o.Name), label)
	}

	for i, r := range relations {
		if len(r.Args) == 2 {
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n",
				sanitizeMermaidID(r.Args[0]), escape(r.Predicate), sanitizeMermaidID(r.Args[1]))
			continue
		}
		id := fmt.Sprintf("rel%d", i)
		fmt.Fprintf(&sb, "    %s{{\"%s\"}}\n", id, escape(r.Predicate))
		for _, arg := range r.Args {
			fmt.Fprintf(&sb, "    %s -.- %s\n", id, sanitizeMermaidID(arg))
		}
	}

	if len(highlight) > 0 {
		sb.WriteString("\n    %% Highlight\n")
		sb.WriteString("    classDef focus fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		seen := make(map[string]bool)
		for _, name := range highlight {
			id := sanitizeMermaidID(name)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s focus;\n", id)
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
