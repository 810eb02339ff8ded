package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/trio/internal/presentation/graph"
	"github.com/aretw0/trio/pkg/diagram"
)

func TestGenerateMermaid(t *testing.T) {
	objects := []diagram.Object{
		{Name: "A", Type: "Set", Label: "A"},
		{Name: "B-1", Type: "Set", Label: "Birds \"all\""},
		{Name: "C", Type: "Set"},
	}

	tests := []struct {
		name      string
		relations []diagram.Relation
		highlight []string
		contains  []string
		excludes  []string
	}{
		{
			name: "Object Nodes",
			contains: []string{
				"graph TD\n",
				`A["A: Set"]`,
				`B_1["B-1: Set <br/> Birds 'all'"]`,
				`C["C: Set"]`,
			},
			excludes: []string{"classDef"},
		},
		{
			name:      "Binary Relation Edge",
			relations: []diagram.Relation{{Predicate: "Subset", Args: []string{"B-1", "A"}}},
			contains:  []string{`B_1 -- "Subset" --> A`},
		},
		{
			name:      "Other Arity Hexagon",
			relations: []diagram.Relation{{Predicate: "Union", Args: []string{"A", "B-1", "C"}}},
			contains: []string{
				`rel0{{"Union"}}`,
				"rel0 -.- A",
				"rel0 -.- B_1",
				"rel0 -.- C",
			},
		},
		{
			name:      "Highlight Deduplicated",
			highlight: []string{"C", "C", ""},
			contains:  []string{"classDef focus", "class C focus;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(objects, tt.relations, tt.highlight...)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("expected output not to contain %q, got:\n%s", unwanted, got)
				}
			}
			if strings.Count(got, "class C focus;") > 1 {
				t.Errorf("highlight was not deduplicated:\n%s", got)
			}
		})
	}
}
