/*
Package trio renders diagrams described by three small programs.

A trio is a domain program (the vocabulary of types and predicates), a substance program
(the objects of one diagram and the relations between them) and a style program (how
objects become shapes, and the constraints their layout must satisfy), plus a variation
string that seeds every random choice. Rendering the same trio with the same variation
always produces the same SVG.

# Pipeline

Requests are validated, then handed to a Render Orchestrator that runs exactly one
single-use worker under a deadline. The worker compiles the trio, optimizes the layout
and serializes it into a document of its own:

	client -> Service -> validator -> orchestrator -> worker -> SVG

Workers run in-process by default. For stronger isolation the orchestrator can start
each worker as a subprocess ("trio worker <dir>") and kill its process group on timeout.

# Usage

	svc := trio.New()
	svg, err := svc.RenderTrio(ctx, domain.Trio{
		Domain:    "type Set\npredicate Subset(Set, Set)\n",
		Substance: "Set A, B\nSubset(B, A)\nAutoLabel All\n",
		Style:     style,
	})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			log.Printf("%s: %s", de.Kind, de.Message)
		}
	}

Substance text can also be generated from an uploaded picture: Upload stores the image,
Generate asks a vision model for a substance, and the result feeds a later render.
*/
package trio
