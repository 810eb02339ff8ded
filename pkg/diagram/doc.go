/*
Package diagram is the compact layout engine behind the render worker.

It accepts the three programs of a trio and runs them through three stages with a
fixed contract:

  - Compile parses the domain, substance and style programs into a Diagram: shapes
    whose geometry is a function of a vector of free variables, plus hard constraints
    ("ensure") and soft objectives ("encourage"). Initial values are sampled from a
    generator seeded by the variation, so compilation is deterministic.
  - Optimize drives constraint violations below a tolerance with an exterior penalty
    method and L-BFGS steps, within a fixed iteration budget.
  - ToSVG writes the converged layout into a caller-supplied dom.Document and returns
    the serialized markup.

Failures are reported as *Error values carrying a domain.Diagnostic, so callers can
tell bad input (compile stage) from infeasible layouts (optimize stage).

The supported language is a subset: types with single inheritance, predicates,
object declarations and labels in substance; canvas, forall/where selectors, shapes,
field assignments, ensure/encourage and layering in style.
*/
package diagram
