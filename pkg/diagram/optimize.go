package diagram

import (
	"context"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Options bound the optimizer. Zero fields take the defaults below.
type Options struct {
	// MaxRounds is the number of penalty weight increases.
	MaxRounds int
	// MaxSteps is the L-BFGS iteration budget per round.
	MaxSteps int
	// Tolerance is the largest constraint violation accepted as converged.
	Tolerance float64
	// InitialWeight and WeightGrowth schedule the constraint penalty.
	InitialWeight float64
	WeightGrowth  float64
}

// DefaultOptions is the budget used when a caller passes the zero Options.
var DefaultOptions = Options{
	MaxRounds:     8,
	MaxSteps:      400,
	Tolerance:     0.5,
	InitialWeight: 10,
	WeightGrowth:  10,
}

func (o Options) withDefaults() Options {
	if o.MaxRounds <= 0 {
		o.MaxRounds = DefaultOptions.MaxRounds
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultOptions.MaxSteps
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultOptions.Tolerance
	}
	if o.InitialWeight <= 0 {
		o.InitialWeight = DefaultOptions.InitialWeight
	}
	if o.WeightGrowth <= 1 {
		o.WeightGrowth = DefaultOptions.WeightGrowth
	}
	return o
}

// Optimize moves the diagram's variables until every constraint is satisfied
// within Tolerance, minimizing the objectives on the way. It uses an exterior
// penalty method: each round minimizes objectives + w*sum(max(0, g)^2) with
// L-BFGS, then raises w.
//
// A cancelled ctx is returned as ctx.Err(). Layouts that stay infeasible after the
// last round fail with CodeInfeasible; non-finite energies fail with CodeDiverged.
func Optimize(ctx context.Context, d *Diagram, opts Options) error {
	if d.converged {
		return nil
	}
	opts = opts.withDefaults()
	x := d.x
	weight := opts.InitialWeight

	for round := 0; round < opts.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if worst, _ := d.violation(x); worst <= opts.Tolerance && round > 0 {
			break
		}
		w := weight
		energy := func(x []float64) float64 { return d.energy(x, w) }
		steps, err := minimizeRound(ctx, energy, x, opts.MaxSteps)
		d.stats.Rounds = round + 1
		d.stats.Steps += steps
		if err != nil {
			return err
		}
		if e := energy(x); !finite(e) || !allFinite(x) {
			return optimizeErr(CodeDiverged, "", "energy is not finite after round %d", round+1)
		}
		weight *= opts.WeightGrowth
	}

	worst, name := d.violation(x)
	d.stats.MaxViolation = worst
	d.stats.Energy = d.energy(x, 0)
	if worst > opts.Tolerance {
		return optimizeErr(CodeInfeasible, name,
			"%s is violated by %.3g after %d rounds", name, worst, d.stats.Rounds)
	}
	d.converged = true
	return nil
}

func (d *Diagram) energy(x []float64, weight float64) float64 {
	var e float64
	for _, o := range d.objectives {
		e += o.fn(x)
	}
	if weight == 0 {
		return e
	}
	var p float64
	for _, c := range d.constraints {
		v := math.Max(0, c.fn(x))
		p += v * v
	}
	return e + weight*p
}

// violation returns the largest constraint value and the constraint's name.
func (d *Diagram) violation(x []float64) (float64, string) {
	worst, name := 0.0, ""
	for _, c := range d.constraints {
		v := c.fn(x)
		if !finite(v) {
			return math.Inf(1), c.name
		}
		if v > worst {
			worst, name = v, c.name
		}
	}
	return worst, name
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if !finite(v) {
			return false
		}
	}
	return true
}

// minimizeRound runs L-BFGS with a backtracking line search on f from x and
// leaves the best point found in x. It returns the number of accepted steps.
// A line search that stops making progress ends the round early; the penalty
// schedule decides what happens next.
func minimizeRound(ctx context.Context, f func([]float64) float64, x []float64, maxSteps int) (int, error) {
	if len(x) == 0 {
		return 0, nil
	}
	central := &fd.Settings{Formula: fd.Central}
	problem := optimize.Problem{
		Func: f,
		Grad: func(grad, x []float64) { fd.Gradient(grad, f, x, central) },
	}
	settings := &optimize.Settings{
		MajorIterations: maxSteps + 1,
		Converger:       &optimize.FunctionConverge{Absolute: 1e-10, Relative: 1e-10, Iterations: 1},
		Recorder:        contextRecorder{ctx},
	}
	method := &optimize.LBFGS{Linesearcher: &optimize.Backtracking{}, Store: 8}

	res, err := optimize.Minimize(problem, x, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}
	if res == nil {
		return 0, err
	}
	if finite(res.F) {
		copy(x, res.X)
	}
	return max(res.MajorIterations-1, 0), nil
}

// contextRecorder stops a minimization once ctx is done.
type contextRecorder struct {
	ctx context.Context
}

func (r contextRecorder) Init() error { return r.ctx.Err() }

func (r contextRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}
