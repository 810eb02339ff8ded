package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/trio/pkg/diagram"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDomain = `
type Set
predicate Subset(Set, Set)
`
	testSubstance = `
Set A, B
Subset(B, A)
AutoLabel All
`
	testStyle = `
canvas {
  width = 400
  height = 400
}
forall Set x {
  x.icon = Circle {}
  x.text = Text { string : x.label }
  ensure contains(x.icon, x.text)
}
forall Set x; Set y where Subset(x, y) {
  ensure contains(y.icon, x.icon, 5)
}
`
	infeasibleStyle = `
canvas {
  width = 400
  height = 400
}
forall Set x {
  x.icon = Circle {}
}
forall Set x; Set y where Subset(x, y) {
  ensure disjoint(x.icon, y.icon, 10)
  ensure overlapping(x.icon, y.icon, 10)
}
`
)

func testTrio(variation string) domain.Trio {
	return domain.Trio{Domain: testDomain, Substance: testSubstance, Style: testStyle, Variation: variation}
}

func TestWorker_Render(t *testing.T) {
	w := New()
	res := w.Render(context.Background(), testTrio("test"))

	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.True(t, strings.HasPrefix(res.SVG, "<svg"))
	assert.Contains(t, res.SVG, "<title>A.icon</title>")
	assert.True(t, w.doc.Released(), "document must be released after serialization")
}

func TestWorker_SingleUse(t *testing.T) {
	w := New()
	first := w.Render(context.Background(), testTrio("test"))
	require.True(t, first.OK())

	second := w.Render(context.Background(), testTrio("test"))
	require.False(t, second.OK())
	assert.Empty(t, second.SVG)
	assert.Equal(t, domain.KindInternal, second.Err.Kind)
	assert.ErrorIs(t, second.Err, ErrSpent)
}

func TestWorker_Failures(t *testing.T) {
	t.Run("Compile", func(t *testing.T) {
		trio := testTrio("test")
		trio.Substance = "Sett A\n"
		res := New().Render(context.Background(), trio)

		require.False(t, res.OK())
		assert.Empty(t, res.SVG)
		assert.Equal(t, domain.KindCompile, res.Err.Kind)
		require.NotNil(t, res.Err.Diagnostic)
		assert.Equal(t, domain.StageCompile, res.Err.Diagnostic.Stage)
		assert.Equal(t, diagram.CodeTypeNotFound, res.Err.Diagnostic.Code)
		assert.Contains(t, res.Err.Error(), "Sett")
	})

	t.Run("Optimize", func(t *testing.T) {
		trio := testTrio("test")
		trio.Style = infeasibleStyle
		res := New(WithOptimizer(diagram.Options{MaxRounds: 3, MaxSteps: 50})).Render(context.Background(), trio)

		require.False(t, res.OK())
		assert.Equal(t, domain.KindOptimize, res.Err.Kind)
		require.NotNil(t, res.Err.Diagnostic)
		assert.Equal(t, diagram.CodeInfeasible, res.Err.Diagnostic.Code)
	})

	t.Run("DisjointAndOverlappingUnpadded", func(t *testing.T) {
		trio := testTrio("test")
		trio.Style = `
canvas {
  width = 400
  height = 400
}
forall Set x {
  x.icon = Circle {}
}
forall Set x; Set y where Subset(x, y) {
  ensure disjoint(x.icon, y.icon)
  ensure overlapping(x.icon, y.icon)
}
`
		res := New().Render(context.Background(), trio)

		require.False(t, res.OK(), "tangent circles must not satisfy both constraints")
		assert.Empty(t, res.SVG)
		assert.Equal(t, domain.KindOptimize, res.Err.Kind)
		require.NotNil(t, res.Err.Diagnostic)
		assert.Equal(t, diagram.CodeInfeasible, res.Err.Diagnostic.Code)
	})

	t.Run("Deadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		res := New().Render(ctx, testTrio("test"))

		require.False(t, res.OK())
		assert.Equal(t, domain.KindTimeout, res.Err.Kind)
	})

	t.Run("Panic", func(t *testing.T) {
		trio := testTrio("test")
		trio.Style = `
canvas {
  width = 100
  height = 100
}
forall Set x {
  x.pic = Image { href : "a.png"
    width : 10
    height : 10 }
}
`
		boom := diagram.ResolverFunc(func(context.Context, string) (string, error) {
			panic("resolver exploded")
		})
		res := New(WithResolver(boom)).Render(context.Background(), trio)

		require.False(t, res.OK())
		assert.Equal(t, domain.KindInternal, res.Err.Kind)
		assert.Equal(t, "internal fault", res.Err.Message)
		assert.NotContains(t, res.Err.Message, "exploded")
	})
}

func TestInProcess_FreshWorkerPerCall(t *testing.T) {
	inv := NewInProcess()
	first := inv.Invoke(context.Background(), testTrio("test"))
	second := inv.Invoke(context.Background(), testTrio("test"))

	require.True(t, first.OK())
	require.True(t, second.OK())
	assert.Equal(t, first.SVG, second.SVG)
}

func TestInProcess_ConcurrentRendersAreIndependent(t *testing.T) {
	inv := NewInProcess()
	variations := []string{"a", "b", "c", "d", "e", "f"}

	want := make(map[string]string, len(variations))
	for _, v := range variations {
		res := inv.Invoke(context.Background(), testTrio(v))
		require.True(t, res.OK(), "variation %s: %v", v, res.Err)
		want[v] = res.SVG
	}

	var wg sync.WaitGroup
	got := make([]string, len(variations))
	for i, v := range variations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = inv.Invoke(context.Background(), testTrio(v)).SVG
		}()
	}
	wg.Wait()

	for i, v := range variations {
		assert.Equal(t, want[v], got[i], fmt.Sprintf("variation %s", v))
	}
}

func TestClassify(t *testing.T) {
	err := classify(context.Canceled, domain.KindCompile)
	assert.Equal(t, domain.KindInternal, err.Kind)
	assert.ErrorIs(t, err, context.Canceled)

	err = classify(errors.New("disk on fire"), domain.KindOptimize)
	assert.Equal(t, domain.KindOptimize, err.Kind)
	assert.Nil(t, err.Diagnostic)
}
