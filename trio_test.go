package trio_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aretw0/trio"
	"github.com/aretw0/trio/pkg/adapters/memory"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/orchestrator"
	"github.com/aretw0/trio/pkg/ports"
	"github.com/aretw0/trio/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	setsDomain = `
type Set
predicate Disjoint(Set s1, Set s2)
predicate Intersecting(Set s1, Set s2)
predicate Subset(Set s1, Set s2)
`
	setsStyle = `
canvas {
  width = 800
  height = 700
}

forall Set x {
  shape x.icon = Circle { }
  shape x.text = Equation {
    string : x.label
    fontSize : "32px"
  }
  ensure contains(x.icon, x.text)
  encourage norm(x.text.center - x.icon.center) == 0
  layer x.text above x.icon
}

forall Set x; Set y
where Subset(x, y) {
  ensure disjoint(y.text, x.icon, 10)
  ensure contains(y.icon, x.icon, 5)
  layer x.icon above y.icon
}
`
)

func payload() map[string]any {
	return map[string]any{
		"domain":    setsDomain,
		"substance": "Set A, B\nSubset(B, A)\nAutoLabel All\n",
		"style":     setsStyle,
		"variation": "test",
	}
}

func TestService_RenderEndToEnd(t *testing.T) {
	svc := trio.New()

	svg, err := svc.Render(context.Background(), payload())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Equal(t, 2, strings.Count(svg, "<circle"))
	assert.Contains(t, svg, "<title>A.icon</title>")
	assert.Contains(t, svg, "<title>B.icon</title>")

	again, err := svc.Render(context.Background(), payload())
	require.NoError(t, err)
	assert.Equal(t, svg, again, "same variation renders byte-identical output")
}

func TestService_UndeclaredType(t *testing.T) {
	p := payload()
	p["substance"] = "Sett A\n"

	_, err := trio.New().Render(context.Background(), p)
	require.Error(t, err)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindCompile, de.Kind)
	require.NotNil(t, de.Diagnostic)
	assert.Equal(t, "Sett", de.Diagnostic.Symbol)
	assert.Contains(t, de.Message, "Sett")
	assert.Equal(t, 422, orchestrator.StatusFor(err))
}

func TestService_ValidationBeforeWorker(t *testing.T) {
	var calls atomic.Int32
	inv := ports.InvokerFunc(func(context.Context, domain.Trio) domain.RenderResult {
		calls.Add(1)
		return domain.Success("<svg/>")
	})
	svc := trio.New(trio.WithOrchestrator(orchestrator.New(inv)))

	for _, field := range []string{"domain", "substance", "style"} {
		p := payload()
		delete(p, field)
		_, err := svc.Render(context.Background(), p)
		assert.True(t, domain.IsKind(err, domain.KindValidation), field)
		assert.Contains(t, validator.FieldErrors(err)[0].Error(), field)
	}

	_, err := svc.RenderTrio(context.Background(), domain.Trio{Domain: "type Set", Substance: " ", Style: "x"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Zero(t, calls.Load(), "no worker runs for an invalid request")

	_, err = svc.RenderTrio(context.Background(), domain.Trio{Domain: "a", Substance: "b", Style: "c"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestService_Generate(t *testing.T) {
	_, err := trio.New().Generate(context.Background(), domain.UploadRef{URL: "https://x/a.png"}, "")
	assert.True(t, domain.IsKind(err, domain.KindGeneration))

	gen := generatorFunc(func(_ context.Context, ref domain.UploadRef, hint string) (string, error) {
		return "Set A -- " + ref.URL + " " + hint, nil
	})
	out, err := trio.New(trio.WithGenerator(gen)).Generate(context.Background(), domain.UploadRef{URL: "u"}, "h")
	require.NoError(t, err)
	assert.Equal(t, "Set A -- u h", out)
}

type generatorFunc func(ctx context.Context, ref domain.UploadRef, hint string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, ref domain.UploadRef, hint string) (string, error) {
	return f(ctx, ref, hint)
}

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestService_Upload(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := trio.New(trio.WithUploadStore(store), trio.WithPublicURL("https://trio.example/"), trio.WithMaxUploadBytes(64))

	ref, err := svc.Upload(ctx, "image/png", png)
	require.NoError(t, err)
	id, ok := strings.CutPrefix(ref.URL, "https://trio.example/uploads/")
	require.True(t, ok, ref.URL)

	upload, err := svc.Download(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "image/png", upload.ContentType)
	assert.Equal(t, png, upload.Data)

	_, err = svc.Download(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUploadNotFound)

	t.Run("rejections", func(t *testing.T) {
		for name, data := range map[string][]byte{
			"empty":        nil,
			"too big":      append(append([]byte{}, png...), make([]byte, 64)...),
			"not an image": []byte("hello, world"),
		} {
			_, err := svc.Upload(ctx, "", data)
			assert.True(t, domain.IsKind(err, domain.KindValidation), name)
		}
		assert.Equal(t, 1, store.Len())
	})

	t.Run("loader inlines own uploads", func(t *testing.T) {
		load := trio.UploadLoader(store, "https://trio.example")

		img, ok, err := load(ctx, ref.URL)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, png, img.Data)
		assert.Equal(t, "image/png", img.MediaType)

		_, ok, err = load(ctx, "https://elsewhere.example/uploads/"+id)
		assert.NoError(t, err)
		assert.False(t, ok)

		_, _, err = load(ctx, "https://trio.example/uploads/missing")
		assert.ErrorIs(t, err, domain.ErrUploadNotFound)
	})
}

func TestVersion(t *testing.T) {
	assert.Regexp(t, `^\d+\.\d+\.\d+`, trio.Version)
}
