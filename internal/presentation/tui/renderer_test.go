package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer_Plain(t *testing.T) {
	render := NewRenderer(false, 80)
	out, err := render("# Title\n\n| a | b |\n")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\n| a | b |\n", out)
}

func TestNewRenderer_Styled(t *testing.T) {
	render := NewRenderer(true, 40)
	out, err := render("# Diagram\n\nall **constraints** hold\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Diagram")
	assert.Contains(t, out, "constraints")
	assert.NotContains(t, out, "**")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_|  |_|")
}
