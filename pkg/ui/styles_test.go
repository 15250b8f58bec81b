package ui_test

import (
	"testing"

	"github.com/arthur-debert/archsetup/pkg/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStyles(t *testing.T) {
	styles := ui.DefaultStyles()
	for _, name := range []string{"Header", "Done", "Skipped", "Warning", "Failed", "Step", "Muted", "Path"} {
		assert.Contains(t, styles, name)
	}
	assert.True(t, styles.Get("Done").GetBold())
}

func TestParseStyles(t *testing.T) {
	styles, err := ui.ParseStyles([]byte(`
colors:
  accent:
    light: "#000000"
    dark: "#ffffff"
styles:
  Title:
    bold: true
    italic: true
    foreground: accent
    width: 10
  Unknown:
    foreground: missing
`))
	require.NoError(t, err)

	title := styles.Get("Title")
	assert.True(t, title.GetBold())
	assert.True(t, title.GetItalic())
	assert.Equal(t, 10, title.GetWidth())
	assert.Contains(t, styles, "Unknown", "unknown colors are ignored")
}

func TestParseStyles_Invalid(t *testing.T) {
	_, err := ui.ParseStyles([]byte("styles: [unbalanced"))
	assert.Error(t, err)
}

func TestStyles_GetMissing(t *testing.T) {
	assert.Equal(t, "plain", ui.Styles{}.Get("Nope").Render("plain"))
}
