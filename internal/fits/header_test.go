package fits

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalFITS builds a syntactically valid primary-HDU header block (no
// data) for parsing tests.
func minimalFITS(extraCards ...string) string {
	var b strings.Builder
	b.WriteString(padCard("SIMPLE", "=                    T"))
	b.WriteString(padCard("BITPIX", "=                   16"))
	for _, c := range extraCards {
		b.WriteString(c)
	}
	b.WriteString(padCard("END", ""))
	for b.Len()%blockSize != 0 {
		b.WriteString(strings.Repeat(" ", cardSize))
	}
	return b.String()
}

func TestParseHeader_ReadsKnownKeywords(t *testing.T) {
	raw := minimalFITS(padCard("EXPTIME", "= 30.0 / exposure seconds"))
	h, err := parseHeader(strings.NewReader(raw))
	require.NoError(t, err)

	v, ok := h.Get("EXPTIME")
	require.True(t, ok)
	assert.Equal(t, "30.0", v)
}

func TestHeader_SetStringAddsNewCard(t *testing.T) {
	h := &Header{index: make(map[string]int)}
	h.SetString("OBJECT", "ISS", "Target name")

	v, ok := h.Get("OBJECT")
	require.True(t, ok)
	assert.Equal(t, "ISS", v)
}

func TestHeader_SetStringReplacesExistingCard(t *testing.T) {
	h := &Header{index: make(map[string]int)}
	h.SetString("OBJECT", "ISS", "Target name")
	h.SetString("OBJECT", "Hubble", "Target name")

	assert.Len(t, h.cards, 1)
	v, _ := h.Get("OBJECT")
	assert.Equal(t, "Hubble", v)
}

func TestHeader_RenderEndsWithENDCardAndIsBlockAligned(t *testing.T) {
	h := &Header{index: make(map[string]int)}
	h.SetString("OBJECT", "ISS", "Target name")

	rendered := h.Render()
	assert.Equal(t, 0, len(rendered)%blockSize)
	assert.Contains(t, string(rendered), "END")
}

func TestHeader_AddCommentAppendsRepeatable(t *testing.T) {
	h := &Header{index: make(map[string]int)}
	h.AddComment("first")
	h.AddComment("second")

	comments := 0
	for _, c := range h.cards {
		if c.Keyword == "COMMENT" {
			comments++
		}
	}
	assert.Equal(t, 2, comments)
}
