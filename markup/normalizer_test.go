package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func collectIDs(t *testing.T, content string) []string {
	t.Helper()
	body, err := parseFragment(strings.NewReader(content))
	require.NoError(t, err)

	var ids []string
	_ = forEachNode(body, "", func(node *html.Node, _ string) bool {
		if node.Type == html.ElementNode {
			if id, ok := attr(node, "id"); ok {
				ids = append(ids, id)
			}
		}
		return true
	})
	return ids
}

func TestNormalizeMarksEditableBlocks(t *testing.T) {
	n := NewHTMLNormalizer()

	out, err := n.Normalize(`<h1>Title</h1><p>One</p><p>Two <b>bold</b></p>`)
	require.NoError(t, err)

	ids := collectIDs(t, out)
	assert.Len(t, ids, 3)
	assert.NotEqual(t, ids[1], ids[2])
	assert.NotContains(t, out, `<b id=`)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := NewHTMLNormalizer()

	first, err := n.Normalize(`<div><p>a</p><ul><li>x</li></ul></div>`)
	require.NoError(t, err)
	second, err := n.Normalize(first)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := NewHTMLNormalizer()
	input := `<p>a</p><p>b</p>`

	a, err := n.Normalize(input)
	require.NoError(t, err)
	b, err := n.Normalize(input)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestNormalizeKeepsExistingIDs(t *testing.T) {
	n := NewHTMLNormalizer()

	out, err := n.Normalize(`<p id="intro">a</p><p>b</p>`)
	require.NoError(t, err)

	ids := collectIDs(t, out)
	require.Len(t, ids, 2)
	assert.Equal(t, "intro", ids[0])
	assert.NotEqual(t, "intro", ids[1])
}

func TestNormalizeEmptyContent(t *testing.T) {
	out, err := NewHTMLNormalizer().Normalize("  ")
	require.NoError(t, err)
	assert.Equal(t, "  ", out)
}
