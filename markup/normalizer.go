package markup

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNilNode = errors.New("HTML node is nil")

// Normalizer prepares editor content before it is stored. Implementations must
// be idempotent and must never replace an id that is already present.
type Normalizer interface {
	Normalize(content string) (string, error)
}

// blockNamespace seeds the generated region ids.
var blockNamespace = uuid.MustParse("6f1c2f4e-4b8a-4f4e-9d7c-3a5e2b1d0c9a")

// editable lists the elements an editor can address as a region.
var editable = map[atom.Atom]bool{
	atom.P:          true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Table:      true,
	atom.Blockquote: true,
	atom.Pre:        true,
	atom.Div:        true,
	atom.Section:    true,
	atom.Figure:     true,
}

// HTMLNormalizer marks every editable block element with a stable id attribute.
// The id is derived from the element's position so two runs over the same
// input agree.
type HTMLNormalizer struct {
	Attribute string
}

func NewHTMLNormalizer() *HTMLNormalizer {
	return &HTMLNormalizer{Attribute: "id"}
}

func (n *HTMLNormalizer) Normalize(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return content, nil
	}

	body, err := parseFragment(strings.NewReader(content))
	if err != nil {
		return "", err
	}

	seen := map[string]bool{}
	_ = forEachNode(body, "", func(node *html.Node, path string) bool {
		if node.Type == html.ElementNode {
			if id, ok := attr(node, n.Attribute); ok {
				seen[id] = true
			}
		}
		return true
	})

	err = forEachNode(body, "", func(node *html.Node, path string) bool {
		if node.Type != html.ElementNode || !editable[node.DataAtom] {
			return true
		}
		if _, ok := attr(node, n.Attribute); ok {
			return true
		}
		id := blockID(node, path, seen)
		seen[id] = true
		node.Attr = append(node.Attr, html.Attribute{Key: n.Attribute, Val: id})
		return true
	})
	if err != nil {
		return "", err
	}

	return render(body)
}

func blockID(node *html.Node, path string, seen map[string]bool) string {
	name := node.Data + "@" + path
	for i := 0; ; i++ {
		seed := name
		if i > 0 {
			seed = name + "#" + strconv.Itoa(i)
		}
		id := "blk-" + uuid.NewSHA1(blockNamespace, []byte(seed)).String()[:8]
		if !seen[id] {
			return id
		}
	}
}

func attr(node *html.Node, key string) (string, bool) {
	for _, a := range node.Attr {
		if a.Key == key && a.Val != "" {
			return a.Val, true
		}
	}
	return "", false
}

// parseFragment parses content as the children of a body element and returns
// that body.
func parseFragment(r io.Reader) (*html.Node, error) {
	nodes, err := html.ParseFragment(
		io.MultiReader(strings.NewReader("<body>"), r, strings.NewReader("</body>")),
		&html.Node{Type: html.ElementNode, DataAtom: atom.Html, Data: "html"},
	)
	if err != nil {
		return nil, err
	}
	// [0] is head, [1] is body
	if len(nodes) < 2 {
		return nil, ErrNilNode
	}
	return nodes[1], nil
}

func render(root *html.Node) (string, error) {
	buf := &bytes.Buffer{}
	for node := root.FirstChild; node != nil; node = node.NextSibling {
		if err := html.Render(buf, node); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// forEachNode walks root in pre-order, passing each node's child-index path.
// It descends into a node only if task returns true.
func forEachNode(root *html.Node, path string, task func(*html.Node, string) bool) error {
	if root == nil {
		return ErrNilNode
	}
	if !task(root, path) {
		return nil
	}
	i := 0
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if err := forEachNode(child, path+"/"+strconv.Itoa(i), task); err != nil {
			return err
		}
		i++
	}
	return nil
}
