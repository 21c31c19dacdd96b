package chunker

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
)

// node is one element of the parsed tree, carrying enough positional
// information to locate it back in the original source text. Comments and
// processing instructions are skipped while building this tree (§4.2 step 1).
type node struct {
	Tag         string // Prefix + ":" + Local, or Local alone: "sequence", "wsp:Policy", "http.post", ...
	Local       string // xml.Name.Local
	Prefix      string // xml.Name.Space: "wsp" for an undeclared "wsp:Policy", the namespace URI for a declared (including default) namespace
	Attrs       map[string]string
	Children    []*node
	Parent      *node
	StartOffset int // byte offset of '<' that opens this element
	EndOffset   int // byte offset just past the closing '>' of this element (or self-close)
	SelfClosing bool
	Text        string // concatenated character data of this element's direct text children
}

// parseXML parses content into a node tree rooted at a synthetic document
// node whose single child (if any) is the actual XML root element.
func parseXML(content []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = false

	root := &node{Tag: "#document", Attrs: map[string]string{}}
	stack := []*node{root}

	for {
		offsetBefore := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xml parse error: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			startOff := findOpenTagStart(content, int(offsetBefore))
			n := &node{
				Tag:         rawTagName(t.Name, t.Attr),
				Local:       t.Name.Local,
				Prefix:      rawPrefix(t.Name),
				Attrs:       attrMap(t.Attr),
				Parent:      stack[len(stack)-1],
				StartOffset: startOff,
			}
			stack[len(stack)-1].Children = append(stack[len(stack)-1].Children, n)
			stack = append(stack, n)

		case xml.EndElement:
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			n.EndOffset = int(dec.InputOffset())

		case xml.CharData:
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Text += string(t)
			}
		}
	}

	// Mark self-closing: true when no text/children and the original bytes
	// between start and end offsets contain "/>" but no "</", i.e. the
	// source literally wrote "<t/>"; an empty "<t></t>" is not marked.
	markSelfClosing(root, content)

	return root, nil
}

func markSelfClosing(n *node, content []byte) {
	for _, c := range n.Children {
		if len(c.Children) == 0 && c.Text == "" {
			inner := content[c.StartOffset:c.EndOffset]
			if bytes.Contains(inner, []byte("/>")) && !bytes.Contains(inner[:len(inner)-1], []byte("</")) {
				c.SelfClosing = true
			}
		}
		markSelfClosing(c, content)
	}
}

// findOpenTagStart scans forward from a hint offset to the next '<', which
// is where the element's open tag actually begins. The hint (InputOffset
// before reading the StartElement token) is always at or before the '<'.
func findOpenTagStart(content []byte, hint int) int {
	if hint < 0 {
		hint = 0
	}
	if hint > len(content) {
		return len(content)
	}
	idx := bytes.IndexByte(content[hint:], '<')
	if idx < 0 {
		return hint
	}
	return hint + idx
}

func rawPrefix(name xml.Name) string {
	if name.Space == "" {
		return ""
	}
	// Go's xml decoder leaves Space as the literal prefix text when no
	// xmlns declaration resolves it (undeclared "wsp:", etc), and sets it
	// to the namespace URI when one does, including a default xmlns.
	return name.Space
}

func rawTagName(name xml.Name, _ []xml.Attr) string {
	if p := rawPrefix(name); p != "" {
		return p + ":" + name.Local
	}
	return name.Local
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		key := a.Name.Local
		if p := rawPrefix(a.Name); p != "" {
			key = p + ":" + a.Name.Local
		}
		m[key] = a.Value
	}
	return m
}

// lineIndex maps byte offsets to 1-based line numbers in O(log n).
type lineIndex struct {
	lineStarts []int // byte offset of the first byte of each line
}

func newLineIndex(content []byte) *lineIndex {
	starts := []int{0}
	for i, b := range content {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{lineStarts: starts}
}

// LineAt returns the 1-based line number containing byte offset off.
func (li *lineIndex) LineAt(off int) int {
	i := sort.Search(len(li.lineStarts), func(i int) bool { return li.lineStarts[i] > off })
	if i == 0 {
		return 1
	}
	return i
}
