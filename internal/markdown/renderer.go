// ABOUTME: goldmark AST walker producing wrapped, optionally colored terminal text
// ABOUTME: Inline content becomes styled pieces that are wrapped by visible width

package markdown

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	headingAttrs = []color.Attribute{color.FgCyan, color.Bold}
	codeAttrs    = []color.Attribute{color.FgYellow}
	mutedAttrs   = []color.Attribute{color.Faint}
	linkAttrs    = []color.Attribute{color.Underline}
)

// piece is a run of text sharing one style.
type piece struct {
	text  string
	attrs []color.Attribute
}

// word is an unbreakable run of pieces.
type word []piece

func (w word) width() int {
	n := 0
	for _, p := range w {
		n += utf8.RuneCountInString(p.text)
	}
	return n
}

type renderer struct {
	color bool
}

func (r *renderer) render(source []byte, width int) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	r.walkBlock(doc, source, width, &buf)
	return strings.TrimRight(buf.String(), "\n")
}

func (r *renderer) style(s string, attrs []color.Attribute) string {
	if !r.color || len(attrs) == 0 || s == "" {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func (r *renderer) walkBlock(node ast.Node, source []byte, width int, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.renderBlock(c, source, width, buf)
	}
}

func (r *renderer) renderBlock(node ast.Node, source []byte, width int, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		r.writeWrapped(buf, r.collectInline(n, source, nil), width, "", "")

	case *ast.Heading:
		r.writeWrapped(buf, r.collectInline(n, source, headingAttrs), width, "", "")

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(source)); lang != "" {
			buf.WriteString(r.style(lang, mutedAttrs) + "\n")
		}
		r.writeCode(buf, n.Lines(), source)

	case *ast.CodeBlock:
		r.writeCode(buf, n.Lines(), source)

	case *ast.List:
		r.renderList(n, source, width, buf, 0)

	case *ast.Blockquote:
		var inner bytes.Buffer
		r.walkBlock(n, source, max(width-2, minWidth), &inner)
		gutter := r.style(">", mutedAttrs) + " "
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			buf.WriteString(gutter + line + "\n")
		}

	case *ast.ThematicBreak:
		buf.WriteString(r.style(strings.Repeat("─", min(width, 40)), mutedAttrs) + "\n")

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(source))
		}

	default:
		r.walkBlock(node, source, width, buf)
		return
	}

	if node.NextSibling() != nil {
		buf.WriteString("\n")
	}
}

func (r *renderer) writeCode(buf *bytes.Buffer, lines *text.Segments, source []byte) {
	gutter := r.style("│", mutedAttrs) + " "
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		content := strings.TrimRight(string(line.Value(source)), "\n")
		buf.WriteString(gutter + content + "\n")
	}
}

func (r *renderer) renderList(node *ast.List, source []byte, width int, buf *bytes.Buffer, depth int) {
	num := node.Start
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}

		indent := strings.Repeat("  ", depth)
		marker := "- "
		if node.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		continuation := indent + strings.Repeat(" ", len(marker))
		first := indent + marker
		itemWidth := max(width-len(first), minWidth)

		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				r.writeWrapped(buf, r.collectInline(in, source, nil), itemWidth, first, continuation)
			case *ast.List:
				r.renderList(in, source, width, buf, depth+1)
			default:
				var inner bytes.Buffer
				r.renderBlock(ic, source, itemWidth, &inner)
				for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
					buf.WriteString(first + line + "\n")
					first = continuation
				}
			}
			first = continuation
		}
	}
}

// collectInline flattens a block's inline children into styled pieces.
func (r *renderer) collectInline(node ast.Node, source []byte, attrs []color.Attribute) []piece {
	var pieces []piece
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		pieces = r.appendInline(pieces, c, source, attrs)
	}
	return pieces
}

func (r *renderer) appendInline(pieces []piece, node ast.Node, source []byte, attrs []color.Attribute) []piece {
	switch n := node.(type) {
	case *ast.Text:
		pieces = append(pieces, piece{text: string(n.Segment.Value(source)), attrs: attrs})
		if n.HardLineBreak() {
			pieces = append(pieces, piece{text: "\n"})
		} else if n.SoftLineBreak() {
			pieces = append(pieces, piece{text: " "})
		}

	case *ast.String:
		pieces = append(pieces, piece{text: string(n.Value), attrs: attrs})

	case *ast.CodeSpan:
		var code strings.Builder
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				code.Write(t.Segment.Value(source))
			}
		}
		pieces = append(pieces, piece{text: code.String(), attrs: withAttrs(attrs, codeAttrs...)})

	case *ast.Emphasis:
		extra := color.Italic
		if n.Level >= 2 {
			extra = color.Bold
		}
		pieces = append(pieces, r.collectInline(n, source, withAttrs(attrs, extra))...)

	case *ast.Link:
		label := r.collectInline(n, source, withAttrs(attrs, linkAttrs...))
		pieces = append(pieces, label...)
		dest := string(n.Destination)
		if dest != "" && dest != plainText(label) {
			pieces = append(pieces, piece{text: " (" + dest + ")", attrs: withAttrs(attrs, mutedAttrs...)})
		}

	case *ast.AutoLink:
		pieces = append(pieces, piece{text: string(n.URL(source)), attrs: withAttrs(attrs, linkAttrs...)})

	case *ast.Image:
		pieces = append(pieces, piece{text: "[image: ", attrs: mutedAttrs})
		pieces = append(pieces, r.collectInline(n, source, attrs)...)
		pieces = append(pieces, piece{text: "]", attrs: mutedAttrs})

	case *ast.RawHTML:
		segs := n.Segments
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			pieces = append(pieces, piece{text: string(seg.Value(source)), attrs: attrs})
		}

	default:
		pieces = append(pieces, r.collectInline(node, source, attrs)...)
	}
	return pieces
}

func withAttrs(base []color.Attribute, extra ...color.Attribute) []color.Attribute {
	out := make([]color.Attribute, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

func plainText(pieces []piece) string {
	var sb strings.Builder
	for _, p := range pieces {
		sb.WriteString(p.text)
	}
	return sb.String()
}

// splitLines breaks pieces into hard lines of words.
func splitLines(pieces []piece) [][]word {
	lines := [][]word{nil}
	var current word
	var run strings.Builder
	var runAttrs []color.Attribute

	flushRun := func() {
		if run.Len() > 0 {
			current = append(current, piece{text: run.String(), attrs: runAttrs})
			run.Reset()
		}
	}
	endWord := func() {
		flushRun()
		if len(current) > 0 {
			lines[len(lines)-1] = append(lines[len(lines)-1], current)
			current = nil
		}
	}

	for _, p := range pieces {
		flushRun()
		runAttrs = p.attrs
		for _, ch := range p.text {
			switch {
			case ch == '\n':
				endWord()
				lines = append(lines, nil)
			case unicode.IsSpace(ch):
				endWord()
			default:
				run.WriteRune(ch)
			}
		}
	}
	endWord()
	return lines
}

// writeWrapped word-wraps pieces to width. The first output line starts with
// first and every later line with rest.
func (r *renderer) writeWrapped(buf *bytes.Buffer, pieces []piece, width int, first, rest string) {
	prefix := first
	emit := func(line string) {
		buf.WriteString(prefix + line + "\n")
		prefix = rest
	}

	for _, words := range splitLines(pieces) {
		var line strings.Builder
		lineWidth := 0
		for _, w := range words {
			ww := w.width()
			if lineWidth > 0 && lineWidth+1+ww > width {
				emit(line.String())
				line.Reset()
				lineWidth = 0
			}
			if lineWidth > 0 {
				line.WriteByte(' ')
				lineWidth++
			}
			for _, p := range w {
				line.WriteString(r.style(p.text, p.attrs))
			}
			lineWidth += ww
		}
		emit(line.String())
	}
}
