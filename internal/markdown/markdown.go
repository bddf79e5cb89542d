// ABOUTME: Terminal rendering of markdown chat replies
// ABOUTME: Entry point and options for the goldmark-based renderer

// Package markdown renders assistant replies for a terminal.
//
// Markdown is parsed with goldmark and walked block by block. Paragraphs and
// list items are word-wrapped to a width; code blocks are printed as-is behind
// a gutter. Styling uses fatih/color and is off unless Options.Color is set.
package markdown

// DefaultWidth is used when Options.Width is not positive.
const DefaultWidth = 80

// minWidth is the narrowest column wrapped text is squeezed into.
const minWidth = 10

// Options controls rendering.
type Options struct {
	Width int
	Color bool
}

// Render parses markdown source and returns terminal text.
func Render(source string, opts Options) string {
	if source == "" {
		return ""
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	r := &renderer{color: opts.Color}
	return r.render([]byte(source), opts.Width)
}
