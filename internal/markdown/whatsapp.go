// ABOUTME: Renders assistant markdown into WhatsApp-flavored plain text
// ABOUTME: WhatsApp has no headings or inline HTML; formatting maps to *bold*/_italic_

package markdown

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ToWhatsApp converts assistant-produced markdown into the formatting
// WhatsApp renders natively: *bold*, _italic_, ```code blocks```, "- " list
// markers, and "text (url)" links. Headings become bold lines. Plain text
// passes through unchanged.
func ToWhatsApp(md string) string {
	src := []byte(md)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var buf strings.Builder
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		renderBlock(&buf, child, src, "")
	}
	return strings.TrimRight(buf.String(), "\n")
}

// renderBlock writes one block-level node followed by a blank line.
// prefix carries list indentation for nested blocks.
func renderBlock(buf *strings.Builder, node ast.Node, src []byte, prefix string) {
	switch n := node.(type) {
	case *ast.Heading:
		buf.WriteString(prefix)
		buf.WriteString("*")
		buf.WriteString(renderInline(n, src))
		buf.WriteString("*\n\n")
	case *ast.Paragraph, *ast.TextBlock:
		buf.WriteString(prefix)
		buf.WriteString(renderInline(node, src))
		buf.WriteString("\n\n")
	case *ast.FencedCodeBlock:
		buf.WriteString("```\n")
		writeLines(buf, n.Lines(), src)
		buf.WriteString("```\n\n")
	case *ast.CodeBlock:
		buf.WriteString("```\n")
		writeLines(buf, n.Lines(), src)
		buf.WriteString("```\n\n")
	case *ast.List:
		renderList(buf, n, src, prefix)
		buf.WriteString("\n")
	case *ast.Blockquote:
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			buf.WriteString(prefix)
			buf.WriteString("> ")
			buf.WriteString(renderInline(child, src))
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	case *ast.ThematicBreak:
		buf.WriteString("---\n\n")
	default:
		if node.Type() == ast.TypeBlock {
			buf.WriteString(prefix)
			buf.WriteString(renderInline(node, src))
			buf.WriteString("\n\n")
		}
	}
}

// renderList writes list items with "- " or "N. " markers.
func renderList(buf *strings.Builder, list *ast.List, src []byte, prefix string) {
	index := list.Start
	if index == 0 {
		index = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "- "
		if list.IsOrdered() {
			marker = strconv.Itoa(index) + ". "
			index++
		}

		first := true
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if nested, ok := child.(*ast.List); ok {
				renderList(buf, nested, src, prefix+"  ")
				continue
			}
			if first {
				buf.WriteString(prefix)
				buf.WriteString(marker)
				buf.WriteString(renderInline(child, src))
				buf.WriteString("\n")
				first = false
				continue
			}
			buf.WriteString(prefix)
			buf.WriteString("  ")
			buf.WriteString(renderInline(child, src))
			buf.WriteString("\n")
		}
	}
}

// renderInline flattens a node's inline children into WhatsApp text.
func renderInline(node ast.Node, src []byte) string {
	var buf strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		writeInline(&buf, child, src)
	}
	return buf.String()
}

func writeInline(buf *strings.Builder, node ast.Node, src []byte) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(src))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteString("\n")
		}
	case *ast.Emphasis:
		marker := "_"
		if n.Level >= 2 {
			marker = "*"
		}
		buf.WriteString(marker)
		buf.WriteString(renderInline(n, src))
		buf.WriteString(marker)
	case *ast.CodeSpan:
		buf.WriteString("`")
		buf.WriteString(renderInline(n, src))
		buf.WriteString("`")
	case *ast.Link:
		label := renderInline(n, src)
		dest := string(n.Destination)
		if label == "" || label == dest {
			buf.WriteString(dest)
		} else {
			buf.WriteString(label)
			buf.WriteString(" (")
			buf.WriteString(dest)
			buf.WriteString(")")
		}
	case *ast.AutoLink:
		buf.Write(n.URL(src))
	case *ast.Image:
		buf.WriteString(renderInline(n, src))
	default:
		buf.WriteString(renderInline(node, src))
	}
}

// writeLines copies raw source segments, used for code block bodies.
func writeLines(buf *strings.Builder, lines *text.Segments, src []byte) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
}
