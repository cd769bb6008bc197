package view

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const documentStyle = `
body { font-family: sans-serif; margin: 2rem; color: #222; }
section { margin-bottom: 2rem; }
.badge { border-radius: 0.5rem; padding: 0 0.4rem; font-size: 0.85em; background: #eee; }
.online, .success { color: #1a7f37; }
.offline, .error, .destructive { color: #cf222e; }
.unknown, .muted { color: #6e7781; }
.warning { color: #9a6700; }
table { border-collapse: collapse; }
td, th { padding: 0.2rem 0.8rem; text-align: left; }
pre { background: #f6f8fa; padding: 1rem; }
`

// RenderHTML writes a standalone HTML document holding the given sections. Actions
// become disabled buttons carrying their ID in a data attribute.
func RenderHTML(w io.Writer, title string, nodes ...*Node) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	headNode := element(atom.Head)
	headNode.AppendChild(element(atom.Meta, attr("charset", "utf-8")))
	titleNode := element(atom.Title)
	titleNode.AppendChild(text(title))
	headNode.AppendChild(titleNode)
	styleNode := element(atom.Style)
	styleNode.AppendChild(text(documentStyle))
	headNode.AppendChild(styleNode)
	root.AppendChild(headNode)

	body := element(atom.Body)
	heading := element(atom.H1)
	heading.AppendChild(text(title))
	body.AppendChild(heading)
	for _, node := range nodes {
		if converted := toHTML(node); converted != nil {
			body.AppendChild(converted)
		}
	}
	root.AppendChild(body)
	doc.AppendChild(root)

	return html.Render(w, doc)
}

// RenderHTMLFragment writes node without a surrounding document.
func RenderHTMLFragment(w io.Writer, node *Node) error {
	converted := toHTML(node)
	if converted == nil {
		return nil
	}
	return html.Render(w, converted)
}

func toHTML(node *Node) *html.Node {
	if node == nil || node.Hidden {
		return nil
	}

	var out *html.Node
	switch node.Kind {
	case KindSection:
		out = element(atom.Section)
		if node.Text != "" {
			heading := element(atom.H2)
			heading.AppendChild(text(node.Text))
			out.AppendChild(heading)
		}
		appendChildren(out, node.Children)
	case KindText:
		out = element(atom.P)
		out.AppendChild(text(node.Text))
	case KindBadge:
		out = element(atom.Span)
		out.AppendChild(text(node.Text))
		addClass(out, "badge")
	case KindField:
		out = element(atom.Div)
		label := element(atom.Strong)
		label.AppendChild(text(node.Text + ": "))
		out.AppendChild(label)
		out.AppendChild(text(node.Detail))
		addClass(out, "field")
	case KindRow:
		out = element(atom.Li)
		title := element(atom.Strong)
		title.AppendChild(text(strings.TrimSpace(node.Icon + " " + node.Text)))
		out.AppendChild(title)
		for _, child := range node.Children {
			if converted := toHTML(child); converted != nil {
				out.AppendChild(text(" "))
				out.AppendChild(converted)
			}
		}
		if node.Detail != "" {
			detail := element(atom.Div)
			detail.AppendChild(text(node.Detail))
			addClass(detail, ClassMuted)
			out.AppendChild(detail)
		}
	case KindList:
		out = element(atom.Ul)
		appendChildren(out, node.Children)
	case KindTable:
		out = tableToHTML(node)
	case KindGroup:
		out = element(atom.Div)
		for _, child := range node.Children {
			if converted := toHTML(child); converted != nil {
				out.AppendChild(converted)
				out.AppendChild(text(" "))
			}
		}
	case KindButton:
		out = element(atom.Button, attr("disabled", ""))
		if node.Action != nil {
			out.Attr = append(out.Attr, attr("data-action", node.Action.ID))
			if node.Action.Destructive {
				addClass(out, ClassDestructive)
			}
		}
		out.AppendChild(text(node.Text))
	case KindProgress:
		out = element(atom.Progress, attr("max", "100"), attr("value", fmt.Sprintf("%.0f", node.Value)))
		out.AppendChild(text(fmt.Sprintf("%.0f%%", node.Value)))
	case KindEmpty, KindError:
		out = element(atom.Div)
		addClass(out, string(node.Kind))
		heading := element(atom.H3)
		heading.AppendChild(text(strings.TrimSpace(node.Icon + " " + node.Text)))
		out.AppendChild(heading)
		if node.Detail != "" {
			detail := element(atom.P)
			detail.AppendChild(text(node.Detail))
			out.AppendChild(detail)
		}
		appendChildren(out, node.Children)
	case KindLink:
		out = element(atom.A, attr("href", node.Href))
		out.AppendChild(text(node.Text))
	case KindCode:
		out = element(atom.Pre)
		out.AppendChild(text(node.Text))
	default:
		out = element(atom.Div)
		appendChildren(out, node.Children)
	}

	if node.ID != "" {
		out.Attr = append(out.Attr, attr("id", node.ID))
	}
	if node.Class != "" {
		addClass(out, node.Class)
	}
	return out
}

func tableToHTML(table *Node) *html.Node {
	out := element(atom.Table)
	if len(table.Cells) > 0 {
		head := element(atom.Thead)
		row := element(atom.Tr)
		for _, column := range table.Cells {
			cell := element(atom.Th)
			cell.AppendChild(text(column))
			row.AppendChild(cell)
		}
		head.AppendChild(row)
		out.AppendChild(head)
	}

	body := element(atom.Tbody)
	for _, child := range table.Children {
		if child == nil || child.Hidden {
			continue
		}
		row := element(atom.Tr)
		for _, value := range child.Cells {
			cell := element(atom.Td)
			cell.AppendChild(text(value))
			row.AppendChild(cell)
		}
		if child.Class != "" {
			addClass(row, child.Class)
		}
		body.AppendChild(row)
	}
	out.AppendChild(body)
	return out
}

func appendChildren(parent *html.Node, children []*Node) {
	for _, child := range children {
		if converted := toHTML(child); converted != nil {
			parent.AppendChild(converted)
		}
	}
}

func element(tag atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: tag, Data: tag.String(), Attr: attrs}
}

func text(value string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: value}
}

func attr(key, value string) html.Attribute {
	return html.Attribute{Key: key, Val: value}
}

func addClass(node *html.Node, class string) {
	for i, existing := range node.Attr {
		if existing.Key == "class" {
			node.Attr[i].Val = existing.Val + " " + class
			return
		}
	}
	node.Attr = append(node.Attr, attr("class", class))
}
