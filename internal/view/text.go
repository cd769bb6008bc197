package view

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	progressBarWidth = 30
	indentUnit       = "  "
)

// RenderText writes node as plain text for terminals.
func RenderText(w io.Writer, node *Node) error {
	renderer := &textRenderer{w: w}
	renderer.render(node, 0)
	return renderer.err
}

type textRenderer struct {
	w   io.Writer
	err error
}

func (r *textRenderer) printf(depth int, format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, strings.Repeat(indentUnit, depth)+format, args...)
}

func (r *textRenderer) render(node *Node, depth int) {
	if node == nil || node.Hidden {
		return
	}

	switch node.Kind {
	case KindSection:
		if node.Text != "" {
			r.printf(depth, "%s\n", node.Text)
			r.printf(depth, "%s\n", strings.Repeat("-", len([]rune(node.Text))))
		}
		r.renderChildren(node.Children, depth)
		r.printf(0, "\n")
	case KindText:
		r.printf(depth, "%s\n", node.Text)
	case KindBadge:
		r.printf(depth, "[%s]\n", node.Text)
	case KindField:
		r.renderFields([]*Node{node}, depth)
	case KindRow:
		r.renderRow(node, depth)
	case KindList:
		r.renderChildren(node.Children, depth)
	case KindTable:
		r.renderTable(node, depth)
	case KindGroup:
		r.printf(depth, "%s\n", inlineText(node.Children))
	case KindButton:
		if node.Action == nil || !node.Action.Disabled {
			r.printf(depth, "> %s\n", node.Text)
		}
	case KindProgress:
		filled := int(node.Value / 100 * progressBarWidth)
		bar := strings.Repeat("#", filled) + strings.Repeat("-", progressBarWidth-filled)
		r.printf(depth, "[%s] %3.0f%% %s\n", bar, node.Value, node.Text)
	case KindEmpty:
		r.printf(depth, "%s %s\n", node.Icon, node.Text)
		if node.Detail != "" {
			r.printf(depth+1, "%s\n", node.Detail)
		}
		r.renderChildren(node.Children, depth+1)
	case KindError:
		r.printf(depth, "Error: %s\n", node.Text)
		if node.Detail != "" {
			r.printf(depth+1, "%s\n", node.Detail)
		}
		r.renderChildren(node.Children, depth+1)
	case KindLink:
		r.printf(depth, "%s <%s>\n", node.Text, node.Href)
	case KindCode:
		for _, line := range strings.Split(strings.TrimRight(node.Text, "\n"), "\n") {
			r.printf(depth, "%s\n", line)
		}
	default:
		r.renderChildren(node.Children, depth)
	}
}

// renderChildren renders consecutive fields with one tabwriter so their values line
// up.
func (r *textRenderer) renderChildren(children []*Node, depth int) {
	for i := 0; i < len(children); i++ {
		if children[i] == nil || children[i].Kind != KindField {
			r.render(children[i], depth)
			continue
		}
		j := i
		for j < len(children) && children[j] != nil && children[j].Kind == KindField {
			j++
		}
		r.renderFields(children[i:j], depth)
		i = j - 1
	}
}

func (r *textRenderer) renderFields(fields []*Node, depth int) {
	if r.err != nil {
		return
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	prefix := strings.Repeat(indentUnit, depth)
	for _, field := range fields {
		if field.Hidden {
			continue
		}
		fmt.Fprintf(tw, "%s%s:\t%s\n", prefix, field.Text, field.Detail)
	}
	r.err = tw.Flush()
}

func (r *textRenderer) renderRow(row *Node, depth int) {
	title := row.Text
	if row.Icon != "" {
		title = row.Icon + " " + title
	}
	if suffix := inlineText(row.Children); suffix != "" {
		title += "  " + suffix
	}
	r.printf(depth, "%s\n", title)
	if row.Detail != "" {
		r.printf(depth+1, "%s\n", row.Detail)
	}
}

func (r *textRenderer) renderTable(table *Node, depth int) {
	if r.err != nil {
		return
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	prefix := strings.Repeat(indentUnit, depth)
	if len(table.Cells) > 0 {
		fmt.Fprintf(tw, "%s%s\n", prefix, strings.Join(upper(table.Cells), "\t"))
	}
	for _, row := range table.Children {
		if row == nil || row.Hidden {
			continue
		}
		fmt.Fprintf(tw, "%s%s\n", prefix, strings.Join(row.Cells, "\t"))
	}
	r.err = tw.Flush()
}

// inlineText flattens badges and texts into one line. Buttons are left out.
func inlineText(children []*Node) string {
	parts := make([]string, 0, len(children))
	for _, child := range children {
		if child == nil || child.Hidden {
			continue
		}
		switch child.Kind {
		case KindBadge:
			parts = append(parts, "["+child.Text+"]")
		case KindText, KindLink:
			parts = append(parts, child.Text)
		case KindGroup:
			if text := inlineText(child.Children); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}

func upper(values []string) []string {
	result := make([]string, len(values))
	for i, value := range values {
		result[i] = strings.ToUpper(value)
	}
	return result
}
