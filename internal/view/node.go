package view

import (
	"context"
)

type Kind string

const (
	KindSection  Kind = "section"
	KindText     Kind = "text"
	KindBadge    Kind = "badge"
	KindField    Kind = "field"
	KindRow      Kind = "row"
	KindList     Kind = "list"
	KindTable    Kind = "table"
	KindGroup    Kind = "group"
	KindButton   Kind = "button"
	KindProgress Kind = "progress"
	KindEmpty    Kind = "empty"
	KindError    Kind = "error"
	KindLink     Kind = "link"
	KindCode     Kind = "code"
)

// Semantic classes. Renderers map them to colors or CSS classes.
const (
	ClassOnline      = "online"
	ClassOffline     = "offline"
	ClassUnknown     = "unknown"
	ClassSuccess     = "success"
	ClassWarning     = "warning"
	ClassError       = "error"
	ClassMuted       = "muted"
	ClassDestructive = "destructive"
	ClassAccent      = "accent"
)

// Action is a handler attached to a node. Run is called by whichever frontend renders
// the node when the user activates it.
type Action struct {
	ID          string
	Label       string
	Icon        string
	Destructive bool
	Disabled    bool
	Run         func(ctx context.Context) error
}

// Node is one element of a rendered view. Which fields matter depends on Kind:
// Text is the title or content, Detail a secondary line, Value the fraction of a
// progress bar, Href the target of a link and Cells the columns of a table row.
type Node struct {
	Kind     Kind
	ID       string
	Text     string
	Detail   string
	Icon     string
	Class    string
	Value    float64
	Href     string
	Hidden   bool
	Cells    []string
	Action   *Action
	Children []*Node
}

func Section(title string, children ...*Node) *Node {
	return &Node{Kind: KindSection, Text: title, Children: compact(children)}
}

func Text(text string) *Node {
	return &Node{Kind: KindText, Text: text}
}

func Muted(text string) *Node {
	return &Node{Kind: KindText, Text: text, Class: ClassMuted}
}

func Badge(text, class string) *Node {
	return &Node{Kind: KindBadge, Text: text, Class: class}
}

// Field is a label/value pair.
func Field(label, value string) *Node {
	return &Node{Kind: KindField, Text: label, Detail: value}
}

// Row is a list entry with a title, an optional subtitle and trailing children such
// as badges and buttons.
func Row(icon, title, subtitle string, suffix ...*Node) *Node {
	return &Node{Kind: KindRow, Icon: icon, Text: title, Detail: subtitle, Children: compact(suffix)}
}

func List(rows ...*Node) *Node {
	return &Node{Kind: KindList, Children: compact(rows)}
}

// Table builds a table whose first row holds the column headers.
func Table(columns []string, rows ...[]string) *Node {
	table := &Node{Kind: KindTable, Cells: columns}
	for _, row := range rows {
		table.Children = append(table.Children, &Node{Kind: KindRow, Cells: row})
	}
	return table
}

// Group lays its children out inline.
func Group(children ...*Node) *Node {
	return &Node{Kind: KindGroup, Children: compact(children)}
}

func Button(action *Action) *Node {
	if action == nil {
		return nil
	}
	return &Node{Kind: KindButton, ID: action.ID, Text: action.Label, Icon: action.Icon, Action: action}
}

// Progress is a progress bar filled to percent (0-100).
func Progress(percent float64, label string) *Node {
	return &Node{Kind: KindProgress, Value: clampPercent(percent), Text: label}
}

func Empty(icon, title, description string, actions ...*Action) *Node {
	node := &Node{Kind: KindEmpty, Icon: icon, Text: title, Detail: description}
	for _, action := range actions {
		node.Children = append(node.Children, Button(action))
	}
	node.Children = compact(node.Children)
	return node
}

func Error(title, message string, actions ...*Action) *Node {
	node := &Node{Kind: KindError, Icon: "⚠️", Text: title, Detail: message, Class: ClassError}
	for _, action := range actions {
		node.Children = append(node.Children, Button(action))
	}
	node.Children = compact(node.Children)
	return node
}

func Link(text, href string) *Node {
	return &Node{Kind: KindLink, Text: text, Href: href}
}

func Code(text string) *Node {
	return &Node{Kind: KindCode, Text: text}
}

// WithID sets the node's ID and returns it.
func (node *Node) WithID(id string) *Node {
	node.ID = id
	return node
}

func (node *Node) WithClass(class string) *Node {
	node.Class = class
	return node
}

// Append adds children, skipping nils.
func (node *Node) Append(children ...*Node) *Node {
	node.Children = append(node.Children, compact(children)...)
	return node
}

// Walk visits node and its descendants depth first until fn returns false.
func Walk(node *Node, fn func(*Node) bool) bool {
	if node == nil {
		return true
	}
	if !fn(node) {
		return false
	}
	for _, child := range node.Children {
		if !Walk(child, fn) {
			return false
		}
	}
	return true
}

// Find returns the first node with the given ID.
func Find(root *Node, id string) *Node {
	var found *Node
	Walk(root, func(node *Node) bool {
		if node.ID == id {
			found = node
			return false
		}
		return true
	})
	return found
}

// FindAction returns the first action with the given ID.
func FindAction(root *Node, id string) *Action {
	var found *Action
	Walk(root, func(node *Node) bool {
		if node.Action != nil && node.Action.ID == id {
			found = node.Action
			return false
		}
		return true
	})
	return found
}

// Actions lists every action reachable from root.
func Actions(root *Node) []*Action {
	var actions []*Action
	Walk(root, func(node *Node) bool {
		if node.Action != nil {
			actions = append(actions, node.Action)
		}
		return true
	})
	return actions
}

// Count returns the number of nodes of the given kind under root.
func Count(root *Node, kind Kind) int {
	count := 0
	Walk(root, func(node *Node) bool {
		if node.Kind == kind {
			count++
		}
		return true
	})
	return count
}

func compact(nodes []*Node) []*Node {
	result := nodes[:0:0]
	for _, node := range nodes {
		if node != nil {
			result = append(result, node)
		}
	}
	return result
}

func clampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
