package vdom

import "fmt"

// voidElements are elements that cannot have children.
var voidElements = map[string]bool{
	"area":  true,
	"br":    true,
	"hr":    true,
	"img":   true,
	"input": true,
	"wbr":   true,
}

// IsVoidElement returns true if the tag is a void element.
func IsVoidElement(tag string) bool {
	return voidElements[tag]
}

// El creates an element node.
// Arguments can be: nil, Attr, []Attr, *VNode, []*VNode, string.
// Children passed to a void element are dropped.
func El(tag string, args ...any) *VNode {
	node := &VNode{
		Kind: KindElement,
		Tag:  tag,
	}

	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			// Ignore nil (allows conditional attributes)
			continue
		case Attr:
			if !v.IsEmpty() {
				node.Props = node.Props.Set(v.Key, v.Value)
			}
		case []Attr:
			for _, a := range v {
				if !a.IsEmpty() {
					node.Props = node.Props.Set(a.Key, a.Value)
				}
			}
		case *VNode:
			if v != nil {
				node.Children = append(node.Children, v)
			}
		case []*VNode:
			for _, c := range v {
				if c != nil {
					node.Children = append(node.Children, c)
				}
			}
		case string:
			node.Children = append(node.Children, Text(v))
		default:
			panic(fmt.Sprintf("vdom: unsupported element argument %T", arg))
		}
	}

	if IsVoidElement(tag) {
		node.Children = nil
	}
	return node
}

// Prop creates an attribute.
func Prop(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Text creates a text node.
func Text(content string) *VNode {
	return &VNode{
		Kind: KindText,
		Text: content,
	}
}

// Textf creates a formatted text node.
func Textf(format string, args ...any) *VNode {
	return Text(fmt.Sprintf(format, args...))
}

func Div(args ...any) *VNode    { return El("div", args...) }
func Span(args ...any) *VNode   { return El("span", args...) }
func Button(args ...any) *VNode { return El("button", args...) }
func Br(args ...any) *VNode     { return El("br", args...) }
