// Package dom is a small server-side document model over x/net/html.
//
// It gives page controllers element handles with the operations a browser
// view would use: replace content, toggle the disabled state of a control,
// and bind click handlers that the HTTP layer can dispatch.
package dom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

var (
	// ErrElementNotFound reports that no element carries the requested id.
	ErrElementNotFound = errors.New("element not found")
	// ErrDisabled reports a click on a disabled control.
	ErrDisabled = errors.New("element is disabled")
)

// DisabledClass is the style class applied to disabled controls.
const DisabledClass = "is-disabled"

// Document is a mutable HTML document. All mutations hold the document lock.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	handlers map[string][]clickBinding
	nextID   uint64
}

type clickBinding struct {
	id      uint64
	handler func(context.Context)
}

// Parse parses a full HTML document.
func Parse(markup string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{root: root, handlers: map[string][]clickBinding{}}, nil
}

// Render writes the serialized document to w.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String returns the serialized document.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

// Element returns a handle for the element with id. A leading "#" is
// accepted. The element does not need to exist yet.
func (d *Document) Element(id string) *Element {
	return &Element{doc: d, id: strings.TrimPrefix(strings.TrimSpace(id), "#")}
}

// Click dispatches the click handlers bound to id, in binding order.
// Disabled controls swallow the click and return ErrDisabled.
func (d *Document) Click(ctx context.Context, id string) error {
	id = strings.TrimPrefix(strings.TrimSpace(id), "#")
	d.mu.Lock()
	node := findByID(d.root, id)
	if node == nil {
		d.mu.Unlock()
		return fmt.Errorf("click #%s: %w", id, ErrElementNotFound)
	}
	if _, disabled := attr(node, "disabled"); disabled {
		d.mu.Unlock()
		return fmt.Errorf("click #%s: %w", id, ErrDisabled)
	}
	bindings := slices.Clone(d.handlers[id])
	d.mu.Unlock()

	for _, binding := range bindings {
		binding.handler(ctx)
	}
	return nil
}

// Element is a handle to one element, addressed by id. The resolved node is
// cached until the element is detached by a content replacement.
type Element struct {
	doc  *Document
	id   string
	node *html.Node
}

// ID returns the element id without the "#" prefix.
func (e *Element) ID() string {
	return e.id
}

// Selector returns the id selector for the element.
func (e *Element) Selector() string {
	return "#" + e.id
}

// resolve must be called with the document lock held.
func (e *Element) resolve() (*html.Node, error) {
	if e.node != nil && attached(e.doc.root, e.node) {
		return e.node, nil
	}
	node := findByID(e.doc.root, e.id)
	if node == nil {
		e.node = nil
		return nil, fmt.Errorf("#%s: %w", e.id, ErrElementNotFound)
	}
	e.node = node
	return node, nil
}

// Exists reports whether the element is currently in the document.
func (e *Element) Exists() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	_, err := e.resolve()
	return err == nil
}

// SetHTML replaces the element's children with the parsed markup.
func (e *Element) SetHTML(markup string) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	node, err := e.resolve()
	if err != nil {
		return err
	}
	children, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     node.Data,
		DataAtom: node.DataAtom,
	})
	if err != nil {
		return fmt.Errorf("parse fragment for #%s: %w", e.id, err)
	}
	for child := node.FirstChild; child != nil; {
		next := child.NextSibling
		node.RemoveChild(child)
		child = next
	}
	for _, child := range children {
		node.AppendChild(child)
	}
	return nil
}

// InnerHTML serializes the element's children.
func (e *Element) InnerHTML() (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	node, err := e.resolve()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&buf, child); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// OuterHTML serializes the element itself.
func (e *Element) OuterHTML() (string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	node, err := e.resolve()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Attr returns an attribute value.
func (e *Element) Attr(key string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	node, err := e.resolve()
	if err != nil {
		return "", false
	}
	return attr(node, key)
}

// HasClass reports whether the element's class list contains class.
func (e *Element) HasClass(class string) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	node, err := e.resolve()
	if err != nil {
		return false
	}
	value, _ := attr(node, "class")
	return slices.Contains(strings.Fields(value), class)
}

// SetDisabled sets the disabled style class, the disabled attribute and
// aria-disabled together in one locked mutation.
func (e *Element) SetDisabled(disabled bool) error {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	node, err := e.resolve()
	if err != nil {
		return err
	}
	toggleClass(node, DisabledClass, disabled)
	if disabled {
		setAttr(node, "disabled", "disabled")
	} else {
		removeAttr(node, "disabled")
	}
	setAttr(node, "aria-disabled", fmt.Sprintf("%t", disabled))
	return nil
}

// DisabledState reports the style class, the disabled attribute and
// aria-disabled as read from the document.
func (e *Element) DisabledState() (style bool, disabledAttr bool, ariaDisabled bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	node, err := e.resolve()
	if err != nil {
		return false, false, false
	}
	class, _ := attr(node, "class")
	style = slices.Contains(strings.Fields(class), DisabledClass)
	_, disabledAttr = attr(node, "disabled")
	aria, _ := attr(node, "aria-disabled")
	return style, disabledAttr, aria == "true"
}

// OnClick binds handler to clicks on the element and returns a function
// that removes the binding.
func (e *Element) OnClick(handler func(context.Context)) func() {
	if handler == nil {
		return func() {}
	}
	e.doc.mu.Lock()
	e.doc.nextID++
	bindingID := e.doc.nextID
	e.doc.handlers[e.id] = append(e.doc.handlers[e.id], clickBinding{id: bindingID, handler: handler})
	e.doc.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.doc.mu.Lock()
			defer e.doc.mu.Unlock()
			e.doc.handlers[e.id] = slices.DeleteFunc(e.doc.handlers[e.id], func(b clickBinding) bool {
				return b.id == bindingID
			})
		})
	}
}

// ClickHandlers reports how many click handlers are bound to the element.
func (e *Element) ClickHandlers() int {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return len(e.doc.handlers[e.id])
}

func findByID(root *html.Node, id string) *html.Node {
	if root == nil || id == "" {
		return nil
	}
	if root.Type == html.ElementNode {
		if value, ok := attr(root, "id"); ok && value == id {
			return root
		}
	}
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func attached(root *html.Node, node *html.Node) bool {
	for current := node; current != nil; current = current.Parent {
		if current == root {
			return true
		}
	}
	return false
}

func attr(node *html.Node, key string) (string, bool) {
	for _, a := range node.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(node *html.Node, key string, value string) {
	for i, a := range node.Attr {
		if a.Namespace == "" && a.Key == key {
			node.Attr[i].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: key, Val: value})
}

func removeAttr(node *html.Node, key string) {
	node.Attr = slices.DeleteFunc(node.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
}

func toggleClass(node *html.Node, class string, on bool) {
	value, _ := attr(node, "class")
	classes := slices.DeleteFunc(strings.Fields(value), func(c string) bool { return c == class })
	if on {
		classes = append(classes, class)
	}
	if len(classes) == 0 {
		removeAttr(node, "class")
		return
	}
	setAttr(node, "class", strings.Join(classes, " "))
}
