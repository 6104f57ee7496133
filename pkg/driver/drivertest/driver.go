// Package drivertest provides a deterministic in-memory driver.PageDriver.
//
// A Driver models the document as a tree of Nodes keyed by selector. The feed
// is scripted as a sequence of rounds: the n-th Discover call for the item
// selector returns Rounds[n], and the last round repeats once the script runs
// out. Detail views are Nodes overlaid on the document while open.
package drivertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"igcrawler/pkg/driver"
)

// Node is a fake element. Children maps a selector to the elements it matches
// beneath this node.
type Node struct {
	Text     string
	Attrs    map[string]string
	Children map[string][]*Node
}

// NewNode returns a node with the given text and attributes
func NewNode(text string, attrs map[string]string) *Node {
	return &Node{Text: text, Attrs: attrs, Children: map[string][]*Node{}}
}

// Add appends children matched by selector and returns n for chaining
func (n *Node) Add(selector string, children ...*Node) *Node {
	if n.Children == nil {
		n.Children = map[string][]*Node{}
	}
	n.Children[selector] = append(n.Children[selector], children...)
	return n
}

// Set is Add for a single child carrying one attribute
func (n *Node) Set(selector, attr, value string) *Node {
	return n.Add(selector, NewNode("", map[string]string{attr: value}))
}

// Driver is the fake page. Configure the exported fields before use.
type Driver struct {
	// ItemSelector is the selector whose matches follow the Rounds script
	ItemSelector string
	Rounds       [][]*Node
	// Document holds static elements such as the loading indicator
	Document *Node
	// Details maps a tile to the view OpenDetailView shows for it
	Details map[*Node]*Node
	// Loading, when set, decides whether LoadingSelector is currently present
	LoadingSelector string
	Loading         func() bool
	// Errors injects a one-shot failure for the named method
	Errors map[string]error

	mu        sync.Mutex
	location  string
	discovers int
	open      *Node
	calls     Calls
}

// Calls records what the code under test asked the driver to do
type Calls struct {
	Navigations     []string
	Discovers       int
	ScrollForward   int
	ScrollBackward  []int
	Opened          []*Node
	Closed          int
	WaitsForPresent int
}

// New returns a driver whose item selector yields the given rounds
func New(itemSelector string, rounds ...[]*Node) *Driver {
	return &Driver{
		ItemSelector: itemSelector,
		Rounds:       rounds,
		Document:     NewNode("", nil),
		Details:      map[*Node]*Node{},
		Errors:       map[string]error{},
	}
}

// Calls returns a copy of the recorded calls
func (d *Driver) Calls() Calls {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.calls
	c.Navigations = append([]string(nil), d.calls.Navigations...)
	c.ScrollBackward = append([]int(nil), d.calls.ScrollBackward...)
	c.Opened = append([]*Node(nil), d.calls.Opened...)
	return c
}

// DetailOpen reports whether a detail view is currently shown
func (d *Driver) DetailOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open != nil
}

func (d *Driver) fail(method string) error {
	if err, ok := d.Errors[method]; ok {
		delete(d.Errors, method)
		return err
	}
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("Navigate"); err != nil {
		return err
	}
	d.location = url
	d.calls.Navigations = append(d.calls.Navigations, url)
	return nil
}

func (d *Driver) CurrentLocation(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location, d.fail("CurrentLocation")
}

func (d *Driver) Discover(ctx context.Context, selector string) ([]driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("Discover"); err != nil {
		return nil, err
	}
	d.calls.Discovers++
	return handles(d.query(nil, selector, true)), nil
}

func (d *Driver) DiscoverWithin(ctx context.Context, h driver.Handle, selector string) ([]driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("DiscoverWithin"); err != nil {
		return nil, err
	}
	root, err := node(h)
	if err != nil {
		return nil, err
	}
	return handles(d.query(root, selector, false)), nil
}

func (d *Driver) ScrollForward(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.ScrollForward++
	return d.fail("ScrollForward")
}

func (d *Driver) ScrollBackward(ctx context.Context, offset int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.ScrollBackward = append(d.calls.ScrollBackward, offset)
	return d.fail("ScrollBackward")
}

func (d *Driver) ReadText(ctx context.Context, h driver.Handle, selector string) (string, error) {
	n, err := d.first(h, selector, "ReadText")
	if err != nil {
		return "", err
	}
	return n.Text, nil
}

func (d *Driver) ReadAttribute(ctx context.Context, h driver.Handle, selector, name string) (string, error) {
	n, err := d.first(h, selector, "ReadAttribute")
	if err != nil {
		return "", err
	}
	v, ok := n.Attrs[name]
	if !ok {
		return "", driver.ErrNotFound
	}
	return v, nil
}

func (d *Driver) WaitUntilPresent(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.WaitsForPresent++
	if err := d.fail("WaitUntilPresent"); err != nil {
		return false, err
	}
	return len(d.query(nil, selector, false)) > 0, nil
}

func (d *Driver) OpenDetailView(ctx context.Context, h driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := node(h)
	if err != nil {
		return err
	}
	d.calls.Opened = append(d.calls.Opened, n)
	if err := d.fail("OpenDetailView"); err != nil {
		return err
	}
	view, ok := d.Details[n]
	if !ok {
		view = NewNode("", nil)
	}
	d.open = view
	return nil
}

func (d *Driver) CloseDetailView(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls.Closed++
	d.open = nil
	return d.fail("CloseDetailView")
}

func (d *Driver) first(h driver.Handle, selector, method string) (*Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail(method); err != nil {
		return nil, err
	}
	root, err := node(h)
	if err != nil {
		return nil, err
	}
	if selector == "" {
		if root == nil {
			return nil, driver.ErrNotFound
		}
		return root, nil
	}
	matches := d.query(root, selector, false)
	if len(matches) == 0 {
		return nil, driver.ErrNotFound
	}
	return matches[0], nil
}

// query resolves selector under root, or against the document when root is
// nil. Document queries see the open detail view first.
func (d *Driver) query(root *Node, selector string, countDiscover bool) []*Node {
	if root != nil {
		return root.Children[selector]
	}
	if selector == d.ItemSelector && d.ItemSelector != "" {
		if countDiscover {
			defer func() { d.discovers++ }()
		}
		if len(d.Rounds) == 0 {
			return nil
		}
		i := d.discovers
		if i >= len(d.Rounds) {
			i = len(d.Rounds) - 1
		}
		return d.Rounds[i]
	}
	if selector == d.LoadingSelector && d.Loading != nil {
		if d.Loading() {
			return []*Node{NewNode("", nil)}
		}
		return nil
	}
	if d.open != nil {
		if m := d.open.Children[selector]; len(m) > 0 {
			return m
		}
	}
	if d.Document != nil {
		return d.Document.Children[selector]
	}
	return nil
}

func node(h driver.Handle) (*Node, error) {
	if h == nil {
		return nil, nil
	}
	n, ok := h.(*Node)
	if !ok {
		return nil, fmt.Errorf("drivertest: foreign handle %T", h)
	}
	return n, nil
}

func handles(nodes []*Node) []driver.Handle {
	out := make([]driver.Handle, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}
