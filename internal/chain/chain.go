// Package chain declares the order tasks run in: a linked sequence of task
// references where a group holds its own nested sequence.
//
// Nodes live in an arena owned by Chain and link to each other by index.
// A group node points at a head node; the head starts the group's inner
// sequence and links back to the group through its previous index.
package chain

import (
	"fmt"
	"reflect"
	"strings"
)

type nodeID int

const none nodeID = -1

// Ref names the task a concrete node stands for, by type or by name.
type Ref struct {
	Type reflect.Type
	Name string
}

// Matches reports whether the ref points at a task of type typ or named name.
// Pointer and value types match each other and names compare case-insensitively.
func (r Ref) Matches(typ reflect.Type, name string) bool {
	if r.Type != nil && typ != nil && indirect(r.Type) == indirect(typ) {
		return true
	}
	return r.Name != "" && name != "" && strings.EqualFold(r.Name, name)
}

func (r Ref) String() string {
	if r.Type != nil {
		return indirect(r.Type).Name()
	}
	return r.Name
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

type node struct {
	ref         Ref
	group       bool
	head        bool
	description string
	next        nodeID
	previous    nodeID
	leaf        nodeID
}

// Chain is the arena holding every node of one task chain.
type Chain struct {
	nodes []node
	root  nodeID
}

// New creates an empty chain.
func New() *Chain {
	return &Chain{root: none}
}

func (c *Chain) add(n node) nodeID {
	n.next, n.previous, n.leaf = none, none, none
	c.nodes = append(c.nodes, n)
	return nodeID(len(c.nodes) - 1)
}

func (c *Chain) start(n node) Item {
	id := c.add(n)
	if c.root == none {
		c.root = id
	}
	return Item{chain: c, id: id}
}

// Task starts the chain with the task named name.
func (c *Chain) Task(name string) Item {
	return c.start(node{ref: Ref{Name: name}})
}

// Group starts the chain with a group.
func (c *Chain) Group(description string, configure func(head Item)) Item {
	g := c.start(node{group: true, description: description})
	c.fillGroup(g.id, configure)
	return g
}

// TaskOf starts the chain with the task of type T.
func TaskOf[T any](c *Chain) Item {
	return c.start(node{ref: Ref{Type: reflect.TypeFor[T]()}})
}

// Root returns the first node of the chain.
func (c *Chain) Root() (Item, bool) {
	if c.root == none {
		return Item{}, false
	}
	return Item{chain: c, id: c.root}, true
}

// Len returns the number of nodes, proxies included.
func (c *Chain) Len() int {
	return len(c.nodes)
}

func (c *Chain) fillGroup(group nodeID, configure func(head Item)) {
	head := c.add(node{head: true})
	c.nodes[head].previous = group
	c.nodes[group].leaf = head
	if configure != nil {
		configure(Item{chain: c, id: head})
	}
}

// Item is a handle to one node of a chain. The zero Item is invalid.
type Item struct {
	chain *Chain
	id    nodeID
}

// Valid reports whether the item refers to a node.
func (it Item) Valid() bool {
	return it.chain != nil && it.id >= 0 && int(it.id) < len(it.chain.nodes)
}

// Chain returns the arena the item belongs to.
func (it Item) Chain() *Chain {
	return it.chain
}

func (it Item) node() *node {
	return &it.chain.nodes[it.id]
}

func (it Item) at(id nodeID) (Item, bool) {
	if id == none {
		return Item{}, false
	}
	return Item{chain: it.chain, id: id}, true
}

func (it Item) append(n node) Item {
	id := it.chain.add(n)
	it.chain.nodes[id].previous = it.id
	it.node().next = id
	return Item{chain: it.chain, id: id}
}

// Task appends the task named name after it.
func (it Item) Task(name string) Item {
	return it.append(node{ref: Ref{Name: name}})
}

// Group appends a group after it. configure receives the group's head and
// populates the inner sequence with the same operations.
func (it Item) Group(description string, configure func(head Item)) Item {
	g := it.append(node{group: true, description: description})
	it.chain.fillGroup(g.id, configure)
	return g
}

// Then appends the task of type T after it.
func Then[T any](it Item) Item {
	return it.append(node{ref: Ref{Type: reflect.TypeFor[T]()}})
}

// Ref returns the task reference of a concrete node.
func (it Item) Ref() Ref {
	return it.node().ref
}

// IsProxy is true for groups and group heads.
func (it Item) IsProxy() bool {
	n := it.node()
	return n.group || n.head
}

// IsGroup is true when the node owns a nested sequence.
func (it Item) IsGroup() bool {
	return it.node().leaf != none
}

// IsHead is true for the empty node starting a group's inner sequence.
func (it Item) IsHead() bool {
	return it.node().head
}

// Description returns a group's description.
func (it Item) Description() string {
	return it.node().description
}

// Next returns the following node.
func (it Item) Next() (Item, bool) {
	return it.at(it.node().next)
}

// Previous returns the preceding node. For a group head this is the group.
func (it Item) Previous() (Item, bool) {
	return it.at(it.node().previous)
}

// Leaf returns the head of a group's inner sequence.
func (it Item) Leaf() (Item, bool) {
	return it.at(it.node().leaf)
}

func (it Item) String() string {
	if !it.Valid() {
		return "<invalid>"
	}
	switch {
	case it.IsGroup():
		if d := it.Description(); d != "" {
			return fmt.Sprintf("group(%s)", d)
		}
		return "group"
	case it.IsHead():
		return "head"
	default:
		return it.Ref().String()
	}
}
