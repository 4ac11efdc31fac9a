package chain

import "reflect"

// LeafChain flattens the concrete tasks a node stands for. A concrete node
// yields itself, a group yields every task after its head with nested groups
// flattened in order, and a head yields nothing.
func (it Item) LeafChain() []Item {
	if !it.IsProxy() {
		return []Item{it}
	}
	if !it.IsGroup() {
		return nil
	}

	var leaves []Item
	head, _ := it.Leaf()
	for cur, ok := head.Next(); ok; cur, ok = cur.Next() {
		leaves = append(leaves, cur.LeafChain()...)
	}
	return leaves
}

// RealParent walks back from it to the node whose leaves it depends on.
// Proxies are skipped, except that a group directly preceded by another
// group stops the walk at that outer group.
func (it Item) RealParent() (Item, bool) {
	cur, ok := it.Previous()
	for ok {
		if !cur.IsProxy() {
			return cur, true
		}
		prev, hasPrev := cur.Previous()
		if cur.IsGroup() && hasPrev && prev.IsGroup() {
			return prev, true
		}
		cur, ok = prev, hasPrev
	}
	return Item{}, false
}

// Predecessors returns the tasks it directly depends on.
func (it Item) Predecessors() []Item {
	prev, ok := it.Previous()
	if !ok {
		return nil
	}
	if !prev.IsProxy() {
		return []Item{prev}
	}
	if prev.IsGroup() {
		return prev.LeafChain()
	}

	parent, ok := it.RealParent()
	if !ok {
		return nil
	}
	return parent.LeafChain()
}

// Terminal returns the last task of the chain: the last top-level node, or
// the last leaf of a trailing group.
func (c *Chain) Terminal() (Item, bool) {
	cur, ok := c.Root()
	if !ok {
		return Item{}, false
	}
	for next, more := cur.Next(); more; next, more = next.Next() {
		cur = next
	}

	if !cur.IsProxy() {
		return cur, true
	}
	leaves := cur.LeafChain()
	if len(leaves) == 0 {
		return Item{}, false
	}
	return leaves[len(leaves)-1], true
}

// Find scans the chain from its root for the node referring to the task of
// type typ or named name.
func (c *Chain) Find(typ reflect.Type, name string) (Item, bool) {
	for cur, ok := c.Root(); ok; cur, ok = cur.Next() {
		for _, leaf := range cur.LeafChain() {
			if leaf.Ref().Matches(typ, name) {
				return leaf, true
			}
		}
	}
	return Item{}, false
}

// Leaves returns every concrete task of the chain in declaration order.
func (c *Chain) Leaves() []Item {
	var leaves []Item
	for cur, ok := c.Root(); ok; cur, ok = cur.Next() {
		leaves = append(leaves, cur.LeafChain()...)
	}
	return leaves
}
