package models

import (
	"slices"
	"time"
)

// CustomDataItem is one plugin-defined key/value pair.
type CustomDataItem struct {
	Key   string
	Value string

	// LastModificationTime is zero for items written by older formats.
	LastModificationTime time.Time
}

// CustomData is an ordered key/value store. The zero value is empty and
// ready to use.
type CustomData struct {
	items []CustomDataItem
}

func (c *CustomData) index(key string) int {
	return slices.IndexFunc(c.items, func(it CustomDataItem) bool { return it.Key == key })
}

// Get returns the item stored under key.
func (c *CustomData) Get(key string) (CustomDataItem, bool) {
	if i := c.index(key); i >= 0 {
		return c.items[i], true
	}
	return CustomDataItem{}, false
}

// Set inserts or replaces an item, keeping the position of an existing key.
func (c *CustomData) Set(item CustomDataItem) {
	if i := c.index(item.Key); i >= 0 {
		c.items[i] = item
		return
	}
	c.items = append(c.items, item)
}

// Delete removes key.
func (c *CustomData) Delete(key string) {
	if i := c.index(key); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
}

// Items returns a copy of all items in order.
func (c *CustomData) Items() []CustomDataItem {
	return slices.Clone(c.items)
}

// Len returns the number of items.
func (c *CustomData) Len() int {
	return len(c.items)
}

// Clone returns an independent copy.
func (c CustomData) Clone() CustomData {
	return CustomData{items: slices.Clone(c.items)}
}

// Equal compares keys and values regardless of order. Timestamps are
// ignored.
func (c *CustomData) Equal(o *CustomData) bool {
	if c.Len() != o.Len() {
		return false
	}
	for _, it := range c.items {
		other, ok := o.Get(it.Key)
		if !ok || other.Value != it.Value {
			return false
		}
	}
	return true
}

// Size is the number of bytes the items contribute to an entry's size.
func (c *CustomData) Size() int {
	n := 0
	for _, it := range c.items {
		n += len(it.Key) + len(it.Value)
	}
	return n
}
