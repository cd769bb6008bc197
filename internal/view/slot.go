package view

import (
	"sync"
)

// Slot is a named region of the dashboard. Controllers replace its content and
// frontends subscribe to changes.
type Slot struct {
	Name string

	mutex     sync.Mutex
	node      *Node
	nextID    int
	listeners map[int]func(*Node)
}

func NewSlot(name string) *Slot {
	return &Slot{Name: name, listeners: make(map[int]func(*Node))}
}

// Replace swaps the slot's content and notifies every listener.
func (slot *Slot) Replace(node *Node) {
	slot.mutex.Lock()
	slot.node = node
	listeners := make([]func(*Node), 0, len(slot.listeners))
	for _, listener := range slot.listeners {
		listeners = append(listeners, listener)
	}
	slot.mutex.Unlock()

	for _, listener := range listeners {
		listener(node)
	}
}

func (slot *Slot) Current() *Node {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()
	return slot.node
}

// OnChange registers fn for future replacements. The returned function removes it.
func (slot *Slot) OnChange(fn func(*Node)) func() {
	slot.mutex.Lock()
	defer slot.mutex.Unlock()

	id := slot.nextID
	slot.nextID++
	slot.listeners[id] = fn

	return func() {
		slot.mutex.Lock()
		defer slot.mutex.Unlock()
		delete(slot.listeners, id)
	}
}
