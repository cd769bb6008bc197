package view

import (
	"sync"
)

// ModalHost shows at most one modal at a time.
type ModalHost struct {
	mutex     sync.Mutex
	current   *Modal
	listeners []func(*Modal)
}

// Modal is an open dialog. Closing it drops its body, which releases every action
// handler the body carried, and runs the registered close callbacks once.
type Modal struct {
	Title string

	host    *ModalHost
	mutex   sync.Mutex
	body    *Node
	closed  bool
	onClose []func()
}

func NewModalHost() *ModalHost {
	return &ModalHost{}
}

// Open shows a new modal, closing the one currently open.
func (host *ModalHost) Open(title string, body *Node) *Modal {
	modal := &Modal{Title: title, host: host, body: body}

	host.mutex.Lock()
	previous := host.current
	host.current = modal
	host.mutex.Unlock()

	if previous != nil {
		previous.close(false)
	}
	host.notify(modal)

	return modal
}

// Current returns the open modal or nil.
func (host *ModalHost) Current() *Modal {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	return host.current
}

// OnChange registers fn to be called with the newly open modal, or nil when the open
// modal closes.
func (host *ModalHost) OnChange(fn func(*Modal)) {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	host.listeners = append(host.listeners, fn)
}

// CloseAll closes the open modal if there is one.
func (host *ModalHost) CloseAll() {
	if modal := host.Current(); modal != nil {
		modal.Close()
	}
}

func (host *ModalHost) notify(modal *Modal) {
	host.mutex.Lock()
	listeners := append([]func(*Modal){}, host.listeners...)
	host.mutex.Unlock()

	for _, listener := range listeners {
		listener(modal)
	}
}

func (modal *Modal) Body() *Node {
	modal.mutex.Lock()
	defer modal.mutex.Unlock()
	return modal.body
}

// SetBody replaces the content of an open modal.
func (modal *Modal) SetBody(body *Node) {
	modal.mutex.Lock()
	if modal.closed {
		modal.mutex.Unlock()
		return
	}
	modal.body = body
	modal.mutex.Unlock()

	if modal.host.Current() == modal {
		modal.host.notify(modal)
	}
}

func (modal *Modal) OnClose(fn func()) {
	modal.mutex.Lock()
	defer modal.mutex.Unlock()
	modal.onClose = append(modal.onClose, fn)
}

func (modal *Modal) Closed() bool {
	modal.mutex.Lock()
	defer modal.mutex.Unlock()
	return modal.closed
}

func (modal *Modal) Close() {
	modal.close(true)
}

func (modal *Modal) close(notifyHost bool) {
	modal.mutex.Lock()
	if modal.closed {
		modal.mutex.Unlock()
		return
	}
	modal.closed = true
	modal.body = nil
	callbacks := modal.onClose
	modal.onClose = nil
	modal.mutex.Unlock()

	for _, callback := range callbacks {
		callback()
	}

	if !notifyHost {
		return
	}

	host := modal.host
	host.mutex.Lock()
	wasCurrent := host.current == modal
	if wasCurrent {
		host.current = nil
	}
	host.mutex.Unlock()

	if wasCurrent {
		host.notify(nil)
	}
}
