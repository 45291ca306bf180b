package slider

import "sync"

// ReleaseSource delivers pointer and touch releases that happen anywhere
// in the document, outside the component included.
type ReleaseSource interface {
	OnRelease(fn func()) (remove func())
}

// Mount registers a document-wide release listener that ends any drag.
// The returned function removes it and must be called on unmount.
func (s *Slider) Mount(doc ReleaseSource) (unmount func()) {
	remove := doc.OnRelease(s.EndDrag)

	var once sync.Once
	return func() { once.Do(remove) }
}

// ReleaseDispatcher is a ReleaseSource fed by explicit Release calls.
type ReleaseDispatcher struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func()
}

func NewReleaseDispatcher() *ReleaseDispatcher {
	return &ReleaseDispatcher{listeners: make(map[int]func())}
}

func (d *ReleaseDispatcher) OnRelease(fn func()) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// Release notifies every registered listener.
func (d *ReleaseDispatcher) Release() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (d *ReleaseDispatcher) Listeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}
