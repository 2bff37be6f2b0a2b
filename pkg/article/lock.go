package article

import "sync"

// URLLock hands out one mutex per URL so the exists-check and the insert for the
// same URL never interleave across goroutines.
type URLLock struct {
	mu    sync.Mutex
	locks map[string]*urlEntry
}

type urlEntry struct {
	mu   sync.Mutex
	refs int
}

// NewURLLock creates an empty lock table.
func NewURLLock() *URLLock {
	return &URLLock{locks: make(map[string]*urlEntry)}
}

// Lock blocks until url is held by the caller and returns the matching unlock func.
func (l *URLLock) Lock(url string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[url]
	if !ok {
		e = &urlEntry{}
		l.locks[url] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, url)
		}
		l.mu.Unlock()
	}
}
