package developer

import (
	"path"
	"strings"
	"sync"
)

// PathLocks serializes work on the same file path. Locks are created on
// demand and released once no goroutine holds or waits for them.
type PathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

// NewPathLocks creates an empty lock table.
func NewPathLocks() *PathLocks {
	return &PathLocks{locks: make(map[string]*pathLock)}
}

// canonicalPath maps "./src/a.py", "src/a.py" and "/src/a.py" to one key.
func canonicalPath(p string) string {
	p = path.Clean("/" + strings.TrimSpace(p))
	return strings.TrimPrefix(p, "/")
}

// Lock blocks until filePath is free and returns the matching unlock.
func (l *PathLocks) Lock(filePath string) (unlock func()) {
	key := canonicalPath(filePath)

	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &pathLock{}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			lk.mu.Unlock()
			l.mu.Lock()
			lk.refs--
			if lk.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of paths currently held or awaited.
func (l *PathLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
