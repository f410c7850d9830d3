package agent

import (
	"path"
	"sync"
)

// turnLocks serializes the turns of a chat within the process,
// the locks are released when no turn of the chat is running
type turnLocks struct {
	mu    sync.Mutex
	chats map[string]*turnLock
}

type turnLock struct {
	sync.Mutex
	refs int
}

func (l *turnLocks) acquire(tenantID, chatID string) func() {
	key := path.Join(tenantID, chatID)

	l.mu.Lock()
	if l.chats == nil {
		l.chats = make(map[string]*turnLock)
	}
	tl := l.chats[key]
	if tl == nil {
		tl = new(turnLock)
		l.chats[key] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.Lock()
	return func() {
		tl.Unlock()

		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.chats, key)
		}
		l.mu.Unlock()
	}
}
