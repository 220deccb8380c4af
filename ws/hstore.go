package ws

import (
	"sync"
)

// memory handler store for local sessions.
type HandlerStore struct {
	sync.RWMutex
	handlers map[string]*Handler
}

func newHandlerStore() *HandlerStore {
	return &HandlerStore{handlers: make(map[string]*Handler)}
}

func (hs *HandlerStore) del(sid string) bool {
	hs.Lock()
	defer hs.Unlock()
	if _, ok := hs.handlers[sid]; ok {
		delete(hs.handlers, sid)
		return true
	}
	return false
}

func (hs *HandlerStore) add(handler *Handler) {
	hs.Lock()
	hs.handlers[handler.session.Sid] = handler
	hs.Unlock()
}

func (hs *HandlerStore) len() int {
	hs.RLock()
	defer hs.RUnlock()
	return len(hs.handlers)
}

// close closes every session. Handlers remove themselves on close, so iterate a copy.
func (hs *HandlerStore) close() {
	hs.RLock()
	slice := make([]*Handler, 0, len(hs.handlers))
	for _, h := range hs.handlers {
		slice = append(slice, h)
	}
	hs.RUnlock()

	for _, h := range slice {
		h.close(ServerStop)
	}
}
