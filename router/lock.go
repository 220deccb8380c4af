package router

import (
	"sync"
	"time"
)

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	sync.Mutex
	kv map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{kv: make(map[string]*refMutex)}
}

// Lock locks key and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.Mutex.Lock()
	m, ok := k.kv[key]
	if !ok {
		m = &refMutex{}
		k.kv[key] = m
	}
	m.refs++
	k.Mutex.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.Mutex.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.kv, key)
		}
		k.Mutex.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.Mutex.Lock()
	defer k.Mutex.Unlock()
	return len(k.kv)
}

// senderClock hands out strictly increasing create times per sender.
type senderClock struct {
	sync.Mutex
	last map[string]int64
	now  func() time.Time
}

func newSenderClock() *senderClock {
	return &senderClock{last: make(map[string]int64), now: time.Now}
}

// next returns unix microseconds, greater than any value returned before for sender.
func (c *senderClock) next(sender string) int64 {
	t := c.now().UnixNano() / 1e3
	c.Lock()
	defer c.Unlock()
	if last := c.last[sender]; t <= last {
		t = last + 1
	}
	c.last[sender] = t
	return t
}
