package seenset

import (
	"sync"
	"time"
)

// SeenSet remembers keys together with the last time they were seen
type SeenSet[K comparable] struct {
	mutex sync.Mutex
	m     map[K]time.Time
}

func New[K comparable]() *SeenSet[K] {
	return &SeenSet[K]{
		m: make(map[K]time.Time),
	}
}

// Seen returns true if key was already seen. Unless notouch, updates the timestamp
func (s *SeenSet[K]) Seen(k K, notouch ...bool) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, ret := s.m[k]
	if len(notouch) == 0 || !notouch[0] {
		s.m[k] = time.Now()
	}
	return ret
}

// Forget removes key from the set
func (s *SeenSet[K]) Forget(k K) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.m, k)
}

// Purge removes keys not seen for longer than ttl. Returns number of removed keys
func (s *SeenSet[K]) Purge(ttl time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ret := 0
	for k, when := range s.m {
		if time.Since(when) > ttl {
			delete(s.m, k)
			ret++
		}
	}
	return ret
}

func (s *SeenSet[K]) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.m)
}
