// Package lock serializes work on a single platform message.
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/OneOfOne/xxhash"
)

// Locker hands out exclusive access per key. The returned release func must
// be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MessageKey is the lock key for one message.
func MessageKey(channelID, messageID int64) string {
	return fmt.Sprintf("message:%d:%d", channelID, messageID)
}

const shardCount = 32

// KeyedMutex is an in-process Locker. Waiters honour context cancellation
// and per-key state is dropped once nobody holds or waits on it.
type KeyedMutex struct {
	shards [shardCount]shard
}

type shard struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	k := &KeyedMutex{}
	for i := range k.shards {
		k.shards[i].slots = make(map[string]*slot)
	}
	return k
}

func (k *KeyedMutex) shardFor(key string) *shard {
	h := xxhash.NewS64(0)
	h.Write([]byte(key))
	return &k.shards[h.Sum64()%shardCount]
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	sh := k.shardFor(key)

	sh.mu.Lock()
	s, ok := sh.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		sh.slots[key] = s
	}
	s.refs++
	sh.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		sh.drop(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.sem
			sh.drop(key, s)
		})
	}, nil
}

func (sh *shard) drop(key string, s *slot) {
	sh.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(sh.slots, key)
	}
	sh.mu.Unlock()
}

// held reports how many keys currently have holders or waiters.
func (k *KeyedMutex) held() int {
	n := 0
	for i := range k.shards {
		k.shards[i].mu.Lock()
		n += len(k.shards[i].slots)
		k.shards[i].mu.Unlock()
	}
	return n
}
