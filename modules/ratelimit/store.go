// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const DefaultShardCount = 64

// Window is one counting interval for a client key.
type Window struct {
	Count   int64
	ResetAt time.Time
}

// Expired reports whether a request at now must open a fresh window.
func (w Window) Expired(now time.Time) bool {
	return !now.Before(w.ResetAt)
}

// WindowStore maps client keys to their current window. Keys are spread over
// independently locked shards so that traffic on one key never waits on
// another shard.
//
// Get, Put, Delete and ForEach are individually safe but compose no
// atomicity; the limiter's check-then-increment goes through update, which
// holds the shard lock for the whole read-modify-write.
type WindowStore struct {
	shards []*windowShard
}

type windowShard struct {
	mu      sync.Mutex
	windows map[string]*Window
}

func NewWindowStore(shards int) *WindowStore {
	if shards <= 0 {
		shards = DefaultShardCount
	}
	s := &WindowStore{shards: make([]*windowShard, shards)}
	for i := range s.shards {
		s.shards[i] = &windowShard{windows: make(map[string]*Window)}
	}
	return s
}

func (s *WindowStore) shardFor(key string) *windowShard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

func (s *WindowStore) Get(key string) (Window, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	w, ok := sh.windows[key]
	if !ok {
		return Window{}, false
	}
	return *w, true
}

func (s *WindowStore) Put(key string, w Window) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.windows[key] = &w
	sh.mu.Unlock()
}

func (s *WindowStore) Delete(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.windows, key)
	sh.mu.Unlock()
}

// ForEach visits a copy of every entry, one shard at a time. Returning false
// stops the iteration.
func (s *WindowStore) ForEach(fn func(key string, w Window) bool) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		snapshot := make(map[string]Window, len(sh.windows))
		for k, w := range sh.windows {
			snapshot[k] = *w
		}
		sh.mu.Unlock()

		for k, w := range snapshot {
			if !fn(k, w) {
				return
			}
		}
	}
}

func (s *WindowStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.windows)
		sh.mu.Unlock()
	}
	return n
}

func (s *WindowStore) ShardCount() int {
	return len(s.shards)
}

// EvictShard drops the expired windows of shard i. The expiry check runs
// under the shard lock, so a window recreated by a concurrent decision is
// never removed.
func (s *WindowStore) EvictShard(i int, now time.Time) int {
	sh := s.shards[i]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	evicted := 0
	for k, w := range sh.windows {
		if w.Expired(now) {
			delete(sh.windows, k)
			evicted++
		}
	}
	return evicted
}

// update runs fn on the window for key while holding its shard lock and
// returns the resulting state. fn receives a zero window and found=false when
// the key is absent; the window is stored either way.
func (s *WindowStore) update(key string, fn func(w *Window, found bool)) Window {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, found := sh.windows[key]
	if !found {
		w = &Window{}
		sh.windows[key] = w
	}
	fn(w, found)
	return *w
}
