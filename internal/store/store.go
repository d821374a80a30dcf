package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"tomahawk/internal/job"
)

var bucketResponses = []byte("responses")

var ErrClosed = errors.New("store closed")

// Response is a resolver answer kept for offline use.
type Response struct {
	Tree     job.Tree  `json:"tree"`
	StoredAt time.Time `json:"storedAt"`
}

// Store persists resolver responses in BoltDB, fronted by an in-memory
// cache that reads are promoted into.
type Store struct {
	db     *bolt.DB
	mu     sync.RWMutex
	cache  map[string][]byte
	closed bool
}

// Open opens the store under dir. An empty dir yields a memory-only store.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return &Store{cache: make(map[string][]byte)}, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, "responses.db"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResponses)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, cache: make(map[string][]byte)}, nil
}

// Persistent reports whether the store is backed by a file.
func (s *Store) Persistent() bool { return s.db != nil }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetResponse loads the response stored under key.
func (s *Store) GetResponse(key string) (Response, bool) {
	var resp Response
	if !s.get(key, &resp) {
		return Response{}, false
	}
	return resp, true
}

// PutResponse stores tree under key, stamped with the current time.
func (s *Store) PutResponse(key string, tree job.Tree) error {
	return s.set(key, Response{Tree: tree, StoredAt: time.Now()})
}

// Keys lists stored keys with the given prefix, sorted.
func (s *Store) Keys(prefix string) []string {
	seen := make(map[string]struct{})

	s.mu.RLock()
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			seen[k] = struct{}{}
		}
	}
	db, closed := s.db, s.closed
	s.mu.RUnlock()

	if db != nil && !closed {
		db.View(func(tx *bolt.Tx) error {
			c := tx.Bucket(bucketResponses).Cursor()
			p := []byte(prefix)
			for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
				seen[string(k)] = struct{}{}
			}
			return nil
		})
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) get(key string, dest any) bool {
	s.mu.RLock()
	if data, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	db, closed := s.db, s.closed
	s.mu.RUnlock()

	if db == nil || closed {
		return false
	}

	var data []byte
	db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketResponses).Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return false
	}

	s.mu.Lock()
	s.cache[key] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *Store) set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.cache[key] = data
	db := s.db
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResponses).Put([]byte(key), data)
	})
}
