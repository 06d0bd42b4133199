// Package inmem provides the in-memory store backend used in development and
// tests. The whole tree lives in nested maps guarded by one RWMutex.
package inmem

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/eduprohq/edupro/storage/store"
)

type Store struct {
	mu   sync.RWMutex
	root map[string]interface{}
	hub  *store.Hub
}

var _ store.Store = (*Store)(nil)

func Open() *Store {
	return &Store{
		root: make(map[string]interface{}),
		hub:  store.NewHub(),
	}
}

func (s *Store) Get(_ context.Context, path string) (json.RawMessage, error) {
	segs, err := store.SplitPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valueAt(segs)
}

func (s *Store) Set(_ context.Context, path string, value interface{}) error {
	segs, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	node, err := normalize(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.setAt(segs, node)
	s.mu.Unlock()

	s.notify(path)
	return nil
}

func (s *Store) Update(_ context.Context, path string, partial map[string]interface{}) error {
	segs, err := store.SplitPath(path)
	if err != nil {
		return err
	}
	node, err := normalize(partial)
	if err != nil {
		return err
	}
	merge, _ := node.(map[string]interface{})

	s.mu.Lock()
	cur, _ := s.nodeAt(segs)
	obj, ok := cur.(map[string]interface{})
	if !ok {
		obj = make(map[string]interface{})
	}
	for k, v := range merge {
		if v == nil {
			delete(obj, k)
			continue
		}
		obj[k] = v
	}
	s.setAt(segs, obj)
	s.mu.Unlock()

	s.notify(path)
	return nil
}

func (s *Store) Push(ctx context.Context, path string, value interface{}) (string, error) {
	key := store.NewPushKey(time.Now())
	if err := s.Set(ctx, store.JoinPath(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *Store) Transact(_ context.Context, path string, fn store.TransactFunc) error {
	segs, err := store.SplitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cur, err := s.valueAt(segs)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	next, err := fn(cur)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	node, err := normalize(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.setAt(segs, node)
	s.mu.Unlock()

	s.notify(path)
	return nil
}

func (s *Store) Listen(path string, fn store.ListenFunc) store.UnsubscribeFunc {
	unsub := s.hub.Subscribe(path, fn)
	cur, _ := s.Get(context.Background(), path)
	fn(cur)
	return unsub
}

func (s *Store) notify(changedPath string) {
	s.hub.Notify(changedPath, func(path string) json.RawMessage {
		raw, _ := s.Get(context.Background(), path)
		return raw
	})
}

// nodeAt walks to the node at segs. The read lock must be held.
func (s *Store) nodeAt(segs []string) (interface{}, bool) {
	var node interface{} = s.root
	for _, seg := range segs {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if node, ok = obj[seg]; !ok {
			return nil, false
		}
	}
	return node, true
}

func (s *Store) valueAt(segs []string) (json.RawMessage, error) {
	node, ok := s.nodeAt(segs)
	if !ok || node == nil {
		return nil, nil
	}
	raw, err := json.Marshal(node)
	if err != nil {
		return nil, errors.Wrap(err, "encoding store value")
	}
	return raw, nil
}

// setAt writes node at segs, creating intermediate objects and pruning empty
// ones on delete. The write lock must be held.
func (s *Store) setAt(segs []string, node interface{}) {
	setIn(s.root, segs, node)
}

func setIn(obj map[string]interface{}, segs []string, node interface{}) {
	key := segs[0]
	if len(segs) == 1 {
		if node == nil {
			delete(obj, key)
		} else {
			obj[key] = node
		}
		return
	}

	child, ok := obj[key].(map[string]interface{})
	if !ok {
		if node == nil {
			return
		}
		child = make(map[string]interface{})
		obj[key] = child
	}
	setIn(child, segs[1:], node)
	if len(child) == 0 {
		delete(obj, key)
	}
}

// normalize round-trips value through JSON so the tree only ever holds plain
// maps, slices and primitives.
func normalize(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "encoding store value")
	}
	var node interface{}
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, errors.Wrap(err, "decoding store value")
	}
	return node, nil
}
