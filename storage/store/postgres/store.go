// Package postgres backs the store with a single jsonb documents table.
// Each row holds one node of the tree; reads assemble subtrees from child
// rows or descend into ancestor rows, so any path remains addressable no
// matter at which granularity it was written.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/storage/store"
)

type (
	// Relay propagates change events across API replicas.
	Relay interface {
		Broadcast(ctx context.Context, origin, path string) error
		Run(ctx context.Context, onRemote func(origin, path string)) error
	}

	Store struct {
		db       *sqlx.DB
		hub      *store.Hub
		relay    Relay
		instance string
	}

	docRow struct {
		Path string          `db:"path"`
		Doc  json.RawMessage `db:"doc"`
	}
)

var _ store.Store = (*Store)(nil)

func New(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		hub:      store.NewHub(),
		instance: uuid.New().String(),
	}
}

// AttachRelay wires a cross-replica change relay: local changes are
// broadcast, remote changes re-notify local subscribers.
func (s *Store) AttachRelay(ctx context.Context, relay Relay, logger core.Logger) {
	s.relay = relay
	go func() {
		if err := relay.Run(ctx, func(origin, path string) {
			if origin != s.instance {
				s.notify(ctx, path)
			}
		}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("store relay stopped", err)
		}
	}()
}

func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, error) {
	segs, err := store.SplitPath(path)
	if err != nil {
		return nil, err
	}
	return getNode(ctx, s.db, segs)
}

func (s *Store) Set(ctx context.Context, path string, value interface{}) error {
	return s.write(ctx, path, func(cur json.RawMessage) (interface{}, error) {
		return value, nil
	})
}

func (s *Store) Update(ctx context.Context, path string, partial map[string]interface{}) error {
	return s.write(ctx, path, func(cur json.RawMessage) (interface{}, error) {
		obj := make(map[string]interface{})
		if cur != nil {
			if err := json.Unmarshal(cur, &obj); err != nil {
				// current value is not an object; the merge replaces it
				obj = make(map[string]interface{})
			}
		}
		for k, v := range partial {
			if v == nil {
				delete(obj, k)
				continue
			}
			obj[k] = v
		}
		return obj, nil
	})
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

func (s *Store) Transact(ctx context.Context, path string, fn store.TransactFunc) error {
	return s.write(ctx, path, fn)
}

func (s *Store) Listen(path string, fn store.ListenFunc) store.UnsubscribeFunc {
	unsub := s.hub.Subscribe(path, fn)
	cur, _ := s.Get(context.Background(), path)
	fn(cur)
	return unsub
}

// write runs fn against the current value at path inside a transaction that
// serializes all writers of the same top-level collection, then persists the
// result and fans the change out.
func (s *Store) write(ctx context.Context, path string, fn store.TransactFunc) error {
	segs, err := store.SplitPath(path)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// serialize writers per top-level collection
	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", segs[0]); err != nil {
		return errors.Wrap(err, "locking collection")
	}

	cur, err := getNode(ctx, tx, segs)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if err = setNode(ctx, tx, segs, next); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	s.notify(ctx, path)
	if s.relay != nil {
		_ = s.relay.Broadcast(ctx, s.instance, path)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, changedPath string) {
	s.hub.Notify(changedPath, func(path string) json.RawMessage {
		raw, _ := s.Get(ctx, path)
		return raw
	})
}

// getNode resolves the value at segs: the exact row, a descent into the
// nearest ancestor row, or a subtree assembled from child rows.
func getNode(ctx context.Context, q sqlx.QueryerContext, segs []string) (json.RawMessage, error) {
	path := store.JoinPath(segs...)

	var row docRow
	err := sqlx.GetContext(ctx, q, &row, "SELECT path, doc FROM documents WHERE path = $1", path)
	switch {
	case err == nil:
		return row.Doc, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, errors.Wrap(err, "reading document")
	}

	// nearest ancestor row
	for i := len(segs) - 1; i >= 1; i-- {
		anc := store.JoinPath(segs[:i]...)
		err = sqlx.GetContext(ctx, q, &row, "SELECT path, doc FROM documents WHERE path = $1", anc)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading ancestor document")
		}
		return descend(row.Doc, segs[i:])
	}

	// assemble subtree from child rows
	var rows []docRow
	err = sqlx.SelectContext(ctx, q, &rows,
		"SELECT path, doc FROM documents WHERE path LIKE $1 ORDER BY path", path+"/%")
	if err != nil {
		return nil, errors.Wrap(err, "reading child documents")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	tree := make(map[string]interface{})
	for _, r := range rows {
		rel := strings.Split(strings.TrimPrefix(r.Path, path+"/"), "/")
		var doc interface{}
		if err = json.Unmarshal(r.Doc, &doc); err != nil {
			return nil, errors.Wrapf(err, "decoding document %q", r.Path)
		}
		deepSet(tree, rel, doc)
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, errors.Wrap(err, "encoding subtree")
	}
	return raw, nil
}

// setNode persists value at segs: into the nearest ancestor row when one
// exists, otherwise as its own row replacing any child rows.
func setNode(ctx context.Context, tx *sqlx.Tx, segs []string, value interface{}) error {
	path := store.JoinPath(segs...)

	// write into the nearest ancestor row when one holds this path
	for i := len(segs) - 1; i >= 1; i-- {
		anc := store.JoinPath(segs[:i]...)
		var row docRow
		err := sqlx.GetContext(ctx, tx, &row, "SELECT path, doc FROM documents WHERE path = $1", anc)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "reading ancestor document")
		}

		var doc map[string]interface{}
		if err = json.Unmarshal(row.Doc, &doc); err != nil {
			return errors.Wrapf(err, "decoding document %q", anc)
		}
		deepSet(doc, segs[i:], value)
		raw, err := json.Marshal(doc)
		if err != nil {
			return errors.Wrap(err, "encoding document")
		}
		if _, err = tx.ExecContext(ctx,
			"UPDATE documents SET doc = $2, updated_at = now() WHERE path = $1", anc, raw); err != nil {
			return errors.Wrap(err, "updating ancestor document")
		}
		return nil
	}

	// replace the exact row and any children
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM documents WHERE path = $1 OR path LIKE $2", path, path+"/%"); err != nil {
		return errors.Wrap(err, "clearing documents")
	}
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO documents (path, doc) VALUES ($1, $2)", path, raw); err != nil {
		return errors.Wrap(err, "inserting document")
	}
	return nil
}

func deepSet(obj map[string]interface{}, segs []string, value interface{}) {
	key := segs[0]
	if len(segs) == 1 {
		if value == nil {
			delete(obj, key)
		} else {
			obj[key] = value
		}
		return
	}
	child, ok := obj[key].(map[string]interface{})
	if !ok {
		if value == nil {
			return
		}
		child = make(map[string]interface{})
		obj[key] = child
	}
	deepSet(child, segs[1:], value)
	if len(child) == 0 {
		delete(obj, key)
	}
}

func descend(raw json.RawMessage, segs []string) (json.RawMessage, error) {
	var node interface{}
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, errors.Wrap(err, "decoding document")
	}
	for _, seg := range segs {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return nil, nil
		}
		if node, ok = obj[seg]; !ok {
			return nil, nil
		}
	}
	if node == nil {
		return nil, nil
	}
	out, err := json.Marshal(node)
	if err != nil {
		return nil, errors.Wrap(err, "encoding value")
	}
	return out, nil
}
