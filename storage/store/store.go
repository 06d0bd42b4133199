// Package store defines the path-addressed JSON document store the whole
// portal persists through. Data lives in a single tree; paths are
// slash-separated segments ("users/{uid}", "exam_attempts/{examId}/{uid}",
// "config"). Backends live in the inmem and postgres sub-packages.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrInvalidPath = errors.New("invalid store path")

	// ErrAborted is returned by Transact when the callback aborted the
	// transaction without a domain error of its own.
	ErrAborted = errors.New("transaction aborted")
)

type (
	// TransactFunc receives the current value at a path (nil when absent) and
	// returns the value to write back. Returning an error aborts the
	// transaction and nothing is written.
	TransactFunc func(current json.RawMessage) (interface{}, error)

	// ListenFunc receives the full value at the subscribed path (nil when
	// absent). It is invoked once immediately upon subscription and then on
	// every change until unsubscribed.
	ListenFunc func(value json.RawMessage)

	UnsubscribeFunc func()

	Store interface {
		// Get returns the value at path, or nil when nothing exists there.
		Get(ctx context.Context, path string) (json.RawMessage, error)
		// Set fully overwrites the value at path. A nil value deletes it.
		Set(ctx context.Context, path string, value interface{}) error
		// Update shallow-merges partial into the object at path, creating it
		// if absent.
		Update(ctx context.Context, path string, partial map[string]interface{}) error
		// Push appends value under a generated chronologically-sortable key
		// and returns that key.
		Push(ctx context.Context, path string, value interface{}) (string, error)
		// Delete removes the value (and any children) at path.
		Delete(ctx context.Context, path string) error
		// Transact atomically applies fn to the value at path. Concurrent
		// transactions on the same path serialize; lost updates cannot occur.
		Transact(ctx context.Context, path string, fn TransactFunc) error
		// Listen subscribes to path: fn fires immediately with the current
		// value, then on every subsequent change, until unsubscribed.
		Listen(path string, fn ListenFunc) UnsubscribeFunc
	}
)

// SplitPath validates and splits a store path into its segments.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, errors.Wrap(ErrInvalidPath, "empty path")
	}
	segs := strings.Split(path, "/")
	for _, seg := range segs {
		if seg == "" || strings.ContainsAny(seg, ".$#[]") {
			return nil, errors.Wrapf(ErrInvalidPath, "%q", path)
		}
	}
	return segs, nil
}

// JoinPath joins path segments.
func JoinPath(segs ...string) string {
	return strings.Join(segs, "/")
}

// Related reports whether a write at changed is visible to a subscriber of
// sub: equal paths, sub an ancestor of changed, or changed an ancestor of sub.
func Related(sub, changed string) bool {
	if sub == changed {
		return true
	}
	return strings.HasPrefix(changed, sub+"/") || strings.HasPrefix(sub, changed+"/")
}

// NewPushKey generates a push key that sorts chronologically: a millisecond
// timestamp prefix followed by a random suffix for same-millisecond pushes.
func NewPushKey(now time.Time) string {
	ms := now.UnixNano() / int64(time.Millisecond)
	return fmt.Sprintf("%013x-%s", ms, uuid.New().String()[:8])
}

// Decode unmarshals raw into dst; a nil raw leaves dst untouched and reports
// absence.
func Decode(raw json.RawMessage, dst interface{}) (found bool, err error) {
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, errors.Wrap(err, "decoding store value")
	}
	return true, nil
}

// DecodeMap materializes a collection snapshot into its key→raw entries.
// A nil snapshot yields an empty map.
func DecodeMap(raw json.RawMessage) (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)
	if raw == nil {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrap(err, "decoding store collection")
	}
	return entries, nil
}
