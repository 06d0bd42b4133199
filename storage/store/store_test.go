package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitPath(t *testing.T) {
	segs, err := SplitPath("exam_attempts/e1/u1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"exam_attempts", "e1", "u1"}, segs)

	for _, path := range []string{"", "/", "a//b", "a/", "a.b", "a/$x", "a/#", "a/b[0]"} {
		_, err := SplitPath(path)
		assert.ErrorIs(t, err, ErrInvalidPath, "path %q", path)
	}
}

func TestRelated(t *testing.T) {
	tests := []struct {
		sub, changed string
		want         bool
	}{
		{"users", "users", true},
		{"users", "users/u1", true},          // descendant write
		{"users/u1", "users", true},          // ancestor write
		{"users/u1", "users/u1/name", true},  // deep descendant
		{"users", "user_settings", false},    // prefix but not a segment boundary
		{"users/u1", "users/u2", false},      // sibling
		{"chat", "posts", false},             // unrelated
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Related(tt.sub, tt.changed), "Related(%q, %q)", tt.sub, tt.changed)
	}
}

func TestNewPushKey(t *testing.T) {
	base := time.Now()
	k1 := NewPushKey(base)
	k2 := NewPushKey(base.Add(time.Millisecond))
	k3 := NewPushKey(base.Add(time.Second))

	// keys at later instants sort after earlier ones
	assert.Less(t, k1, k2)
	assert.Less(t, k2, k3)

	// keys are valid path segments
	_, err := SplitPath(JoinPath("chat", k1))
	assert.NoError(t, err)

	// same-millisecond pushes still yield distinct keys
	assert.NotEqual(t, NewPushKey(base), NewPushKey(base))
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	found, err := Decode(nil, &v)
	assert.NoError(t, err)
	assert.False(t, found)

	found, err = Decode([]byte(`{"name":"Asha"}`), &v)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Asha", v.Name)

	_, err = Decode([]byte(`{oops`), &v)
	assert.Error(t, err)
}

func TestDecodeMap(t *testing.T) {
	entries, err := DecodeMap(nil)
	assert.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = DecodeMap([]byte(`{"a":{"n":1},"b":{"n":2}}`))
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.JSONEq(t, `{"n":1}`, string(entries["a"]))
}
