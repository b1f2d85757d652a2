// Package prefs persists encoded object graphs under string keys, the way an
// editor keeps window and tool state between sessions.
package prefs

import (
	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/oy3o/objcodec"
)

// ErrNotFound is returned by Get and Load for a key that holds no value.
var ErrNotFound = errors.New("prefs: key not found")

// Store is a flat key to string mapping.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// MemoryStore keeps values in process memory. It is safe for concurrent use.
type MemoryStore struct {
	m *xsync.Map[string, string]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: xsync.NewMap[string, string]()}
}

func (s *MemoryStore) Get(key string) (string, error) {
	v, ok := s.m.Load(key)
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "%q", key)
	}
	return v, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.m.Store(key, value)
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.m.Delete(key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Save encodes v with c and stores the text form under key. Binary codecs
// store base64, JSON codecs the document itself.
func Save(s Store, key string, c objcodec.StringCodec, v any) error {
	text, err := c.MarshalString(v)
	if err != nil {
		return errors.Wrapf(err, "prefs: encode %q", key)
	}
	return s.Set(key, text)
}

// Load decodes the value stored under key into a new T.
func Load[T any](s Store, key string, c objcodec.StringCodec) (T, error) {
	var out T
	text, err := s.Get(key)
	if err != nil {
		return out, err
	}
	if err := c.UnmarshalString(text, &out); err != nil {
		var zero T
		return zero, errors.Wrapf(err, "prefs: decode %q", key)
	}
	return out, nil
}
