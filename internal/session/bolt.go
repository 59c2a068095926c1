package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dealflow-ai/qualification-platform/internal/model"
)

var sessionBucket = []byte("sessions")

// BoltStore is a durable Store backed by a bbolt file. Bolt serializes
// writes internally, so Update's transaction is the atomic RMW boundary.
type BoltStore struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

// NewBoltStore opens (creating if needed) the session database at path.
func NewBoltStore(path string, ttl time.Duration) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create session bucket: %w", err)
	}
	return &BoltStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) (*model.Session, error) {
	var sess *model.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		var out model.Session
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}
		sess = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.expired(sess) {
		_ = s.Delete(ctx, key)
		return nil, ErrExpired
	}
	return sess, nil
}

func (s *BoltStore) Put(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Put([]byte(sess.SessionKey), data)
	})
}

func (s *BoltStore) Update(ctx context.Context, key string, fn func(*model.Session) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		var sess model.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}
		if s.expired(&sess) {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
			return ErrExpired
		}
		if err := fn(&sess); err != nil {
			return err
		}
		out, err := json.Marshal(&sess)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		return b.Put([]byte(key), out)
	})
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete([]byte(key))
	})
}

func (s *BoltStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) expired(sess *model.Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.LastActivity) > s.ttl
}
