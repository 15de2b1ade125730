package client

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketName = []byte("watchparty")
	roomKey    = []byte("room")
)

// RoomState is what the client remembers to rejoin after a reconnect.
type RoomState struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

// Store persists RoomState in a bbolt file.
type Store struct {
	db *bolt.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Save(state RoomState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal room state: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(roomKey, data)
	})
}

// Load returns false when nothing is stored.
func (s *Store) Load() (RoomState, bool, error) {
	var state RoomState
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketName).Get(roomKey)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		return RoomState{}, false, fmt.Errorf("failed to load room state: %w", err)
	}

	return state, found, nil
}

func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(roomKey)
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
