package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// reservationState is persisted to <dir>/<reservation>/state.json.
type reservationState struct {
	Reservation string             `json:"reservation"`
	Updated     time.Time          `json:"updated"`
	Nodes       map[string]*Record `json:"nodes"`
}

// FileStore keeps one JSON file per reservation.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// DefaultDir returns ~/.gns3cp/state.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gns3cp", "state")
	}
	return filepath.Join(home, ".gns3cp", "state")
}

// NewFileStore returns a store rooted at dir (DefaultDir when empty).
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("state: create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(reservation string) string {
	return filepath.Join(s.dir, reservation, "state.json")
}

func (s *FileStore) load(reservation string) (*reservationState, error) {
	data, err := os.ReadFile(s.path(reservation))
	if err != nil {
		if os.IsNotExist(err) {
			return &reservationState{Reservation: reservation, Nodes: map[string]*Record{}}, nil
		}
		return nil, fmt.Errorf("state: read %s: %w", reservation, err)
	}
	var st reservationState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("state: parse state.json of %s: %w", reservation, err)
	}
	if st.Nodes == nil {
		st.Nodes = map[string]*Record{}
	}
	return &st, nil
}

func (s *FileStore) write(st *reservationState) error {
	dir := filepath.Join(s.dir, st.Reservation)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("state: create state dir: %w", err)
	}
	st.Updated = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "    ")
	if err != nil {
		return fmt.Errorf("state: marshal state: %w", err)
	}
	// Write then rename so readers never see a partial file.
	tmp := s.path(st.Reservation) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("state: write state: %w", err)
	}
	if err := os.Rename(tmp, s.path(st.Reservation)); err != nil {
		return fmt.Errorf("state: write state: %w", err)
	}
	return nil
}

func (s *FileStore) Save(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(r.Reservation)
	if err != nil {
		return err
	}
	r.Updated = time.Now().UTC()
	st.Nodes[r.NodeID] = r
	return s.write(st)
}

func (s *FileStore) Load(_ context.Context, reservation, nodeID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(reservation)
	if err != nil {
		return nil, err
	}
	r, ok := st.Nodes[nodeID]
	if !ok {
		return nil, notFound(reservation, nodeID)
	}
	return r, nil
}

func (s *FileStore) List(_ context.Context, reservation string) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservations := []string{reservation}
	if reservation == "" {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return nil, fmt.Errorf("state: list reservations: %w", err)
		}
		reservations = reservations[:0]
		for _, e := range entries {
			if e.IsDir() {
				reservations = append(reservations, e.Name())
			}
		}
	}

	var out []*Record
	for _, res := range reservations {
		st, err := s.load(res)
		if err != nil {
			return nil, err
		}
		for _, r := range st.Nodes {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, reservation, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(reservation)
	if err != nil {
		return err
	}
	if _, ok := st.Nodes[nodeID]; !ok {
		return nil
	}
	delete(st.Nodes, nodeID)
	return s.write(st)
}

func (s *FileStore) DeleteReservation(_ context.Context, reservation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(filepath.Join(s.dir, reservation)); err != nil {
		return fmt.Errorf("state: remove %s: %w", reservation, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
