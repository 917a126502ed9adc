// Package state keeps a local record of what gns3cp deployed, per
// reservation, so that later commands (status, power, delete) can find
// nodes by app name. The GNS3 server remains the source of truth; records
// are informational and are rewritten on every operation.
package state

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/newtron-network/gns3cp/pkg/util"
)

// Node status values.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// Record describes one deployed node.
type Record struct {
	Reservation string    `json:"reservation"`
	ProjectID   string    `json:"project_id"`
	NodeID      string    `json:"node_id"`
	NodeName    string    `json:"node_name"`
	AppName     string    `json:"app_name"`
	Kind        string    `json:"kind,omitempty"`
	Address     string    `json:"address,omitempty"`
	Status      string    `json:"status"`
	Updated     time.Time `json:"updated"`
}

// Store persists records. Implementations are safe for concurrent use.
type Store interface {
	Save(ctx context.Context, r *Record) error
	// Load returns a *util.NotFoundError when the node has no record.
	Load(ctx context.Context, reservation, nodeID string) (*Record, error)
	// List returns the records of a reservation, or of all reservations
	// when reservation is empty, sorted by reservation then node name.
	List(ctx context.Context, reservation string) ([]*Record, error)
	Delete(ctx context.Context, reservation, nodeID string) error
	DeleteReservation(ctx context.Context, reservation string) error
	Close() error
}

// Options selects and configures a store.
type Options struct {
	Backend     string // "file" (default) or "redis"
	Dir         string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
}

// Open returns the store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileStore(opts.Dir)
	case "redis":
		return NewRedisStore(opts.RedisAddr, opts.RedisDB, opts.RedisPrefix)
	}
	return nil, fmt.Errorf("state: unknown backend %q: %w", opts.Backend, util.ErrInvalidConfig)
}

// UpdateStatus loads a record, sets its status and saves it back. A missing
// record is not an error.
func UpdateStatus(ctx context.Context, s Store, reservation, nodeID, status string) error {
	r, err := s.Load(ctx, reservation, nodeID)
	if err != nil {
		if util.IsNotFound(err) {
			return nil
		}
		return err
	}
	r.Status = status
	return s.Save(ctx, r)
}

func sortRecords(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Reservation != recs[j].Reservation {
			return recs[i].Reservation < recs[j].Reservation
		}
		return recs[i].NodeName < recs[j].NodeName
	})
}

func notFound(reservation, nodeID string) error {
	return util.NewNotFoundError("record", reservation+"/"+nodeID)
}
