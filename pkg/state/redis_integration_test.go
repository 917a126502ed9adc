//go:build integration

package state

import (
	"testing"

	"github.com/newtron-network/gns3cp/internal/testutil"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	testutil.SkipIfNoRedis(t)
	addr := testutil.RedisAddr()
	testutil.FlushDB(t, addr, testutil.TestRedisDB)

	s, err := NewRedisStore(addr, testutil.TestRedisDB, "")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := testutil.Context(t)

	r := &Record{Reservation: "res-1", NodeID: "n-1", NodeName: "router-ab12", Status: StatusRunning}
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw := testutil.ReadHash(t, testutil.RedisAddr(), testutil.TestRedisDB, DefaultRedisPrefix+"|res-1")
	if _, ok := raw["n-1"]; !ok {
		t.Fatalf("hash fields = %v, want n-1", raw)
	}

	got, err := s.Load(ctx, "res-1", "n-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.NodeName != "router-ab12" {
		t.Errorf("NodeName = %q", got.NodeName)
	}
	if _, err := s.Load(ctx, "res-1", "missing"); err == nil {
		t.Error("Load(missing) succeeded")
	}
}

func TestRedisStoreListAndDelete(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := testutil.Context(t)

	s.Save(ctx, &Record{Reservation: "res-1", NodeID: "a", NodeName: "b"})
	s.Save(ctx, &Record{Reservation: "res-1", NodeID: "c", NodeName: "a"})
	s.Save(ctx, &Record{Reservation: "res-2", NodeID: "d", NodeName: "c"})

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].NodeName != "a" || all[2].Reservation != "res-2" {
		t.Errorf("List() order wrong: %+v", all)
	}

	if err := s.Delete(ctx, "res-1", "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.DeleteReservation(ctx, "res-2"); err != nil {
		t.Fatalf("DeleteReservation: %v", err)
	}
	if n := testutil.KeyCount(t, testutil.RedisAddr(), testutil.TestRedisDB); n != 1 {
		t.Errorf("keys = %d, want 1", n)
	}
}
