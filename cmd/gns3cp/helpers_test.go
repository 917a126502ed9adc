package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/newtron-network/gns3cp/pkg/settings"
	"github.com/newtron-network/gns3cp/pkg/state"
)

func TestResolveReservation(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(reservationEnv, "from-env")
		got, err := resolveReservation("from-flag")
		if err != nil || got != "from-flag" {
			t.Errorf("resolveReservation() = %q, %v", got, err)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(reservationEnv, " from-env ")
		got, err := resolveReservation("")
		if err != nil || got != "from-env" {
			t.Errorf("resolveReservation() = %q, %v", got, err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(reservationEnv, "")
		if _, err := resolveReservation(""); err == nil {
			t.Error("expected error without flag or environment")
		}
	})
}

func TestOverrideReservation(t *testing.T) {
	t.Setenv(reservationEnv, "")
	old := reservation
	defer func() { reservation = old }()

	reservation = ""
	fromFile := "res-file"
	if err := overrideReservation(&fromFile); err != nil || fromFile != "res-file" {
		t.Errorf("file value: got %q, %v", fromFile, err)
	}

	var empty string
	if err := overrideReservation(&empty); err == nil {
		t.Error("expected error when neither file nor flag names a reservation")
	}

	reservation = "res-flag"
	if err := overrideReservation(&fromFile); err != nil || fromFile != "res-flag" {
		t.Errorf("flag override: got %q, %v", fromFile, err)
	}
}

func TestDetailsRequests(t *testing.T) {
	recs := []*state.Record{{NodeID: "n1", AppName: "router"}}
	got := detailsRequests([]string{"n1", "n2"}, recs)
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].AppName != "router" || got[0].NodeID != "n1" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].AppName != "n2" {
		t.Errorf("unrecorded node app name = %q, want node id", got[1].AppName)
	}
}

func TestCancelledBy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	probe := cancelledBy(ctx)
	if probe() {
		t.Error("probe reports cancelled before cancel")
	}
	cancel()
	if !probe() {
		t.Error("probe does not report cancel")
	}
}

func TestPromptPasswordSkipsNonTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	s := &settings.Settings{}
	s.Server.User = "admin"
	var out bytes.Buffer
	if err := promptPassword(s, f, &out); err != nil {
		t.Fatalf("promptPassword: %v", err)
	}
	if out.Len() != 0 || s.Server.Password != "" {
		t.Errorf("prompted on a non-terminal: %q", out.String())
	}
}
