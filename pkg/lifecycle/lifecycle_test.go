package lifecycle

import (
	"context"
	"net/http"
	"testing"

	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/gns3/gns3test"
)

func TestStartStop(t *testing.T) {
	s := gns3test.NewServer()
	defer s.Close()
	pid := s.AddProject("res-1")
	n := s.AddNode(pid, "vm", 1)
	c := s.Client()
	ctx := context.Background()

	if err := Start(ctx, c, pid, n.NodeID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got, _ := s.Node(pid, n.NodeID); got.Status != "started" {
		t.Errorf("status after Start = %q, want started", got.Status)
	}
	if err := Stop(ctx, c, pid, n.NodeID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got, _ := s.Node(pid, n.NodeID); got.Status != "stopped" {
		t.Errorf("status after Stop = %q, want stopped", got.Status)
	}
}

func TestStartFailurePropagates(t *testing.T) {
	s := gns3test.NewServer()
	defer s.Close()
	pid := s.AddProject("res-1")
	n := s.AddNode(pid, "vm", 1)
	s.Fail(http.MethodPost, "/start", http.StatusServiceUnavailable, 1)

	err := Start(context.Background(), s.Client(), pid, n.NodeID)
	if gns3.StatusCode(err) != http.StatusServiceUnavailable {
		t.Fatalf("Start error = %v, want status 503", err)
	}
	if c := s.Count(http.MethodPost, "/start"); c != 1 {
		t.Errorf("start requests = %d, want 1 (no retry)", c)
	}
}

func TestStopUnknownNode(t *testing.T) {
	s := gns3test.NewServer()
	defer s.Close()
	pid := s.AddProject("res-1")

	err := Stop(context.Background(), s.Client(), pid, "missing")
	if !gns3.IsNotFound(err) {
		t.Errorf("Stop error = %v, want 404", err)
	}
}
