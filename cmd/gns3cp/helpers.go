package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/newtron-network/gns3cp/pkg/cli"
	"github.com/newtron-network/gns3cp/pkg/gns3"
	"github.com/newtron-network/gns3cp/pkg/provider"
	"github.com/newtron-network/gns3cp/pkg/settings"
	"github.com/newtron-network/gns3cp/pkg/state"
)

var (
	green = cli.Green
	red   = cli.Red
	bold  = cli.Bold
)

// reservationEnv is read when --reservation is not given.
const reservationEnv = "GNS3CP_RESERVATION"

func resolveReservation(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := strings.TrimSpace(os.Getenv(reservationEnv)); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no reservation: use --reservation or set %s", reservationEnv)
}

// openProvider builds a provider from the loaded settings. The returned
// close function releases the state store and the audit log.
func openProvider() (*provider.Provider, func(), error) {
	if err := promptPassword(cfg, os.Stdin, os.Stderr); err != nil {
		return nil, nil, err
	}
	client, err := gns3.NewClient(cfg.ServerURL(), cfg.ClientOptions()...)
	if err != nil {
		return nil, nil, err
	}
	store, err := state.Open(cfg.StoreOptions())
	if err != nil {
		return nil, nil, err
	}
	auditLog, err := cfg.OpenAudit()
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	p := provider.New(client, cfg.TopologyConfig(), store, client.Host())
	p.SetAuditLogger(auditLog)
	return p, func() {
		_ = auditLog.Close()
		_ = store.Close()
	}, nil
}

// promptPassword asks for the server password when a user is configured
// without one and stdin is a terminal.
func promptPassword(s *settings.Settings, in *os.File, out io.Writer) error {
	if s.Server.User == "" || s.Server.Password != "" {
		return nil
	}
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	fmt.Fprintf(out, "Password for %s@%s: ", s.Server.User, s.Server.Address)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	s.Server.Password = string(pw)
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
