package cmd

import (
	"github.com/ftahirops/hostwarden/adapters"
	"github.com/ftahirops/hostwarden/model"
)

// systemConnections builds the ConnectionSource the orchestrator calls once
// per scan (§4.F.1): a single system-wide lsof pass standing in for the
// external flow collector the Network Ghost probe cross-checks live socket
// state against. Remote-facing sockets only; purely local/listening sockets
// carry no attribution signal worth recording.
func systemConnections() []model.NetworkConnection {
	socks := adapters.EnumerateAllSockets()
	var out []model.NetworkConnection
	for _, s := range socks {
		if s.RemoteAddr == "" {
			continue
		}
		out = append(out, model.NetworkConnection{
			PID:         int(s.PID),
			ProcessPath: adapters.ExecPath(s.PID),
			Proto:       s.Proto,
			LocalPort:   s.LocalPort,
			RemoteAddr:  s.RemoteAddr,
			RemotePort:  s.RemotePort,
		})
	}
	return out
}
