package model

// ProcessSnapshot is a one-pass, immutable capture of the running process
// census: PIDs, executable paths, parent PIDs, and derived names. It is
// captured once per scan cycle and safely shared read-only across every
// probe — no probe may mutate it.
//
// Invariant: for every pid in PIDs, Paths[pid] and Parents[pid] are defined
// (possibly "" / 0 for kernel processes that could not be resolved).
type ProcessSnapshot struct {
	PIDs    []int
	Paths   map[int]string
	Parents map[int]int
}

// Name derives a display name for pid from its resolved path, never from a
// live syscall (the snapshot is frozen the instant it is captured).
func (s *ProcessSnapshot) Name(pid int) string {
	path := s.Paths[pid]
	if path == "" {
		return ""
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// Contains reports whether pid was observed in this snapshot.
func (s *ProcessSnapshot) Contains(pid int) bool {
	_, ok := s.Parents[pid]
	return ok
}

// Children returns every pid whose Parents entry is parent.
func (s *ProcessSnapshot) Children(parent int) []int {
	var out []int
	for _, pid := range s.PIDs {
		if s.Parents[pid] == parent {
			out = append(out, pid)
		}
	}
	return out
}

// NetworkConnection is one socket observed by the external flow collector.
// SigningID and RemoteHostname are optional — empty when unknown.
type NetworkConnection struct {
	PID            int
	ProcessName    string
	ProcessPath    string
	SigningID      string
	Proto          string
	LocalPort      int
	RemoteAddr     string
	RemotePort     int
	RemoteHostname string
}
