package adapters

import (
	"regexp"
	"strconv"
	"strings"
)

// SocketInfo is one per-FD socket entry returned by SocketEnumerate (§4.B).
type SocketInfo struct {
	Family     string
	Proto      string
	LocalAddr  string
	LocalPort  int
	RemoteAddr string
	RemotePort int
	State      string
}

var lsofAddrRE = regexp.MustCompile(`^(.*):(\d+|\*)(?:->(.*):(\d+|\*))?$`)

// SocketEnumerate shells out to lsof to list the sockets held open by pid.
// Empty on any failure, including when pid has exited or lsof is
// unavailable.
func SocketEnumerate(pid int32) []SocketInfo {
	out := RunBounded("lsof", "-p", strconv.Itoa(int(pid)), "-i", "-n", "-P", "-F", "ptPn")
	if out == "" {
		return nil
	}
	return parseLsofF(out)
}

// parseLsofF decodes lsof's -F field output, one record per fd line: `p`
// (pid, once), `t` (TCP/UDP/etc type, lowercase), `P` (protocol name),
// `n` (name, holding the address pair and optional connection state).
func parseLsofF(out string) []SocketInfo {
	var sockets []SocketInfo
	var cur SocketInfo
	have := false
	flush := func() {
		if have {
			sockets = append(sockets, cur)
		}
		cur = SocketInfo{}
		have = false
	}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		tag, val := line[0], line[1:]
		switch tag {
		case 'f':
			flush()
		case 'P':
			cur.Proto = val
			have = true
		case 'n':
			addr, state := splitLsofName(val)
			local, remote := splitLsofAddr(addr)
			cur.LocalAddr, cur.LocalPort = local.addr, local.port
			cur.RemoteAddr, cur.RemotePort = remote.addr, remote.port
			cur.State = state
			cur.Family = familyOf(local.addr)
			have = true
		}
	}
	flush()
	return sockets
}

// PIDSocket is one socket entry from a system-wide enumeration, tagged with
// the PID that holds it.
type PIDSocket struct {
	PID int32
	SocketInfo
}

// EnumerateAllSockets shells out to lsof once for every open internet socket
// on the host, grouped by owning PID. Used to build the Network Connection
// feed an external flow collector would otherwise supply. Empty on any
// failure.
func EnumerateAllSockets() []PIDSocket {
	out := RunBounded("lsof", "-i", "-n", "-P", "-F", "ptPn")
	if out == "" {
		return nil
	}
	return parseLsofAllF(out)
}

// parseLsofAllF is parseLsofF's multi-process sibling: it additionally
// tracks the `p` (PID) tag, which only appears once per process rather than
// once per socket.
func parseLsofAllF(out string) []PIDSocket {
	var sockets []PIDSocket
	var curPID int32
	var cur SocketInfo
	have := false
	flush := func() {
		if have {
			sockets = append(sockets, PIDSocket{PID: curPID, SocketInfo: cur})
		}
		cur = SocketInfo{}
		have = false
	}
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		tag, val := line[0], line[1:]
		switch tag {
		case 'p':
			flush()
			curPID = int32(atoiOrZero(val))
		case 'f':
			flush()
		case 'P':
			cur.Proto = val
			have = true
		case 'n':
			addr, state := splitLsofName(val)
			local, remote := splitLsofAddr(addr)
			cur.LocalAddr, cur.LocalPort = local.addr, local.port
			cur.RemoteAddr, cur.RemotePort = remote.addr, remote.port
			cur.State = state
			cur.Family = familyOf(local.addr)
			have = true
		}
	}
	flush()
	return sockets
}

type addrPort struct {
	addr string
	port int
}

func splitLsofName(val string) (addr, state string) {
	if i := strings.Index(val, " ("); i >= 0 && strings.HasSuffix(val, ")") {
		return val[:i], val[i+2 : len(val)-1]
	}
	return val, ""
}

func splitLsofAddr(val string) (local, remote addrPort) {
	m := lsofAddrRE.FindStringSubmatch(val)
	if m == nil {
		return addrPort{}, addrPort{}
	}
	local = addrPort{addr: m[1], port: atoiOrZero(m[2])}
	if m[3] != "" {
		remote = addrPort{addr: m[3], port: atoiOrZero(m[4])}
	}
	return local, remote
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func familyOf(addr string) string {
	if strings.Contains(addr, ":") && strings.Count(addr, ":") > 1 {
		return "inet6"
	}
	return "inet"
}
