package adapters

import "testing"

func TestParseLsofF(t *testing.T) {
	out := "f5\nPTCP\nn10.0.0.2:54321->93.184.216.34:443 (ESTABLISHED)\n" +
		"f7\nPUDP\nn0.0.0.0:68\n"

	sockets := parseLsofF(out)
	if len(sockets) != 2 {
		t.Fatalf("got %d sockets, want 2", len(sockets))
	}

	first := sockets[0]
	if first.Proto != "TCP" || first.RemoteAddr != "93.184.216.34" || first.RemotePort != 443 {
		t.Errorf("got %+v, want TCP to 93.184.216.34:443", first)
	}
	if first.State != "ESTABLISHED" {
		t.Errorf("State = %q, want ESTABLISHED", first.State)
	}

	second := sockets[1]
	if second.Proto != "UDP" || second.LocalPort != 68 || second.RemoteAddr != "" {
		t.Errorf("got %+v, want UDP on local port 68 with no remote", second)
	}
}

func TestParseLsofAllF(t *testing.T) {
	out := "p501\nf5\nPTCP\nn10.0.0.2:54321->93.184.216.34:443 (ESTABLISHED)\n" +
		"p777\nf8\nPUDP\nn0.0.0.0:68\n"

	sockets := parseLsofAllF(out)
	if len(sockets) != 2 {
		t.Fatalf("got %d sockets, want 2", len(sockets))
	}
	if sockets[0].PID != 501 || sockets[0].RemotePort != 443 {
		t.Errorf("got %+v, want PID=501 RemotePort=443", sockets[0])
	}
	if sockets[1].PID != 777 || sockets[1].Proto != "UDP" {
		t.Errorf("got %+v, want PID=777 UDP", sockets[1])
	}
}

func TestParseLsofAllFMultipleSocketsPerPID(t *testing.T) {
	out := "p10\nf3\nPTCP\nn127.0.0.1:1234->127.0.0.1:5678 (ESTABLISHED)\n" +
		"f4\nPTCP\nn127.0.0.1:1111->127.0.0.1:2222 (ESTABLISHED)\n"

	sockets := parseLsofAllF(out)
	if len(sockets) != 2 {
		t.Fatalf("got %d sockets, want 2", len(sockets))
	}
	if sockets[0].PID != 10 || sockets[1].PID != 10 {
		t.Errorf("expected both sockets tagged with PID 10, got %+v", sockets)
	}
}

func TestFamilyOf(t *testing.T) {
	if got := familyOf("10.0.0.1"); got != "inet" {
		t.Errorf("familyOf(IPv4) = %q, want inet", got)
	}
	if got := familyOf("fe80::1:2:3:4"); got != "inet6" {
		t.Errorf("familyOf(IPv6) = %q, want inet6", got)
	}
}
