package server

import "testing"

func TestSplitIPAndPort(t *testing.T) {
	tests := map[string]struct {
		input        string
		expectedIP   string
		expectedPort string
	}{
		"valid ipv4:port":       {"192.168.1.1:8080", "192.168.1.1", "8080"},
		"valid ipv6":            {"2001:db8::1", "2001:db8::1", ""},
		"valid ipv4":            {"127.0.0.1", "127.0.0.1", ""},
		"valid ipv4:empty port": {"127.0.0.1:", "127.0.0.1", ""},
		"valid :port":           {":8080", "", "8080"},
		"invalid ip":            {"192.168.1..1:", "", ""},
		"random string":         {"test:error", "", ""},
		"too big port":          {":123456789", "", ""},
		"negative port":         {":-1", "", ""},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ip, port := splitIPAndPort(test.input)
			if ip != test.expectedIP || port != test.expectedPort {
				t.Errorf("for input %q, want IP %q port %q, got IP %q port %q", test.input, test.expectedIP, test.expectedPort, ip, port)
			}
		})
	}
}

func TestPeerFilterAllowsEverythingWhenUnset(t *testing.T) {
	f := peerFilter{}
	if !f.allows(stubAddr("10.0.0.2:1234")) {
		t.Error("want every peer allowed when FCGI_WEB_SERVER_ADDRS is unset")
	}
}

func TestPeerFilterRejectsUnlistedPeer(t *testing.T) {
	f := peerFilter{allowed: map[string]struct{}{"10.0.0.1": {}}}
	if f.allows(stubAddr("10.0.0.2:1234")) {
		t.Error("want unlisted peer rejected")
	}
	if !f.allows(stubAddr("10.0.0.1:1234")) {
		t.Error("want listed peer allowed")
	}
}

type stubAddr string

func (a stubAddr) Network() string { return "tcp" }
func (a stubAddr) String() string  { return string(a) }
