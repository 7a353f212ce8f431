package server

import (
	"net"
	"os"
	"strconv"
	"strings"
)

const maxPort = int(^uint16(0))

// splitIPAndPort separates "host:port" into its parts, tolerating a
// bare IP with no port. Either half is empty when it fails to parse.
func splitIPAndPort(address string) (string, string) {
	if net.ParseIP(address) != nil {
		return address, ""
	}

	lastColon := strings.LastIndex(address, ":")
	if lastColon == -1 {
		if net.ParseIP(address) != nil {
			return address, ""
		}
		return "", ""
	}

	ipPart := address[:lastColon]
	if net.ParseIP(ipPart) == nil {
		ipPart = ""
	}

	portPart := address[lastColon+1:]
	if port, err := strconv.Atoi(portPart); err != nil || port > maxPort || port <= 0 {
		portPart = ""
	}

	return ipPart, portPart
}

// peerFilter decides whether an accepted connection's remote address
// is allowed, per FCGI_WEB_SERVER_ADDRS: a comma-separated allow-list
// of peer IPs. An unset or empty variable allows every peer; a nil
// RemoteAddr (local pipes, adopted stdin sockets) is always allowed.
type peerFilter struct {
	allowed map[string]struct{} // nil means "allow everything"
}

func newPeerFilter() peerFilter {
	raw := os.Getenv("FCGI_WEB_SERVER_ADDRS")
	if raw == "" {
		return peerFilter{}
	}
	allowed := make(map[string]struct{})
	for _, addr := range strings.Split(raw, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			allowed[addr] = struct{}{}
		}
	}
	return peerFilter{allowed: allowed}
}

func (f peerFilter) allows(remoteAddr net.Addr) bool {
	if f.allowed == nil {
		return true
	}
	if remoteAddr == nil {
		return true
	}
	host, _ := splitIPAndPort(remoteAddr.String())
	if host == "" {
		return true
	}
	_, ok := f.allowed[host]
	return ok
}
