package rdp

import "strings"

// VMConnectPort is the fixed Hyper-V VM console port used when connecting
// by VM GUID instead of server address.
const VMConnectPort = 2179

// DefaultPort is the standard RDP listening port.
const DefaultPort = 3389

// Settings accumulates connection parameters from the bootstrap commands
// until the connect command hands them to the engine.
type Settings struct {
	Hostname string
	Port     int

	Domain   string
	Username string
	Password string

	// AlternateShell is the program started instead of the default shell.
	AlternateShell string

	// Hyper-V VM console connection (VM GUID instead of address).
	VMConnect              bool
	NegotiateSecurityLayer bool
	SendPreconnectionPdu   bool
	PreconnectionBlob      string
}

// NewSettings returns settings with protocol defaults.
func NewSettings() *Settings {
	return &Settings{
		Port:                   DefaultPort,
		NegotiateSecurityLayer: true,
	}
}

// SetServerAddress parses `host`, `host:port` or `[ipv6]:port` and fills
// Hostname/Port. An address without a port keeps the current port.
func (s *Settings) SetServerAddress(addr string) {
	if open := strings.IndexByte(addr, '['); open >= 0 {
		// bracketed ipv6
		end := strings.IndexByte(addr, ']')
		if end < 0 {
			return
		}
		s.Hostname = addr[open+1 : end]
		if end+1 < len(addr) && addr[end+1] == ':' {
			if port := parsePort(addr[end+2:]); port > 0 {
				s.Port = port
			}
		}
		return
	}

	if colon := strings.IndexByte(addr, ':'); colon >= 0 {
		s.Hostname = addr[:colon]
		if port := parsePort(addr[colon+1:]); port > 0 {
			s.Port = port
		}
		return
	}

	s.Hostname = addr
}

// SetVMGUID switches to Hyper-V VM console mode: fixed port, no negotiated
// security layer, GUID sent as the preconnection blob.
func (s *Settings) SetVMGUID(guid string) {
	s.VMConnect = true
	s.Port = VMConnectPort
	s.NegotiateSecurityLayer = false
	s.SendPreconnectionPdu = true
	s.PreconnectionBlob = guid
}

// SetUsername stores the user name. When no domain was provided yet, a
// `domain\user` value is split into both fields.
func (s *Settings) SetUsername(user string) {
	if s.Domain == "" {
		if i := strings.IndexByte(user, '\\'); i >= 0 {
			s.Domain = user[:i]
			user = user[i+1:]
		}
	}
	s.Username = user
}

func parsePort(s string) int {
	port := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		port = port*10 + int(c-'0')
		if port > 65535 {
			return 0
		}
	}
	return port
}
