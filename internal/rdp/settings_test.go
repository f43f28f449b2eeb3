package rdp

import "testing"

func TestSetServerAddress(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort int
	}{
		{"10.0.0.5", "10.0.0.5", DefaultPort},
		{"10.0.0.5:3390", "10.0.0.5", 3390},
		{"server.example.com:443", "server.example.com", 443},
		{"[::1]:3391", "::1", 3391},
		{"[fe80::1]", "fe80::1", DefaultPort},
		{"host:notaport", "host", DefaultPort},
		{"host:99999", "host", DefaultPort},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			s := NewSettings()
			s.SetServerAddress(tt.addr)
			if s.Hostname != tt.wantHost {
				t.Errorf("hostname = %q, want %q", s.Hostname, tt.wantHost)
			}
			if s.Port != tt.wantPort {
				t.Errorf("port = %d, want %d", s.Port, tt.wantPort)
			}
		})
	}
}

func TestSetVMGUID(t *testing.T) {
	s := NewSettings()
	s.SetVMGUID("8fd5cbc2-1c4c-4e24-9d0a-6f8d7b6cf0e7")

	if !s.VMConnect {
		t.Error("VMConnect not set")
	}
	if s.Port != VMConnectPort {
		t.Errorf("port = %d, want %d", s.Port, VMConnectPort)
	}
	if s.NegotiateSecurityLayer {
		t.Error("NegotiateSecurityLayer should be disabled")
	}
	if !s.SendPreconnectionPdu {
		t.Error("SendPreconnectionPdu not set")
	}
	if s.PreconnectionBlob != "8fd5cbc2-1c4c-4e24-9d0a-6f8d7b6cf0e7" {
		t.Errorf("blob = %q", s.PreconnectionBlob)
	}
}

func TestSetUsername(t *testing.T) {
	t.Run("splits domain when unset", func(t *testing.T) {
		s := NewSettings()
		s.SetUsername(`CORP\alice`)
		if s.Domain != "CORP" || s.Username != "alice" {
			t.Errorf("got %q / %q, want CORP / alice", s.Domain, s.Username)
		}
	})

	t.Run("keeps explicit domain", func(t *testing.T) {
		s := NewSettings()
		s.Domain = "OTHER"
		s.SetUsername(`CORP\alice`)
		if s.Domain != "OTHER" || s.Username != `CORP\alice` {
			t.Errorf("got %q / %q, want OTHER / CORP\\alice", s.Domain, s.Username)
		}
	})

	t.Run("plain user", func(t *testing.T) {
		s := NewSettings()
		s.SetUsername("bob")
		if s.Domain != "" || s.Username != "bob" {
			t.Errorf("got %q / %q, want \"\" / bob", s.Domain, s.Username)
		}
	})
}
