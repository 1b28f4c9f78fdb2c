package config

import "testing"

func TestConnectionConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ConnectionConfig
		wantErr bool
	}{
		{"valid tcp", ConnectionConfig{Server: "spice.example.com", Port: 5900}, false},
		{"missing server", ConnectionConfig{Port: 5900}, true},
		{"bad port", ConnectionConfig{Server: "x", Port: 0}, true},
		{"ws without path", ConnectionConfig{Server: "x", Port: 80, WebSocket: true}, true},
		{"ws with path", ConnectionConfig{Server: "x", Port: 80, WebSocket: true, WSPath: "/ws"}, false},
		{"unknown backend", ConnectionConfig{Server: "x", Port: 1, Backend: "nope"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestConnectionConfigAddress(t *testing.T) {
	tcp := ConnectionConfig{Server: "host", Port: 5900}
	if got := tcp.Address(); got != "host:5900" {
		t.Fatalf("Address() = %q", got)
	}

	ws := ConnectionConfig{Server: "host", Port: 8080, WebSocket: true, WSPath: "/spice"}
	if got := ws.Address(); got != "ws://host:8080/spice" {
		t.Fatalf("Address() = %q", got)
	}

	wss := ws
	wss.UseTLS = true
	if got := wss.Address(); got != "wss://host:8080/spice" {
		t.Fatalf("Address() = %q", got)
	}
}

func TestGlobalConfigActive(t *testing.T) {
	g := &GlobalConfig{
		Connections: []*ConnectionConfig{
			{Name: "a", Server: "a.example.com", Port: 1},
			{Name: "b", Server: "b.example.com", Port: 2},
		},
	}

	if _, err := g.Active(); err == nil {
		t.Fatalf("expected error with ambiguous active connection")
	}

	g.ActiveName = "b"
	got, err := g.Active()
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if got.Name != "b" {
		t.Fatalf("Active() = %+v", got)
	}

	g.ActiveName = "missing"
	if _, err := g.Active(); err == nil {
		t.Fatalf("expected error for unknown active name")
	}
}

func TestGlobalConfigActiveSingle(t *testing.T) {
	g := &GlobalConfig{Connections: []*ConnectionConfig{{Name: "only", Server: "x", Port: 1}}}
	got, err := g.Active()
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if got.Name != "only" {
		t.Fatalf("Active() = %+v", got)
	}
}
