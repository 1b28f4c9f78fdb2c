// Package config loads SPICE connection profiles from YAML: a named list of
// endpoints plus which one is active.
package config

import "fmt"

// ConnectionConfig describes how to reach one SPICE server.
type ConnectionConfig struct {
	Name      string `yaml:"name"`
	Server    string `yaml:"server"`
	Port      int    `yaml:"port"`
	Password  string `yaml:"password"`
	WebSocket bool   `yaml:"websocket"`
	WSPath    string `yaml:"ws_path"`
	UseTLS    bool   `yaml:"use_tls"`
	// Backend selects the WebSocket implementation when WebSocket is set:
	// "gorilla" (default) or "coder".
	Backend string `yaml:"backend"`
}

type GlobalConfig struct {
	Connections []*ConnectionConfig `yaml:"connections"`
	ActiveName  string              `yaml:"active_name"`
	ConfigDir   string              `yaml:"-"`
}

func (c *ConnectionConfig) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.WebSocket && c.WSPath == "" {
		return fmt.Errorf("websocket path is required for websocket connections")
	}
	switch c.Backend {
	case "", "gorilla", "coder":
	default:
		return fmt.Errorf("unknown websocket backend: %s", c.Backend)
	}
	return nil
}

func (c *ConnectionConfig) Address() string {
	if c.WebSocket {
		scheme := "ws"
		if c.UseTLS {
			scheme = "wss"
		}
		return fmt.Sprintf("%s://%s:%d%s", scheme, c.Server, c.Port, c.WSPath)
	}
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// Active returns the connection named ActiveName, or the first connection
// if ActiveName is empty and exactly one is configured.
func (g *GlobalConfig) Active() (*ConnectionConfig, error) {
	if g.ActiveName == "" {
		if len(g.Connections) == 1 {
			return g.Connections[0], nil
		}
		return nil, fmt.Errorf("no active connection selected among %d configured", len(g.Connections))
	}
	for _, c := range g.Connections {
		if c.Name == g.ActiveName {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no connection named %q", g.ActiveName)
}
