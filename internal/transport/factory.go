package transport

// Backend selects which WebSocket client library backs a WebSocket Dialer.
// Irrelevant when Endpoint.WebSocket is false.
type Backend int

const (
	BackendGorilla Backend = iota
	BackendCoder
)

// Endpoint describes how to reach a SPICE server: either directly over TCP
// or through a WebSocket reverse proxy in front of it.
type Endpoint struct {
	Server    string
	Port      int
	WebSocket bool
	WSPath    string
	UseTLS    bool
	Backend   Backend
}

// CreateDialer builds the Dialer matching an Endpoint's configuration: a
// direct TCP dialer, or one of the two WebSocket backends.
func CreateDialer(ep Endpoint) (Dialer, error) {
	if !ep.WebSocket {
		return NewTCPDialer(ep.Server, ep.Port), nil
	}
	if ep.Backend == BackendCoder {
		return NewCoderWebSocketDialer(ep.Server, ep.Port, ep.WSPath, ep.UseTLS), nil
	}
	return NewWebSocketDialer(ep.Server, ep.Port, ep.WSPath, ep.UseTLS), nil
}
