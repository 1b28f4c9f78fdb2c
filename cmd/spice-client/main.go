// Command spice-client connects to a SPICE server, links the advertised
// channels, and logs what it learns. It has no display surface: the
// façade's snapshot accessors exist for a host application to poll; this
// binary is a connectivity and protocol-inspection tool.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spice-go/internal/config"
	"spice-go/internal/metrics"
	"spice-go/pkg/spiceclient"
)

func main() {
	var (
		server      string
		port        int
		password    string
		websocket   bool
		wsPath      string
		useTLS      bool
		backend     string
		metricsAddr string
		debug       bool
	)
	flag.StringVar(&server, "server", "", "SPICE server hostname or address")
	flag.IntVar(&port, "port", 5900, "SPICE server port")
	flag.StringVar(&password, "password", "", "SPICE session password, if required")
	flag.BoolVar(&websocket, "websocket", false, "connect over WebSocket instead of raw TCP")
	flag.StringVar(&wsPath, "ws-path", "/", "WebSocket path, when -websocket is set")
	flag.BoolVar(&useTLS, "tls", false, "use TLS for WebSocket connections (wss://); raw TCP is never TLS-wrapped")
	flag.StringVar(&backend, "ws-backend", "gorilla", "WebSocket backend: gorilla or coder")
	flag.StringVar(&metricsAddr, "metrics", "", "Prometheus metrics listen address, e.g. :9100")
	flag.BoolVar(&debug, "debug", false, "log the Main channel's link reply and MAIN_INIT fields after connecting")
	flag.Parse()

	if server == "" {
		log.Fatal("must supply -server")
	}

	cfg := config.ConnectionConfig{
		Server:    server,
		Port:      port,
		Password:  password,
		WebSocket: websocket,
		WSPath:    wsPath,
		UseTLS:    useTLS,
		Backend:   backend,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if metricsAddr != "" {
		metrics.Enable()
		go func() {
			if err := metrics.StartServer(ctx, metricsAddr); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
		log.Printf("Prometheus metrics listening on %s", metricsAddr)
	}

	client := spiceclient.New(cfg, nil)

	connectCtx, connectCancel := context.WithTimeout(ctx, 15*time.Second)
	defer connectCancel()
	if err := client.Connect(connectCtx); err != nil {
		log.Fatalf("connect: %v", err)
	}
	log.Printf("connected, correlation id %s, session_id 0x%08x", client.SessionID(), client.ProtocolSessionID())

	if debug {
		log.Printf("client facade state: %s", client.State())
		if reply, ok := client.MainLinkReply(); ok {
			log.Printf("link reply: magic=0x%08x major=%d minor=%d size=%d", reply.Magic, reply.Major, reply.Minor, reply.Size)
		}
		if fields, ok := client.MainInitFields(); ok {
			log.Printf("main_init: session_id=0x%08x display_channels_hint=%d supported_mouse_modes=%d current_mouse_mode=%d multi_media_time=%d ram_hint=%d",
				fields.SessionID, fields.DisplayChannelsHint, fields.SupportedMouseModes, fields.CurrentMouseMode, fields.MultiMediaTime, fields.RamHint)
		}
	}

	client.StartEventLoop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Printf("shutting down...")
	cancel()
	if err := client.Disconnect(); err != nil {
		log.Printf("disconnect: %v", err)
	}
}
