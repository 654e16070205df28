package jetstream

import (
	"fmt"
	"time"

	server "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
)

// Server is an in-process NATS server with JetStream enabled. It does not
// listen on any port; clients connect through Connect.
type Server struct{ ns *server.Server }

// NewServer starts the server with file-backed JetStream under storeDir and
// waits until it accepts connections.
func NewServer(storeDir string) (*Server, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "canvas-stream",
		DontListen: true,
		JetStream:  true,
		StoreDir:   storeDir,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready")
	}
	return &Server{ns: ns}, nil
}

// Connect opens an in-process client connection; no network socket is used.
func (s *Server) Connect() (*nats.Conn, error) {
	return nats.Connect(s.ns.ClientURL(), nats.InProcessServer(s.ns), nats.Name("canvas-stream"))
}

// Shutdown stops the server and blocks until it has exited. Drain client
// connections first so pending publishes reach the store.
func (s *Server) Shutdown() {
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
