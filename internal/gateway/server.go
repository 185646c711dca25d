package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/reflectpause/pausebot/internal/core"
	"github.com/reflectpause/pausebot/internal/messaging"
	"github.com/reflectpause/pausebot/internal/protocol"
)

// ServerConfig holds tunable parameters for the gateway server.
type ServerConfig struct {
	ListenAddr   string        // address to listen on, e.g. ":8081"
	ReadTimeout  time.Duration // timeout for WebSocket read operations
	WriteTimeout time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns a ServerConfig with sensible production
// defaults. Adapter connections are few and long-lived, so timeouts are
// generous.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:   ":8081",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server accepts platform-adapter WebSocket connections and bridges them
// to NATS. One goroutine per connection; adapter counts are small.
type Server struct {
	config     ServerConfig
	nats       *messaging.NATSClient
	conns      *connManager
	httpServer *http.Server
}

// NewServer creates a gateway server over the given NATS client.
func NewServer(config ServerConfig, natsClient *messaging.NATSClient) *Server {
	return &Server{
		config: config,
		nats:   natsClient,
		conns:  newConnManager(),
	}
}

// Start begins listening for adapter connections. It returns once the
// listener is bound; serving continues in the background until Shutdown.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "ok adapters=%d\n", s.conns.count())
	})

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", s.config.ListenAddr, err)
	}

	s.httpServer = &http.Server{Handler: mux}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[gateway] serve: %v", err)
		}
	}()

	log.Printf("[gateway] listening on %s", s.config.ListenAddr)
	return nil
}

// Shutdown stops the HTTP server and closes all adapter connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.conns.closeAll()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleUpgrade upgrades an HTTP request to WebSocket and runs the
// connection's read loop.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	raw, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[gateway] upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	go s.serveConn(raw)
}

// serveConn performs the hello handshake and then relays messages until
// the adapter disconnects.
func (s *Server) serveConn(raw net.Conn) {
	conn := &Conn{raw: raw, timeout: s.config.WriteTimeout, ConnectedAt: time.Now()}
	defer raw.Close()

	// First frame must be hello.
	adapterID, err := s.awaitHello(raw)
	if err != nil {
		log.Printf("[gateway] handshake failed from %s: %v", raw.RemoteAddr(), err)
		s.sendError(conn, "bad_hello", err.Error())
		return
	}
	conn.AdapterID = adapterID
	s.conns.add(conn)
	defer s.conns.remove(conn)

	// Relay core commands for this adapter back over the socket.
	err = s.nats.SubscribeAdapterCommands(adapterID, func(data []byte) {
		if err := conn.Send(data); err != nil {
			log.Printf("[gateway] relay to adapter=%s failed: %v", adapterID, err)
		}
	})
	if err != nil {
		log.Printf("[gateway] subscribe commands adapter=%s: %v", adapterID, err)
		return
	}
	defer func() {
		if err := s.nats.UnsubscribeAdapterCommands(adapterID); err != nil {
			log.Printf("[gateway] unsubscribe adapter=%s: %v", adapterID, err)
		}
	}()

	ack, _ := protocol.NewGatewayMessage(protocol.TypeHelloAck, protocol.HelloAckMsg{AdapterID: adapterID})
	if err := conn.Send(ack); err != nil {
		log.Printf("[gateway] hello ack adapter=%s: %v", adapterID, err)
		return
	}
	log.Printf("[gateway] adapter connected id=%s addr=%s", adapterID, raw.RemoteAddr())

	for {
		if s.config.ReadTimeout > 0 {
			raw.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}
		data, err := wsutil.ReadClientText(raw)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("[gateway] read adapter=%s: %v", adapterID, err)
			}
			log.Printf("[gateway] adapter disconnected id=%s", adapterID)
			return
		}
		s.dispatch(conn, data)
	}
}

// awaitHello reads the first frame and extracts the adapter ID.
func (s *Server) awaitHello(raw net.Conn) (string, error) {
	raw.SetReadDeadline(time.Now().Add(10 * time.Second))
	data, err := wsutil.ReadClientText(raw)
	if err != nil {
		return "", fmt.Errorf("read hello: %w", err)
	}

	msgType, msg, err := protocol.ParseAdapterMessage(data)
	if err != nil {
		return "", err
	}
	if msgType != protocol.TypeHello {
		return "", fmt.Errorf("expected hello, got %q", msgType)
	}
	hello := msg.(protocol.HelloMsg)
	if hello.AdapterID == "" {
		return "", fmt.Errorf("hello missing adapter_id")
	}
	return hello.AdapterID, nil
}

// dispatch routes one adapter frame.
func (s *Server) dispatch(conn *Conn, data []byte) {
	msgType, msg, err := protocol.ParseAdapterMessage(data)
	if err != nil {
		log.Printf("[gateway] bad frame adapter=%s: %v", conn.AdapterID, err)
		s.sendError(conn, "bad_message", err.Error())
		return
	}

	switch m := msg.(type) {
	case protocol.InboundMessageMsg:
		ev := core.InboundMessage{
			AdapterID: conn.AdapterID,
			MessageID: m.MessageID,
			UserID:    m.UserID,
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			Content:   m.Content,
			Ts:        m.Ts,
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[gateway] marshal inbound adapter=%s: %v", conn.AdapterID, err)
			return
		}
		if err := s.nats.PublishInbound(payload); err != nil {
			log.Printf("[gateway] publish inbound adapter=%s: %v", conn.AdapterID, err)
		}

	case protocol.ChoiceMsg:
		ev := core.ChoiceEvent{SessionID: m.SessionID, Action: m.Action, Payload: m.Payload}
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[gateway] marshal choice adapter=%s: %v", conn.AdapterID, err)
			return
		}
		if err := s.nats.PublishChoice(payload); err != nil {
			log.Printf("[gateway] publish choice adapter=%s: %v", conn.AdapterID, err)
		}

	case protocol.PingMsg:
		pong, _ := protocol.NewGatewayMessage(protocol.TypePong, protocol.PongMsg{})
		if err := conn.Send(pong); err != nil {
			log.Printf("[gateway] pong adapter=%s: %v", conn.AdapterID, err)
		}

	case protocol.HelloMsg:
		s.sendError(conn, "already_registered", "hello already received")

	default:
		log.Printf("[gateway] unhandled frame type=%s adapter=%s", msgType, conn.AdapterID)
	}
}

func (s *Server) sendError(conn *Conn, code, message string) {
	data, err := protocol.NewGatewayMessage(protocol.TypeError, protocol.ErrorMsg{Code: code, Message: message})
	if err != nil {
		return
	}
	if err := conn.Send(data); err != nil {
		log.Printf("[gateway] send error frame: %v", err)
	}
}
