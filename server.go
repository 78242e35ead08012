package main

import (
	"errors"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/yamux"

	"github.com/icexin/minicraft-server/hub"
	"github.com/icexin/minicraft-server/world"
)

type Server struct {
	cfg        *Config
	dispatcher *hub.Dispatcher
	roster     *world.Roster
	upgrader   websocket.Upgrader
}

func NewServer(cfg *Config, dispatcher *hub.Dispatcher, roster *world.Roster) *Server {
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		roster:     roster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
	}
}

func (s *Server) serveRpc(yconn *yamux.Session, session *Session) {
	conn, err := yconn.Accept()
	if err != nil {
		log.Print(err)
		return
	}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("World", NewWorldService(session, s.dispatcher)); err != nil {
		log.Print(err)
		return
	}
	rpcServer.ServeCodec(newOrderedCodec(jsonrpc.NewServerCodec(conn)))
}

// orderedCodec holds back the next request until the reply to the previous
// one is written, so a session's calls run one at a time in arrival order.
type orderedCodec struct {
	rpc.ServerCodec
	turn chan struct{}
}

func newOrderedCodec(codec rpc.ServerCodec) *orderedCodec {
	return &orderedCodec{
		ServerCodec: codec,
		turn:        make(chan struct{}, 1),
	}
}

func (c *orderedCodec) ReadRequestHeader(r *rpc.Request) error {
	c.turn <- struct{}{}
	err := c.ServerCodec.ReadRequestHeader(r)
	if err != nil {
		<-c.turn
	}
	return err
}

// Every request whose header was read gets exactly one response.
func (c *orderedCodec) WriteResponse(r *rpc.Response, body interface{}) error {
	defer func() { <-c.turn }()
	return c.ServerCodec.WriteResponse(r, body)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	id := uuid.New()
	log.Printf("allocated %s for %s", id, conn.RemoteAddr())
	// send id to client, handshake done.
	if _, err := conn.Write(id[:]); err != nil {
		log.Print(err)
		return
	}

	yconn, err := yamux.Server(conn, nil)
	if err != nil {
		log.Print(err)
		return
	}

	clientConn, err := yconn.Open()
	if err != nil {
		log.Print(err)
		return
	}
	session := NewSession(conn, clientConn)
	go session.pump()
	s.serveRpc(yconn, session)
	s.dispatcher.Disconnect(session)
	session.Close()
	log.Printf("%s(%s) closed connection", conn.RemoteAddr(), id)
}

// Serve accepts native clients on l until l is closed.
func (s *Server) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Print(err)
			continue
		}
		go s.handleConn(conn)
	}
}
