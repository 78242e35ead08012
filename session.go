package main

import (
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"

	"github.com/icexin/minicraft-server/proto"
)

var (
	errSessionClosed = errors.New("session closed")
	errQueueFull     = errors.New("send queue full")
)

const sendQueueSize = 256

// Session is a yamux client connection. Events reach the client as
// Client.Notify calls issued from a single pump goroutine.
type Session struct {
	masterConn net.Conn
	*rpc.Client

	mutex  sync.Mutex
	closed bool
	send   chan []byte
}

func NewSession(masterConn, clientConn net.Conn) *Session {
	return &Session{
		masterConn: masterConn,
		Client:     rpc.NewClientWithCodec(jsonrpc.NewClientCodec(clientConn)),
		send:       make(chan []byte, sendQueueSize),
	}
}

func (s *Session) Send(msg []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return errSessionClosed
	}
	select {
	case s.send <- msg:
		return nil
	default:
		return errQueueFull
	}
}

// pump delivers queued events and tears the connection down once Close has
// been called and the queue is drained.
func (s *Session) pump() {
	for msg := range s.send {
		s.Go("Client.Notify", &proto.Notification{Event: msg}, new(proto.NotifyResponse), nil)
	}
	s.Client.Close()
	s.masterConn.Close()
}

func (s *Session) RemoteAddr() string {
	return s.masterConn.RemoteAddr().String()
}

func (s *Session) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	return nil
}
