package minicraft

import (
	"encoding/json"
	"io"
	"log"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"

	"github.com/google/uuid"
	"github.com/hashicorp/yamux"

	"github.com/icexin/minicraft-server/proto"
)

const eventQueueSize = 256

// Client is a native push-mode client. Server events arrive on Events in the
// order they were sent.
type Client struct {
	rpcServer *rpc.Server
	events    chan json.RawMessage
	yconn     *yamux.Session

	SessionID uuid.UUID
	*rpc.Client
}

func NewClient() *Client {
	c := &Client{
		rpcServer: rpc.NewServer(),
		events:    make(chan json.RawMessage, eventQueueSize),
	}
	c.rpcServer.RegisterName("Client", &notifyService{events: c.events})
	return c
}

type notifyService struct {
	events chan json.RawMessage
}

func (s *notifyService) Notify(req *proto.Notification, rep *proto.NotifyResponse) error {
	select {
	case s.events <- req.Event:
	default:
		log.Printf("event queue full, dropping %s", req.Event)
	}
	return nil
}

// doServer serves notifications one at a time so events keep their order.
func (c *Client) doServer(yconn *yamux.Session) {
	defer close(c.events)
	conn, err := yconn.Accept()
	if err != nil {
		log.Print(err)
		return
	}
	codec := jsonrpc.NewServerCodec(conn)
	for {
		if err := c.rpcServer.ServeRequest(codec); err != nil {
			if err != io.EOF {
				log.Print(err)
			}
			return
		}
	}
}

func (c *Client) doClient(yconn *yamux.Session) error {
	conn, err := yconn.Open()
	if err != nil {
		return err
	}
	c.Client = rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return nil
}

func (c *Client) Start(conn net.Conn) error {
	if _, err := io.ReadFull(conn, c.SessionID[:]); err != nil {
		return err
	}

	yconn, err := yamux.Client(conn, nil)
	if err != nil {
		return err
	}
	c.yconn = yconn

	go c.doServer(yconn)
	return c.doClient(yconn)
}

func (c *Client) Events() <-chan json.RawMessage {
	return c.events
}

func (c *Client) Join(req *proto.JoinRequest) error {
	return c.Call("World.Join", req, new(proto.Ack))
}

func (c *Client) Move(req *proto.MoveRequest) error {
	return c.Call("World.Move", req, new(proto.Ack))
}

func (c *Client) SetBlock(req *proto.SetBlockRequest) error {
	return c.Call("World.SetBlock", req, new(proto.Ack))
}

func (c *Client) RemoveBlock(req *proto.RemoveBlockRequest) error {
	return c.Call("World.RemoveBlock", req, new(proto.Ack))
}

func (c *Client) GetChunk(p, q int, version string) (*proto.ChunkReply, error) {
	rep := new(proto.ChunkReply)
	err := c.Call("World.GetChunk", &proto.GetChunkRequest{P: p, Q: q, Version: version}, rep)
	return rep, err
}

func (c *Client) Close() error {
	c.Client.Close()
	return c.yconn.Close()
}
