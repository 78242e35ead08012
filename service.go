package main

import (
	"github.com/icexin/minicraft-server/hub"
	"github.com/icexin/minicraft-server/proto"
)

// WorldService is the rpc face of one native session.
type WorldService struct {
	session    *Session
	dispatcher *hub.Dispatcher
}

func NewWorldService(session *Session, dispatcher *hub.Dispatcher) *WorldService {
	return &WorldService{
		session:    session,
		dispatcher: dispatcher,
	}
}

func (s *WorldService) Join(req *proto.JoinRequest, rep *proto.Ack) error {
	if err := s.dispatcher.Join(s.session, req); err != nil {
		return err
	}
	rep.OK = 1
	return nil
}

func (s *WorldService) Move(req *proto.MoveRequest, rep *proto.Ack) error {
	if err := s.dispatcher.Move(s.session, req); err != nil {
		return err
	}
	rep.OK = 1
	return nil
}

func (s *WorldService) SetBlock(req *proto.SetBlockRequest, rep *proto.Ack) error {
	if err := s.dispatcher.SetBlock(s.session, req); err != nil {
		return err
	}
	rep.OK = 1
	return nil
}

func (s *WorldService) RemoveBlock(req *proto.RemoveBlockRequest, rep *proto.Ack) error {
	if err := s.dispatcher.RemoveBlock(s.session, req); err != nil {
		return err
	}
	rep.OK = 1
	return nil
}

func (s *WorldService) GetChunk(req *proto.GetChunkRequest, rep *proto.ChunkReply) error {
	*rep = *s.dispatcher.GetChunk(req)
	return nil
}
