package ws

import (
	"context"
	"errors"
	"fmt"

	pb "github.com/mqy/pairchat/proto"
	"github.com/mqy/pairchat/router"
)

const (
	ErrorCodeInvalidArguments = 3
	ErrorCodeNotFound         = 5
	ErrorCodeInternal         = 13

	maxReadIds = 500
)

// IRouter is the part of router.Router that websocket sessions call.
type IRouter interface {
	Send(ctx context.Context, from, to, payload string) (*pb.Message, error)
	FetchConversation(ctx context.Context, viewer, peer string, limit int) ([]*pb.Message, error)
	MarkRead(ctx context.Context, reader string, ids []string) error
	Contact(ctx context.Context, viewer, id string) (*pb.Contact, error)
	Contacts(ctx context.Context, viewer string) ([]*pb.Contact, error)
	ContactIds(ctx context.Context, id string) ([]string, error)
}

// Api serves websocket client requests.
type Api struct {
	router IRouter
}

func NewApi(router IRouter) *Api {
	return &Api{router: router}
}

// Send routes a message. The ack reaches the sender through its own channel.
func (s *Api) Send(ctx context.Context, uid string, req *pb.SendReq) *pb.Error {
	var errs []string
	if req.To == "" {
		errs = append(errs, "to: is required")
	} else if req.To == uid {
		errs = append(errs, "to: can not send to self")
	}
	if req.Payload == "" {
		errs = append(errs, "payload: is required")
	}
	if len(errs) > 0 {
		return newInvalidArgumentError(&pb.ClientMsg{Send: req}, errs...)
	}

	if _, err := s.router.Send(ctx, uid, req.To, req.Payload); err != nil {
		return newError(&pb.ClientMsg{Send: req}, err)
	}
	return nil
}

func (s *Api) Fetch(ctx context.Context, uid string, req *pb.FetchReq) (*pb.Conversation, *pb.Error) {
	if req.Peer == "" {
		return nil, newInvalidArgumentError(&pb.ClientMsg{Fetch: req}, "peer: is required")
	}
	if req.Limit < 0 {
		return nil, newInvalidArgumentError(&pb.ClientMsg{Fetch: req}, "limit: should not be negative")
	}

	msgs, err := s.router.FetchConversation(ctx, uid, req.Peer, int(req.Limit))
	if err != nil {
		return nil, newError(&pb.ClientMsg{Fetch: req}, err)
	}
	return &pb.Conversation{Peer: req.Peer, Messages: msgs}, nil
}

func (s *Api) Read(ctx context.Context, uid string, req *pb.ReadReq) *pb.Error {
	if len(req.Ids) == 0 {
		return newInvalidArgumentError(&pb.ClientMsg{Read: req}, "ids: is required")
	}
	if len(req.Ids) > maxReadIds {
		return newInvalidArgumentError(&pb.ClientMsg{Read: req}, fmt.Sprintf("ids: exceeds limit: %d", maxReadIds))
	}

	if err := s.router.MarkRead(ctx, uid, req.Ids); err != nil {
		return newError(&pb.ClientMsg{Read: req}, err)
	}
	return nil
}

func (s *Api) Contact(ctx context.Context, uid string, req *pb.ContactReq) (*pb.Contact, *pb.Error) {
	if req.Id == "" {
		return nil, newInvalidArgumentError(&pb.ClientMsg{Contact: req}, "id: is required")
	}
	c, err := s.router.Contact(ctx, uid, req.Id)
	if err != nil {
		return nil, newError(&pb.ClientMsg{Contact: req}, err)
	}
	return c, nil
}

func (s *Api) Contacts(ctx context.Context, uid string, req *pb.ContactsReq) (*pb.ContactList, *pb.Error) {
	cs, err := s.router.Contacts(ctx, uid)
	if err != nil {
		return nil, newError(&pb.ClientMsg{Contacts: req}, err)
	}
	return &pb.ContactList{Contacts: cs}, nil
}

func newError(req *pb.ClientMsg, err error) *pb.Error {
	switch {
	case errors.Is(err, router.ErrInvalidArgument):
		return newInvalidArgumentError(req, err.Error())
	case errors.Is(err, router.ErrUnknownIdentity):
		return &pb.Error{Code: ErrorCodeNotFound, Params: []string{err.Error()}, Req: req}
	default:
		return newInternalError(req, err.Error())
	}
}

func newInvalidArgumentError(req *pb.ClientMsg, errs ...string) *pb.Error {
	return &pb.Error{
		Code:   ErrorCodeInvalidArguments,
		Params: errs,
		Req:    req,
	}
}

func newInternalError(req *pb.ClientMsg, err string) *pb.Error {
	return &pb.Error{
		Code:   ErrorCodeInternal,
		Params: []string{err},
		Req:    req,
	}
}

// interceptError hides internal details from the peer.
func interceptError(err *pb.Error) {
	if err.Code == ErrorCodeInternal {
		err.Params = []string{"temp storage error"}
	}
}
