// Package server runs the http listener and the background loops of one pairchat process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/golang/glog"
)

// Loop is a background loop that runs until ctx is done and then notifies stopDoneC once.
type Loop interface {
	Run(ctx context.Context, stopDoneC chan<- struct{})
}

type Config struct {
	Addr    string
	Handler http.Handler

	// Loops are started after the listener and stopped after the http server shut down.
	Loops []Loop
}

// Server is a standalone server: all sessions and routing live in this process.
type Server struct {
	conf       *Config
	httpServer *http.Server
	lis        net.Listener
}

func New(conf *Config) *Server {
	return &Server{
		conf:       conf,
		httpServer: &http.Server{Handler: conf.Handler},
	}
}

// Listen binds the configured address and returns the bound address.
func (s *Server) Listen() (net.Addr, error) {
	lis, err := net.Listen("tcp", s.conf.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s error: %w", s.conf.Addr, err)
	}
	s.lis = lis
	return lis.Addr(), nil
}

// Run serves until ctx is done, then shuts everything down and notifies stopNotifyCh.
// Listen must have succeeded before.
func (s *Server) Run(ctx context.Context, stopNotifyCh chan<- struct{}) {
	glog.Infof("server is starting")

	serveErrC := make(chan error, 1)
	go func() {
		glog.Infof("http server is listening %v", s.lis.Addr())
		if err := s.httpServer.Serve(s.lis); errors.Is(err, http.ErrServerClosed) {
			glog.Infof("http server closed")
		} else if err != nil {
			glog.Errorf("error serve http server: %v", err)
			serveErrC <- err
		}
	}()

	loopCtx, cancelLoops := context.WithCancel(context.Background())
	stopDoneC := make(chan struct{}, len(s.conf.Loops))
	for _, l := range s.conf.Loops {
		go l.Run(loopCtx, stopDoneC)
	}

	defer func() {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			glog.Errorf("server: http server shutdown: %v", err)
		}
		glog.Infof("server: http server shutdown done")

		cancelLoops()
		for range s.conf.Loops {
			<-stopDoneC
		}
		glog.Infof("server: %d loops stopped", len(s.conf.Loops))
		stopNotifyCh <- struct{}{}
	}()

	select {
	case <-ctx.Done():
		glog.Infof("server is stopping")
	case <-serveErrC:
		glog.Infof("server is stopping on serve error")
	}
}
