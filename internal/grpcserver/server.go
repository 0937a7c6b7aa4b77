package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"pixelpick/internal/logging"
	"pixelpick/internal/report"
	"pixelpick/internal/sample"
)

const stopTimeout = 5 * time.Second

// Writer accepts decoded samples; *sample.Store satisfies it.
type Writer interface {
	Write(ts sample.TileSample)
}

// Options configures a Server.
type Options struct {
	Store  Writer
	Events *report.Broadcaster
	Logger *slog.Logger
}

// Server implements PickerServer over the shared store and broadcaster.
type Server struct {
	store    Writer
	events   *report.Broadcaster
	log      *slog.Logger
	grpc     *grpc.Server
	done     chan struct{}
	stopOnce sync.Once
	accepted atomic.Uint64
	dropped  atomic.Uint64
	watchers atomic.Int64
}

// New registers the picker service on a fresh grpc.Server.
func New(opts Options, serverOpts ...grpc.ServerOption) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		store:  opts.Store,
		events: opts.Events,
		log:    log,
		grpc:   grpc.NewServer(serverOpts...),
		done:   make(chan struct{}),
	}
	s.grpc.RegisterService(&ServiceDesc, s)
	return s
}

// Start listens on addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve runs on lis until ctx is cancelled, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.log.Info("gRPC server starting", "addr", lis.Addr().String())
	err := s.grpc.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func (s *Server) stop() {
	s.stopOnce.Do(func() {
		s.log.Info("Shutting down gRPC server...")
		close(s.done)

		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(stopTimeout):
			s.grpc.Stop()
		}
	})
}

// Push stores one sample.
func (s *Server) Push(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	ts, err := SampleFromStruct(in)
	if err != nil {
		s.dropped.Add(1)
		remote := ""
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}
		logging.LogIngressDrop(s.log, "grpc", remote, err)
		return nil, status.Errorf(codes.InvalidArgument, "malformed sample: %v", err)
	}
	s.store.Write(ts)
	s.accepted.Add(1)
	return &emptypb.Empty{}, nil
}

// Watch streams surfaced events until the client goes away or the server stops.
func (s *Server) Watch(_ *emptypb.Empty, stream WatchServer) error {
	if s.events == nil {
		return status.Error(codes.Unavailable, "event stream disabled")
	}
	ch, unsubscribe := s.events.Subscribe()
	defer unsubscribe()
	s.watchers.Add(1)
	defer s.watchers.Add(-1)

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-s.done:
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := EventToStruct(ev)
			if err != nil {
				s.log.Warn("encode event failed", "seq", ev.Seq, "error", err)
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// Stats reports gRPC ingress counters.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
	Watchers int64  `json:"watchers"`
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	return Stats{Accepted: s.accepted.Load(), Dropped: s.dropped.Load(), Watchers: s.watchers.Load()}
}
