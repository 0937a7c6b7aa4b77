package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"pixelpick/internal/report"
	"pixelpick/internal/sample"
)

// Client calls the picker service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to target without transport security; the service is local.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close releases the connection if Dial created it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Push sends one sample.
func (c *Client) Push(ctx context.Context, ts sample.TileSample) error {
	in, err := SampleToStruct(ts)
	if err != nil {
		return err
	}
	return c.PushStruct(ctx, in)
}

// PushStruct sends a raw message, letting callers exercise validation.
func (c *Client) PushStruct(ctx context.Context, in *structpb.Struct) error {
	return c.cc.Invoke(ctx, pushMethod, in, new(emptypb.Empty))
}

// WatchStream receives surfaced events.
type WatchStream struct {
	stream grpc.ClientStream
}

// Watch opens an event stream.
func (c *Client) Watch(ctx context.Context) (*WatchStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], watchMethod)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchStream{stream: stream}, nil
}

// Recv blocks for the next event. It returns io.EOF when the server ends the stream.
func (w *WatchStream) Recv() (report.Record, error) {
	msg := new(structpb.Struct)
	if err := w.stream.RecvMsg(msg); err != nil {
		return report.Record{}, err
	}
	return RecordFromStruct(msg)
}
