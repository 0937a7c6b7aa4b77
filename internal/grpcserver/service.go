package grpcserver

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"pixelpick/internal/report"
	"pixelpick/internal/sample"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pixelpick.v1.Picker"

const (
	pushMethod  = "/" + ServiceName + "/Push"
	watchMethod = "/" + ServiceName + "/Watch"
)

// PickerServer is the server API for the picker service.
//
//	service Picker {
//	  rpc Push(google.protobuf.Struct) returns (google.protobuf.Empty);
//	  rpc Watch(google.protobuf.Empty) returns (stream google.protobuf.Struct);
//	}
type PickerServer interface {
	Push(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Watch(*emptypb.Empty, WatchServer) error
}

// WatchServer is the server side of a Watch stream.
type WatchServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type watchServer struct {
	grpc.ServerStream
}

func (x *watchServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func pushHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PickerServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pushMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PickerServer).Push(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(PickerServer).Watch(m, &watchServer{stream})
}

// ServiceDesc describes the picker service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PickerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Push", Handler: pushHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "pixelpick/v1/picker.proto",
}

// SampleFromStruct validates a pushed Struct through the same decoder as HTTP.
func SampleFromStruct(in *structpb.Struct) (sample.TileSample, error) {
	if in == nil {
		return sample.TileSample{}, fmt.Errorf("%w: empty message", sample.ErrMalformed)
	}
	body, err := protojson.Marshal(in)
	if err != nil {
		return sample.TileSample{}, fmt.Errorf("%w: %w", sample.ErrMalformed, err)
	}
	return sample.DecodeBytes(body)
}

// SampleToStruct encodes ts with its wire field names.
func SampleToStruct(ts sample.TileSample) (*structpb.Struct, error) {
	return toStruct(ts)
}

// EventToStruct encodes ev as its flat record.
func EventToStruct(ev report.Event) (*structpb.Struct, error) {
	return toStruct(ev.Record())
}

// RecordFromStruct decodes a Watch message.
func RecordFromStruct(in *structpb.Struct) (report.Record, error) {
	var rec report.Record
	body, err := protojson.Marshal(in)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(body, &rec)
	return rec, err
}

func toStruct(v any) (*structpb.Struct, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(body, out); err != nil {
		return nil, err
	}
	return out, nil
}
