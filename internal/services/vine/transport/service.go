// Package transport carries vine protocol bytes over a gRPC bidirectional
// stream.
//
// Each stream is one peer's reliable, ordered byte pipe. Frames are
// google.protobuf.BytesValue chunks with no meaning of their own: a chunk may
// hold part of a protocol message or several of them, and the protocol
// package reassembles frames from the concatenated bytes.
package transport

import (
	"errors"

	gogrpc "google.golang.org/grpc"
)

// ServiceName is the gRPC service name, also used for health checks.
const ServiceName = "phototropic.vine.v1.VineTransport"

const streamMethod = "/" + ServiceName + "/Stream"

// ErrClosed reports use of a closed connection.
var ErrClosed = errors.New("transport: connection closed")

type streamServer interface {
	serveStream(stream gogrpc.ServerStream) error
}

var serviceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*streamServer)(nil),
	Streams: []gogrpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       streamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "phototropic/vine/v1/transport.proto",
}

func streamHandler(srv any, stream gogrpc.ServerStream) error {
	return srv.(streamServer).serveStream(stream)
}
