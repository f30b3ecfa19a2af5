package grpc

import (
	"context"
	"encoding/json"

	"github.com/vibast-solutions/ms-go-checkout/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages travel as google.protobuf.Struct and are decoded into the same
// request/response types the HTTP surface binds.

const ServiceName = "checkout.CheckoutService"

type CheckoutServiceServer interface {
	Health(ctx context.Context, req *types.HealthRequest) (*types.HealthResponse, error)
	CreateCheckout(ctx context.Context, req *types.CreateCheckoutRequest) (*types.CreateCheckoutResponse, error)
	GetCheckoutStatus(ctx context.Context, req *types.GetCheckoutStatusRequest) (*types.CheckoutStatusResponse, error)
	ListTransactions(ctx context.Context, req *types.ListTransactionsRequest) (*types.ListTransactionsResponse, error)
}

var CheckoutServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CheckoutServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Health",
			Handler: unaryHandler("Health", func(srv CheckoutServiceServer, ctx context.Context, req *types.HealthRequest) (*types.HealthResponse, error) {
				return srv.Health(ctx, req)
			}),
		},
		{
			MethodName: "CreateCheckout",
			Handler: unaryHandler("CreateCheckout", func(srv CheckoutServiceServer, ctx context.Context, req *types.CreateCheckoutRequest) (*types.CreateCheckoutResponse, error) {
				return srv.CreateCheckout(ctx, req)
			}),
		},
		{
			MethodName: "GetCheckoutStatus",
			Handler: unaryHandler("GetCheckoutStatus", func(srv CheckoutServiceServer, ctx context.Context, req *types.GetCheckoutStatusRequest) (*types.CheckoutStatusResponse, error) {
				return srv.GetCheckoutStatus(ctx, req)
			}),
		},
		{
			MethodName: "ListTransactions",
			Handler: unaryHandler("ListTransactions", func(srv CheckoutServiceServer, ctx context.Context, req *types.ListTransactionsRequest) (*types.ListTransactionsResponse, error) {
				return srv.ListTransactions(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "checkout.proto",
}

func RegisterCheckoutServiceServer(s grpc.ServiceRegistrar, srv CheckoutServiceServer) {
	s.RegisterService(&CheckoutServiceDesc, srv)
}

func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler[Req any, Resp any](method string, call func(CheckoutServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		req := new(Req)
		if err := fromStruct(in, req); err != nil {
			return nil, status.Error(codes.InvalidArgument, "malformed request")
		}

		handler := func(ctx context.Context, r interface{}) (interface{}, error) {
			resp, err := call(srv.(CheckoutServiceServer), ctx, r.(*Req))
			if err != nil {
				return nil, err
			}
			return toStruct(resp)
		}
		if interceptor == nil {
			return handler(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		return interceptor(ctx, req, info, handler)
	}
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response failed")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response failed")
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, v interface{}) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Client calls CheckoutService over an existing connection.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Health(ctx context.Context, req *types.HealthRequest, opts ...grpc.CallOption) (*types.HealthResponse, error) {
	return invoke[types.HealthResponse](ctx, c.conn, "Health", req, opts...)
}

func (c *Client) CreateCheckout(ctx context.Context, req *types.CreateCheckoutRequest, opts ...grpc.CallOption) (*types.CreateCheckoutResponse, error) {
	return invoke[types.CreateCheckoutResponse](ctx, c.conn, "CreateCheckout", req, opts...)
}

func (c *Client) GetCheckoutStatus(ctx context.Context, req *types.GetCheckoutStatusRequest, opts ...grpc.CallOption) (*types.CheckoutStatusResponse, error) {
	return invoke[types.CheckoutStatusResponse](ctx, c.conn, "GetCheckoutStatus", req, opts...)
}

func (c *Client) ListTransactions(ctx context.Context, req *types.ListTransactionsRequest, opts ...grpc.CallOption) (*types.ListTransactionsResponse, error) {
	return invoke[types.ListTransactionsResponse](ctx, c.conn, "ListTransactions", req, opts...)
}

func invoke[Resp any](ctx context.Context, conn grpc.ClientConnInterface, method string, req interface{}, opts ...grpc.CallOption) (*Resp, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := conn.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := fromStruct(out, resp); err != nil {
		return nil, status.Error(codes.Internal, "decode response failed")
	}
	return resp, nil
}
