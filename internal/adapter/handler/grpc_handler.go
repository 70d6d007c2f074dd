package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/core/service"
)

const (
	checkoutServiceName = "checkout.v1.CheckoutService"
	jsonCodecName       = "json"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec carries checkout messages as JSON (content-subtype "json").
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

type StartSessionRequest struct {
	CartID        string `json:"cart_id"`
	CartToken     string `json:"cart_token,omitempty"`
	CustomerToken string `json:"customer_token,omitempty"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type CheckoutServer interface {
	StartSession(ctx context.Context, req *StartSessionRequest) (*service.SessionView, error)
	GetSession(ctx context.Context, req *SessionRequest) (*service.SessionView, error)
	Next(ctx context.Context, req *SessionRequest) (*service.SessionView, error)
	Back(ctx context.Context, req *SessionRequest) (*service.SessionView, error)
}

var CheckoutServiceDesc = grpc.ServiceDesc{
	ServiceName: checkoutServiceName,
	HandlerType: (*CheckoutServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: unaryHandler("StartSession", CheckoutServer.StartSession)},
		{MethodName: "GetSession", Handler: unaryHandler("GetSession", CheckoutServer.GetSession)},
		{MethodName: "Next", Handler: unaryHandler("Next", CheckoutServer.Next)},
		{MethodName: "Back", Handler: unaryHandler("Back", CheckoutServer.Back)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "checkout/v1/checkout.proto",
}

func RegisterCheckoutServer(s grpc.ServiceRegistrar, srv CheckoutServer) {
	s.RegisterService(&CheckoutServiceDesc, srv)
}

func unaryHandler[Req any](method string, call func(CheckoutServer, context.Context, *Req) (*service.SessionView, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + checkoutServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CheckoutServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CheckoutServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	checkout *service.CheckoutService
}

func NewGRPCHandler(checkout *service.CheckoutService) *GRPCHandler {
	return &GRPCHandler{checkout: checkout}
}

func (h *GRPCHandler) StartSession(ctx context.Context, req *StartSessionRequest) (*service.SessionView, error) {
	view, err := h.checkout.StartSession(ctx, domain.CartRef{
		CartID:        req.CartID,
		CartToken:     req.CartToken,
		CustomerToken: req.CustomerToken,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return view, nil
}

func (h *GRPCHandler) GetSession(ctx context.Context, req *SessionRequest) (*service.SessionView, error) {
	view, err := h.checkout.Session(ctx, req.SessionID)
	if err != nil {
		return nil, grpcError(err)
	}
	return view, nil
}

func (h *GRPCHandler) Next(ctx context.Context, req *SessionRequest) (*service.SessionView, error) {
	view, err := h.checkout.Next(ctx, req.SessionID)
	if err != nil {
		return nil, grpcError(err)
	}
	return view, nil
}

func (h *GRPCHandler) Back(ctx context.Context, req *SessionRequest) (*service.SessionView, error) {
	view, err := h.checkout.Back(ctx, req.SessionID)
	if err != nil {
		return nil, grpcError(err)
	}
	return view, nil
}

func grpcError(err error) error {
	_, resp := errorResponse(err)

	code := codes.Internal
	switch resp.Code {
	case "validation_failed", "invalid_request":
		code = codes.InvalidArgument
	case "session_not_found":
		code = codes.NotFound
	case "in_flight", "duplicate_order":
		code = codes.Aborted
	case "missing_cart", "checkout_complete", "checkout_precondition":
		code = codes.FailedPrecondition
	case "upstream_error":
		code = codes.Unavailable
	case "upstream_timeout":
		code = codes.DeadlineExceeded
	}
	return status.Error(code, resp.Error)
}

// CheckoutClient calls the checkout service over a connection using the JSON codec.
type CheckoutClient struct {
	cc grpc.ClientConnInterface
}

func NewCheckoutClient(cc grpc.ClientConnInterface) *CheckoutClient {
	return &CheckoutClient{cc: cc}
}

func (c *CheckoutClient) StartSession(ctx context.Context, req *StartSessionRequest) (*service.SessionView, error) {
	return c.invoke(ctx, "StartSession", req)
}

func (c *CheckoutClient) GetSession(ctx context.Context, req *SessionRequest) (*service.SessionView, error) {
	return c.invoke(ctx, "GetSession", req)
}

func (c *CheckoutClient) Next(ctx context.Context, req *SessionRequest) (*service.SessionView, error) {
	return c.invoke(ctx, "Next", req)
}

func (c *CheckoutClient) Back(ctx context.Context, req *SessionRequest) (*service.SessionView, error) {
	return c.invoke(ctx, "Back", req)
}

func (c *CheckoutClient) invoke(ctx context.Context, method string, req any) (*service.SessionView, error) {
	out := new(service.SessionView)
	err := c.cc.Invoke(ctx, "/"+checkoutServiceName+"/"+method, req, out, grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}
