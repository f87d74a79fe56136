package api

import (
	"context"

	"google.golang.org/grpc"
)

// Full method names of surveylogic.v1.Visibility.
const (
	ServiceName         = "surveylogic.v1.Visibility"
	EvaluatePageMethod  = "/" + ServiceName + "/EvaluatePage"
	ValidateRulesMethod = "/" + ServiceName + "/ValidateRules"
)

// VisibilityServer is the server API for surveylogic.v1.Visibility.
type VisibilityServer interface {
	EvaluatePage(ctx context.Context, req *EvaluatePageRequest) (*EvaluatePageResponse, error)
	ValidateRules(ctx context.Context, req *ValidateRulesRequest) (*ValidateRulesResponse, error)
}

// grpcHandler adapts VisibilityService errors to gRPC status errors.
type grpcHandler struct {
	svc *VisibilityService
}

func (h grpcHandler) EvaluatePage(ctx context.Context, req *EvaluatePageRequest) (*EvaluatePageResponse, error) {
	resp, err := h.svc.EvaluatePage(ctx, req)
	return resp, toStatus(err)
}

func (h grpcHandler) ValidateRules(ctx context.Context, req *ValidateRulesRequest) (*ValidateRulesResponse, error) {
	resp, err := h.svc.ValidateRules(ctx, req)
	return resp, toStatus(err)
}

// RegisterVisibilityServer registers svc on s. Messages use the JSON codec.
func RegisterVisibilityServer(s grpc.ServiceRegistrar, svc *VisibilityService) {
	s.RegisterService(&VisibilityServiceDesc, grpcHandler{svc: svc})
}

// VisibilityServiceDesc is the grpc.ServiceDesc for surveylogic.v1.Visibility.
var VisibilityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VisibilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "EvaluatePage", Handler: evaluatePageHandler},
		{MethodName: "ValidateRules", Handler: validateRulesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "surveylogic/v1/visibility",
}

func evaluatePageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EvaluatePageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VisibilityServer).EvaluatePage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluatePageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(VisibilityServer).EvaluatePage(ctx, req.(*EvaluatePageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func validateRulesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ValidateRulesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VisibilityServer).ValidateRules(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ValidateRulesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(VisibilityServer).ValidateRules(ctx, req.(*ValidateRulesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// VisibilityClient calls surveylogic.v1.Visibility over a JSON-coded connection.
type VisibilityClient struct {
	cc grpc.ClientConnInterface
}

// NewVisibilityClient wraps cc.
func NewVisibilityClient(cc grpc.ClientConnInterface) *VisibilityClient {
	return &VisibilityClient{cc: cc}
}

// EvaluatePage calls Visibility.EvaluatePage.
func (c *VisibilityClient) EvaluatePage(ctx context.Context, in *EvaluatePageRequest, opts ...grpc.CallOption) (*EvaluatePageResponse, error) {
	out := new(EvaluatePageResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, EvaluatePageMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateRules calls Visibility.ValidateRules.
func (c *VisibilityClient) ValidateRules(ctx context.Context, in *ValidateRulesRequest, opts ...grpc.CallOption) (*ValidateRulesResponse, error) {
	out := new(ValidateRulesResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ValidateRulesMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
