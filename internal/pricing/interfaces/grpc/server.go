// Package grpc 定价服务的 gRPC 接口。消息体统一使用 google.protobuf.Struct，字段名与 HTTP 接口一致。
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "pricing.v1.PricingService"

	MethodPriceOption     = "/" + ServiceName + "/PriceOption"
	MethodGetGreeks       = "/" + ServiceName + "/GetGreeks"
	MethodPriceCurve      = "/" + ServiceName + "/PriceCurve"
	MethodImplyVolatility = "/" + ServiceName + "/ImplyVolatility"
	MethodGetLatestResult = "/" + ServiceName + "/GetLatestResult"
)

// PricingServer gRPC 服务端接口
type PricingServer interface {
	PriceOption(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGreeks(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PriceCurve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ImplyVolatility(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLatestResult(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterPricingServer 注册服务
func RegisterPricingServer(s grpc.ServiceRegistrar, srv PricingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler(method string, call func(PricingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PricingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PricingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc pricing.v1.PricingService 的服务描述
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PricingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PriceOption", Handler: unaryHandler(MethodPriceOption, PricingServer.PriceOption)},
		{MethodName: "GetGreeks", Handler: unaryHandler(MethodGetGreeks, PricingServer.GetGreeks)},
		{MethodName: "PriceCurve", Handler: unaryHandler(MethodPriceCurve, PricingServer.PriceCurve)},
		{MethodName: "ImplyVolatility", Handler: unaryHandler(MethodImplyVolatility, PricingServer.ImplyVolatility)},
		{MethodName: "GetLatestResult", Handler: unaryHandler(MethodGetLatestResult, PricingServer.GetLatestResult)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pricing/v1/pricing.proto",
}

// PricingClient gRPC 客户端
type PricingClient struct {
	cc grpc.ClientConnInterface
}

// NewPricingClient 基于已建立的连接创建客户端
func NewPricingClient(cc grpc.ClientConnInterface) *PricingClient {
	return &PricingClient{cc: cc}
}

func (c *PricingClient) invoke(ctx context.Context, method string, req any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// PriceOption 远程定价，请求不含 underlying_price 时返回价格曲线
func (c *PricingClient) PriceOption(ctx context.Context, req *OptionMessage, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, MethodPriceOption, req, opts...)
}

// GetGreeks 远程计算希腊字母
func (c *PricingClient) GetGreeks(ctx context.Context, req *OptionMessage, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, MethodGetGreeks, req, opts...)
}

// PriceCurve 远程曲线定价
func (c *PricingClient) PriceCurve(ctx context.Context, req *OptionMessage, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, MethodPriceCurve, req, opts...)
}

// ImplyVolatility 远程反解隐含波动率
func (c *PricingClient) ImplyVolatility(ctx context.Context, req *OptionMessage, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, MethodImplyVolatility, req, opts...)
}

// GetLatestResult 查询最新定价结果
func (c *PricingClient) GetLatestResult(ctx context.Context, symbol string, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, MethodGetLatestResult, &OptionMessage{Symbol: symbol}, opts...)
}
