// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName 服务全名
const ServiceName = "course_rag.v1.QueryService"

const (
	methodQuery         = "/" + ServiceName + "/Query"
	methodListCourses   = "/" + ServiceName + "/ListCourses"
	methodDeleteSession = "/" + ServiceName + "/DeleteSession"
)

// QueryServiceServer 服务端接口；请求与响应均为 structpb.Struct
type QueryServiceServer interface {
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCourses(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(QueryServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(QueryServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(QueryServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// QueryServiceDesc 手写的服务描述，payload 使用 structpb 无需生成代码
var QueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Query",
			Handler:    unaryHandler(methodQuery, QueryServiceServer.Query),
		},
		{
			MethodName: "ListCourses",
			Handler:    unaryHandler(methodListCourses, QueryServiceServer.ListCourses),
		},
		{
			MethodName: "DeleteSession",
			Handler:    unaryHandler(methodDeleteSession, QueryServiceServer.DeleteSession),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "course_rag/v1/query_service",
}

// RegisterQueryServiceServer 注册到 grpc.Server
func RegisterQueryServiceServer(s grpc.ServiceRegistrar, srv QueryServiceServer) {
	s.RegisterService(&QueryServiceDesc, srv)
}

// QueryServiceClient 客户端
type QueryServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewQueryServiceClient 基于连接创建客户端
func NewQueryServiceClient(cc grpc.ClientConnInterface) *QueryServiceClient {
	return &QueryServiceClient{cc: cc}
}

// Query 调用 Query
func (c *QueryServiceClient) Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodQuery, in, opts...)
}

// ListCourses 调用 ListCourses
func (c *QueryServiceClient) ListCourses(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListCourses, in, opts...)
}

// DeleteSession 调用 DeleteSession
func (c *QueryServiceClient) DeleteSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodDeleteSession, in, opts...)
}

func (c *QueryServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
