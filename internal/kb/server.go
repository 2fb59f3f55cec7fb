package kb

import (
	"context"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region backend
// Backend is a knowledge-base implementation the server exposes.
type Backend interface {
	AggregateQuery(ctx context.Context, c dialogue.Constraints, user dialogue.Action) (dialogue.Aggregate, error)
	Query(ctx context.Context, c dialogue.Constraints) (dialogue.Results, error)
	FillInformSlot(ctx context.Context, proposed map[string]any, c dialogue.Constraints, user dialogue.Action) (map[string]any, []dialogue.MatchObject, error)
}

// KnowledgeBaseServer is the RPC surface registered with grpc.
type KnowledgeBaseServer interface {
	Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AggregateQuery(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	FillInformSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// #endregion backend

// #region server
// Server adapts a Backend to KnowledgeBaseServer.
type Server struct {
	backend Backend
	logger  *zap.Logger
}

// NewServer wraps backend. logger may be nil.
func NewServer(backend Backend, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{backend: backend, logger: logger}
}

// Register attaches srv to a grpc server.
func Register(s *grpc.Server, srv KnowledgeBaseServer) {
	s.RegisterService(&serviceDesc, srv)
}

func (s *Server) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in queryRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	results, err := s.backend.Query(ctx, in.Constraints)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.logger.Debug("query", zap.Int("results", len(results)))
	return encodeReply(queryResponse{Results: results})
}

func (s *Server) AggregateQuery(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in aggregateRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	counts, err := s.backend.AggregateQuery(ctx, in.Constraints, in.UserAction)
	if err != nil {
		s.logger.Error("aggregate query failed", zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.logger.Debug("aggregate query", zap.Int("matching_all", counts[dialogue.MatchingAllKey]))
	return encodeReply(aggregateResponse{Counts: counts})
}

func (s *Server) FillInformSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in fillRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	inform, objs, err := s.backend.FillInformSlot(ctx, in.Proposed, in.Constraints, in.UserAction)
	if err != nil {
		s.logger.Error("fill inform slot failed", zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.logger.Debug("fill inform slot", zap.Any("inform", inform), zap.Int("match_objects", len(objs)))
	return encodeReply(fillResponse{Inform: inform, MatchObjects: objs})
}

func encodeReply(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// #endregion server

// #region service-desc
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*KnowledgeBaseServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: unaryHandler(methodQuery, KnowledgeBaseServer.Query)},
		{MethodName: "AggregateQuery", Handler: unaryHandler(methodAggregate, KnowledgeBaseServer.AggregateQuery)},
		{MethodName: "FillInformSlot", Handler: unaryHandler(methodFill, KnowledgeBaseServer.FillInformSlot)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "knowledge_base.proto",
}

type rpc func(KnowledgeBaseServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call rpc) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(KnowledgeBaseServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*structpb.Struct))
		})
	}
}

// #endregion service-desc
