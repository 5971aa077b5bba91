package handler

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-ap-reconciler/internal/client"
	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/service"
)

// ReconciliationServer is the gRPC surface. Messages are google.protobuf.Struct
// carrying the same JSON shapes as the HTTP API.
type ReconciliationServer interface {
	Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetReconciliation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

const reconciliationServiceName = "ap.reconciliation.v1.ReconciliationService"

// ReconciliationServiceDesc registers ReconciliationServer with a grpc.Server
var ReconciliationServiceDesc = grpc.ServiceDesc{
	ServiceName: reconciliationServiceName,
	HandlerType: (*ReconciliationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Reconcile", Handler: unaryHandler("Reconcile", ReconciliationServer.Reconcile)},
		{MethodName: "GetReconciliation", Handler: unaryHandler("GetReconciliation", ReconciliationServer.GetReconciliation)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ap/reconciliation/v1/reconciliation.proto",
}

type unaryMethod func(ReconciliationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, method unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + reconciliationServiceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(ReconciliationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return method(srv.(ReconciliationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// GRPCHandler implements ReconciliationServer
type GRPCHandler struct {
	service *service.ReconciliationService
	logger  zerolog.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(service *service.ReconciliationService, logger zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{
		service: service,
		logger:  logger.With().Str("handler", "grpc").Logger(),
	}
}

// Reconcile reconciles one invoice: {file_name, file_path, invoice}
func (h *GRPCHandler) Reconcile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	serviceReq := &service.ReconcileRequest{
		FileName: fields["file_name"].GetStringValue(),
		FilePath: fields["file_path"].GetStringValue(),
	}

	h.logger.Info().
		Str("file_name", serviceReq.FileName).
		Str("file_path", serviceReq.FilePath).
		Msg("gRPC Reconcile called")

	if inv := fields["invoice"].GetStructValue(); inv != nil {
		data, err := protojson.Marshal(inv)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "invalid invoice")
		}
		invoice, ok := client.ParseInvoiceJSON(string(data))
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "invalid invoice")
		}
		serviceReq.Invoice = &invoice
	}

	rec, err := h.service.Reconcile(ctx, serviceReq)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return recordToStruct(rec)
}

// GetReconciliation returns a stored record: {id}
func (h *GRPCHandler) GetReconciliation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := req.GetFields()["id"].GetStringValue()
	rec, err := h.service.GetReconciliation(ctx, runID)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return recordToStruct(rec)
}

func recordToStruct(rec *output.Record) (*structpb.Struct, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode record")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode record")
	}
	return out, nil
}

func mapErrorToGRPC(err error) error {
	if err == nil {
		return nil
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.ErrCodeNotFound:
		return status.Error(codes.NotFound, err.Error())
	case errors.ErrCodeConflict:
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.ErrCodeUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
