package handler

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
)

func newGRPCConn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&ReconciliationServiceDesc, NewGRPCHandler(newTestService(t), zerolog.Nop()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPC_ReconcileAndGet(t *testing.T) {
	conn := newGRPCConn(t)
	ctx := context.Background()

	req, err := structpb.NewStruct(map[string]any{
		"file_name": "inv.json",
		"invoice": map[string]any{
			"po_number": "PO-1001",
			"items":     []any{map[string]any{"description": "Widget A", "quantity": 10, "unit_price": 5.5}},
		},
	})
	require.NoError(t, err)

	resp := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, "/ap.reconciliation.v1.ReconciliationService/Reconcile", req, resp))

	fields := resp.GetFields()
	assert.Equal(t, "ESCALATE_TO_HUMAN", fields["decision"].GetStringValue())
	assert.Equal(t, "inv.json", fields["file_name"].GetStringValue())
	issues := fields["issues"].GetListValue().GetValues()
	require.Len(t, issues, 1)
	assert.Equal(t, "PRICE_MISMATCH", issues[0].GetStructValue().GetFields()["type"].GetStringValue())

	runID := fields["run_id"].GetStringValue()
	getReq, err := structpb.NewStruct(map[string]any{"id": runID})
	require.NoError(t, err)
	got := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, "/ap.reconciliation.v1.ReconciliationService/GetReconciliation", getReq, got))
	assert.Equal(t, runID, got.GetFields()["run_id"].GetStringValue())
}

func TestGRPC_Errors(t *testing.T) {
	conn := newGRPCConn(t)
	ctx := context.Background()

	empty := &structpb.Struct{}
	err := conn.Invoke(ctx, "/ap.reconciliation.v1.ReconciliationService/Reconcile", empty, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	missing, _ := structpb.NewStruct(map[string]any{"id": "nope"})
	err = conn.Invoke(ctx, "/ap.reconciliation.v1.ReconciliationService/GetReconciliation", missing, &structpb.Struct{})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestMapErrorToGRPC(t *testing.T) {
	assert.Nil(t, mapErrorToGRPC(nil))
	assert.Equal(t, codes.Unavailable, status.Code(mapErrorToGRPC(errors.New(errors.ErrCodeUnavailable, "x"))))
	assert.Equal(t, codes.AlreadyExists, status.Code(mapErrorToGRPC(errors.New(errors.ErrCodeConflict, "x"))))
	assert.Equal(t, codes.Internal, status.Code(mapErrorToGRPC(assert.AnError)))
}
