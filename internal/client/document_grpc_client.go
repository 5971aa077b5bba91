package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

// extractInvoiceMethod is the document understanding RPC. Payloads are
// google.protobuf.Struct on both sides.
const extractInvoiceMethod = "/docai.v1.DocumentService/ExtractInvoice"

// successExtractionConfidence is assumed when the service does not report one
const successExtractionConfidence = 0.9

const unparseableNote = "Extraction output could not be parsed as JSON. Using empty fallback invoice."

// DocumentGRPCClient calls the document understanding service (OCR + LLM)
type DocumentGRPCClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewDocumentGRPCClient creates a new document understanding gRPC client
func NewDocumentGRPCClient(addr string, timeout time.Duration) (*DocumentGRPCClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(forwardMetadata),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	return &DocumentGRPCClient{conn: conn, timeout: timeout}, nil
}

// Close closes the gRPC connection
func (c *DocumentGRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Extract asks the service to read documentPath. A reply that cannot be
// understood yields the fallback extraction; only transport failures are
// returned as errors.
func (c *DocumentGRPCClient) Extract(ctx context.Context, documentPath string) (*reconcile.Extraction, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := structpb.NewStruct(map[string]any{"document_path": documentPath})
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, extractInvoiceMethod, req, resp); err != nil {
		return nil, fmt.Errorf("failed to extract invoice: %w", err)
	}

	return extractionFromStruct(resp), nil
}

// extractionFromStruct reads {invoice: {...}} or {text: "..."} plus an
// optional confidence from a service reply
func extractionFromStruct(resp *structpb.Struct) *reconcile.Extraction {
	fields := resp.GetFields()

	var invoice reconcile.Invoice
	ok := false
	if inv := fields["invoice"].GetStructValue(); inv != nil {
		if data, err := protojson.Marshal(inv); err == nil {
			invoice, ok = ParseInvoiceJSON(string(data))
		}
	} else if text := fields["text"].GetStringValue(); text != "" {
		invoice, ok = ParseInvoiceJSON(text)
	}
	if !ok {
		return reconcile.FallbackExtraction(unparseableNote)
	}

	confidence := successExtractionConfidence
	if v, present := fields["confidence"]; present {
		if n, isNum := v.GetKind().(*structpb.Value_NumberValue); isNum && n.NumberValue >= 0 && n.NumberValue <= 1 {
			confidence = n.NumberValue
		}
	}

	return &reconcile.Extraction{Invoice: invoice, Confidence: confidence}
}
