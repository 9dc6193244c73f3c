package testutil

import (
	"context"
	"io"
	"sync"

	"stkpay/internal/models"
	"stkpay/pkg/mpesa"
)

// MockProvider implements mpesa.Provider with optional per-call funcs.
type MockProvider struct {
	STKPushFunc  func(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	QuerySTKFunc func(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error)

	mu     sync.Mutex
	Pushes []mpesa.STKPushRequest
}

func (m *MockProvider) STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	m.mu.Lock()
	m.Pushes = append(m.Pushes, req)
	m.mu.Unlock()
	if m.STKPushFunc != nil {
		return m.STKPushFunc(ctx, req)
	}
	return &mpesa.STKPushResponse{
		MerchantRequestID:   "29115-34620561-1",
		CheckoutRequestID:   "ws_CO_191220191020363925",
		ResponseCode:        mpesa.ResponseCodeAccepted,
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
		PhoneNumber:         mpesa.NormalizePhone(req.PhoneNumber),
	}, nil
}

func (m *MockProvider) QuerySTK(ctx context.Context, checkoutRequestID string) (*mpesa.STKQueryResponse, error) {
	if m.QuerySTKFunc != nil {
		return m.QuerySTKFunc(ctx, checkoutRequestID)
	}
	return nil, &mpesa.APIError{Code: mpesa.CodeTransactionInProcess, Message: "The transaction is being processed"}
}

func (m *MockProvider) PushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Pushes)
}

// RecordingNotifier keeps every published transaction.
type RecordingNotifier struct {
	mu        sync.Mutex
	Published []models.Transaction
}

func (n *RecordingNotifier) PublishTransaction(tx *models.Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Published = append(n.Published, *tx)
}

func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Published)
}

// MockUploader implements the proof uploader.
type MockUploader struct {
	UploadFunc func(ctx context.Context, r io.Reader, publicID string) (string, error)
}

func (m *MockUploader) UploadProof(ctx context.Context, r io.Reader, publicID string) (string, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, r, publicID)
	}
	_, _ = io.Copy(io.Discard, r)
	return "https://res.cloudinary.com/demo/image/upload/stkpay/manual-payments/" + publicID, nil
}
