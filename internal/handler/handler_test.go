package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"stkpay/config"
	"stkpay/internal/domain"
	"stkpay/internal/repository"
	"stkpay/internal/service"
	"stkpay/internal/testutil"
	"stkpay/pkg/mpesa"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine   *gin.Engine
	provider *testutil.MockProvider
	notifier *testutil.RecordingNotifier
}

func newTestServer(t *testing.T, uploader service.ProofUploader) *testServer {
	t.Helper()
	db := testutil.NewTestDB(t)
	ts := &testServer{provider: &testutil.MockProvider{}, notifier: &testutil.RecordingNotifier{}}
	audit := repository.NewAuditRepository(db)
	paymentSvc := service.NewPaymentService(ts.provider, repository.NewTransactionRepository(db), audit, ts.notifier)
	manualSvc := service.NewManualPaymentService(repository.NewManualPaymentRepository(db), audit, uploader)

	payments := NewPaymentHandler(paymentSvc)
	callbacks := NewCallbackHandler(paymentSvc)
	manual := NewManualPaymentHandler(manualSvc)

	r := gin.New()
	r.POST("/payment/initiate", payments.Initiate)
	r.POST("/payment/confirm", callbacks.Confirm)
	r.GET("/payment/status", payments.Status)
	r.POST("/payment/query", payments.Query)
	r.POST("/manual-payment", manual.Submit)
	r.PATCH("/manual-payment", manual.Verify)
	r.POST("/manual-payment/:id/proof", manual.UploadProof)
	ts.engine = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (ts *testServer) initiate(t *testing.T) string {
	t.Helper()
	w, out := ts.do(t, http.MethodPost, "/payment/initiate", map[string]interface{}{
		"phoneNumber":      "0712345678",
		"amount":           100,
		"accountReference": "ORDER123",
		"transactionDesc":  "Product Purchase",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return out["transactionId"].(string)
}

const successBody = `{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":100},{"Name":"MpesaReceiptNumber","Value":"QAI2345"},{"Name":"TransactionDate","Value":20240115103045},{"Name":"PhoneNumber","Value":254712345678}]}}}}`

func TestInitiate(t *testing.T) {
	ts := newTestServer(t, nil)
	w, out := ts.do(t, http.MethodPost, "/payment/initiate", map[string]interface{}{
		"phoneNumber":      "0712345678",
		"amount":           "10.50",
		"accountReference": "ORDER123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Success. Request accepted for processing", out["message"])
	assert.Equal(t, "ws_CO_191220191020363925", out["checkoutRequestId"])
	assert.NotEmpty(t, out["transactionId"])
}

func TestInitiateErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	w, out := ts.do(t, http.MethodPost, "/payment/initiate", map[string]interface{}{"phoneNumber": "0712345678"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", out["error"])

	w, out = ts.do(t, http.MethodPost, "/payment/initiate", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgInvalidBody, out["error"])

	ts.provider.STKPushFunc = func(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
		return nil, &mpesa.APIError{StatusCode: 400, Message: "Bad Request - Invalid PhoneNumber"}
	}
	w, out = ts.do(t, http.MethodPost, "/payment/initiate", map[string]interface{}{"phoneNumber": "1", "amount": 5, "accountReference": "A"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "M-Pesa API Error: Bad Request - Invalid PhoneNumber", out["error"])
}

func TestCallbackFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.initiate(t)

	w, out := ts.do(t, http.MethodGet, "/payment/status?id="+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tx := out["transaction"].(map[string]interface{})
	assert.Equal(t, domain.TransactionPending, tx["status"])
	assert.Equal(t, float64(100), tx["amount"])

	w, out = ts.do(t, http.MethodPost, "/payment/confirm", successBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["success"])

	// redelivery is acknowledged the same way
	w, _ = ts.do(t, http.MethodPost, "/payment/confirm", successBody)
	assert.Equal(t, http.StatusOK, w.Code)

	_, out = ts.do(t, http.MethodGet, "/payment/status?id="+id, nil)
	tx = out["transaction"].(map[string]interface{})
	assert.Equal(t, domain.TransactionSuccess, tx["status"])
	assert.Equal(t, "QAI2345", tx["mpesaReceiptNumber"])
	assert.Equal(t, float64(0), tx["resultCode"])
}

func TestCallbackEdgeCases(t *testing.T) {
	ts := newTestServer(t, nil)

	w, out := ts.do(t, http.MethodPost, "/payment/confirm", successBody)
	assert.Equal(t, http.StatusOK, w.Code, "unknown transactions are acknowledged")
	assert.Equal(t, true, out["success"])

	w, out = ts.do(t, http.MethodPost, "/payment/confirm", `{"Body":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, out["success"])

	w, _ = ts.do(t, http.MethodPost, "/payment/confirm", `garbage`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	w, out := ts.do(t, http.MethodGet, "/payment/status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Transaction ID required", out["error"])

	w, out = ts.do(t, http.MethodGet, "/payment/status?id=nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Transaction not found", out["error"])
}

func TestQuery(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.initiate(t)

	w, out := ts.do(t, http.MethodPost, "/payment/query", map[string]string{"checkoutRequestId": "ws_CO_191220191020363925"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["inProcess"])

	ts.provider.QuerySTKFunc = func(ctx context.Context, id string) (*mpesa.STKQueryResponse, error) {
		return &mpesa.STKQueryResponse{ResponseCode: "0", CheckoutRequestID: id, ResultCode: "0", ResultDesc: "The service request is processed successfully."}, nil
	}
	w, out = ts.do(t, http.MethodPost, "/payment/query", map[string]string{"checkoutRequestId": "ws_CO_191220191020363925"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, out["inProcess"])
	q := out["query"].(map[string]interface{})
	assert.Equal(t, "0", q["ResultCode"])
	tx := out["transaction"].(map[string]interface{})
	assert.Equal(t, domain.TransactionSuccess, tx["status"])
	assert.Equal(t, 1, ts.notifier.Count())
}

func TestManualPaymentFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	body := map[string]interface{}{
		"phoneNumber":      "0712345678",
		"amount":           250,
		"mpesaCode":        "qai2345",
		"accountReference": "ORDER123",
	}

	w, out := ts.do(t, http.MethodPost, "/manual-payment", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Payment submitted for verification", out["message"])
	paymentID := out["paymentId"].(string)

	w, out = ts.do(t, http.MethodPost, "/manual-payment", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This M-Pesa code has already been submitted", out["error"])

	w, out = ts.do(t, http.MethodPost, "/manual-payment", map[string]interface{}{"phoneNumber": "0712345678"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", out["error"])

	w, out = ts.do(t, http.MethodPatch, "/manual-payment", map[string]string{"paymentId": paymentID, "status": "verified"})
	require.Equal(t, http.StatusOK, w.Code)
	p := out["payment"].(map[string]interface{})
	assert.Equal(t, "verified", p["status"])
	assert.NotNil(t, p["verifiedAt"])
	assert.Equal(t, "QAI2345", p["mpesaCode"])

	w, out = ts.do(t, http.MethodPatch, "/manual-payment", map[string]string{"paymentId": paymentID, "status": "rejected"})
	require.Equal(t, http.StatusOK, w.Code)
	p = out["payment"].(map[string]interface{})
	assert.Nil(t, p["verifiedAt"])

	w, _ = ts.do(t, http.MethodPatch, "/manual-payment", map[string]string{"paymentId": "missing", "status": "verified"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func multipartProof(t *testing.T, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="proof.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadProof(t *testing.T) {
	ts := newTestServer(t, &testutil.MockUploader{})
	_, out := ts.do(t, http.MethodPost, "/manual-payment", map[string]interface{}{
		"phoneNumber": "0712345678", "amount": 250, "mpesaCode": "QAI2345", "accountReference": "ORDER123",
	})
	id := out["paymentId"].(string)

	body, ct := multipartProof(t, "image/png")
	req := httptest.NewRequest(http.MethodPost, "/manual-payment/"+id+"/proof", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "stkpay/manual-payments/"+id)

	body, ct = multipartProof(t, "application/pdf")
	req = httptest.NewRequest(http.MethodPost, "/manual-payment/"+id+"/proof", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadProofAfterVerification(t *testing.T) {
	ts := newTestServer(t, &testutil.MockUploader{})
	_, out := ts.do(t, http.MethodPost, "/manual-payment", map[string]interface{}{
		"phoneNumber": "0712345678", "amount": 250, "mpesaCode": "QAI2345", "accountReference": "ORDER123",
	})
	id := out["paymentId"].(string)
	w, _ := ts.do(t, http.MethodPatch, "/manual-payment", map[string]string{"paymentId": id, "status": domain.ManualVerified})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body, ct := multipartProof(t, "image/png")
	req := httptest.NewRequest(http.MethodPost, "/manual-payment/"+id+"/proof", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	_, out = ts.do(t, http.MethodPatch, "/manual-payment", map[string]string{"paymentId": id, "status": domain.ManualVerified})
	payment := out["payment"].(map[string]interface{})
	assert.Nil(t, payment["proofUrl"])
}

func TestUploadProofDisabled(t *testing.T) {
	ts := newTestServer(t, nil)
	body, ct := multipartProof(t, "image/png")
	req := httptest.NewRequest(http.MethodPost, "/manual-payment/any/proof", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type staticFetcher struct {
	tok *oauth2.Token
	err error
}

func (f staticFetcher) FetchToken(ctx context.Context) (*oauth2.Token, error) { return f.tok, f.err }

func TestDiagnosticsStatusCode(t *testing.T) {
	cfg := config.MpesaConfig{Environment: config.MpesaSandbox}

	ok := NewDiagnosticsHandler(service.NewDiagnosticsService(cfg, staticFetcher{tok: &oauth2.Token{AccessToken: "abc"}}))
	failing := NewDiagnosticsHandler(service.NewDiagnosticsService(cfg, staticFetcher{err: &mpesa.TokenError{StatusCode: 400}}))

	r := gin.New()
	r.GET("/ok", ok.Get)
	r.GET("/failing", failing.Get)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "step1_env_check")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/failing", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "step3_diagnosis")
}
