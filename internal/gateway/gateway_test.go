package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalStringSortsKeys(t *testing.T) {
	got := CanonicalString(map[string]string{"tx_ref": "TXN1", "status": "success", "amount": "10.00"})
	assert.Equal(t, "amount=10.00&status=success&tx_ref=TXN1", got)
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := map[string]string{"tx_ref": "TXN1", "status": "success"}
	sig := ComputeSignature(payload, "s3cret")
	assert.Len(t, sig, 64)

	assert.True(t, VerifyWebhookSignature(payload, sig, "s3cret"))
	assert.True(t, VerifyWebhookSignature(payload, strings.ToUpper(sig), "s3cret"))
	assert.False(t, VerifyWebhookSignature(payload, sig, "other"))
	assert.False(t, VerifyWebhookSignature(payload, "", "s3cret"))
	assert.False(t, VerifyWebhookSignature(payload, sig, ""))

	tampered := map[string]string{"tx_ref": "TXN1", "status": "failed"}
	assert.False(t, VerifyWebhookSignature(tampered, sig, "s3cret"))
}

func TestGenerateTxRefDistinctWithinSecond(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	a := GenerateTxRef(now)
	b := GenerateTxRef(now)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "TXN20240309140507"))
	assert.Len(t, a, len("TXN")+14+8)
}

func TestTestModeCheckoutAndVerify(t *testing.T) {
	c := NewClient(Config{TestMode: true}, zerolog.Nop())
	res := c.CreateCheckout(context.Background(), CheckoutRequest{
		Amount:   decimal.RequireFromString("550"),
		Currency: "ETB",
	})
	require.True(t, res.Success)
	assert.True(t, IsOwnTxRef(res.TxRef))
	assert.Contains(t, res.CheckoutURL, "https://checkout.chapa.co/test-mode/"+res.TxRef)
	assert.Contains(t, res.CheckoutURL, "amount=550.00")
	assert.Contains(t, res.CheckoutURL, "provider=test")

	v := c.VerifyTransaction(context.Background(), res.TxRef)
	require.True(t, v.Success)
	assert.Equal(t, StatusSuccess, v.Status)
	assert.Equal(t, "100.00", v.Amount)
	assert.Equal(t, "ETB", v.Currency)
	assert.Equal(t, "CHAP_REF_"+res.TxRef, v.Reference)

	miss := c.VerifyTransaction(context.Background(), "OTHER123")
	assert.False(t, miss.Success)
	assert.Equal(t, http.StatusNotFound, miss.StatusCode)
}

func TestTestModeKeepsCallerTxRef(t *testing.T) {
	c := NewClient(Config{TestMode: true}, zerolog.Nop())
	res := c.CreateCheckout(context.Background(), CheckoutRequest{TxRef: "TXNfixed", Amount: decimal.NewFromInt(1)})
	require.True(t, res.Success)
	assert.Equal(t, "TXNfixed", res.TxRef)
}

func TestLiveCheckout(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout", r.URL.Path)
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"success","data":{"checkout_url":"https://pay.example/abc"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk"}, zerolog.Nop())
	res := c.CreateCheckout(context.Background(), CheckoutRequest{
		TxRef:    "TXN1",
		Amount:   decimal.RequireFromString("12.5"),
		Currency: "ETB",
		Customer: Customer{Email: "a@b.c", Name: "Abebe"},
	})
	require.True(t, res.Success)
	assert.Equal(t, "https://pay.example/abc", res.CheckoutURL)
	assert.Equal(t, "12.50", got["amount"])
	assert.Equal(t, "TXN1", got["tx_ref"])
	assert.Equal(t, "a@b.c", got["email"])
}

func TestLiveCheckoutProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid currency"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk"}, zerolog.Nop())
	res := c.CreateCheckout(context.Background(), CheckoutRequest{Amount: decimal.NewFromInt(1)})
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.NotContains(t, res.Error, "invalid currency")
	assert.Contains(t, res.RawError, "invalid currency")
}

func TestLiveVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/TXN9", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"status":"Success","amount":550,"currency":"ETB","reference":"R1"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", SecretKey: "sk"}, zerolog.Nop())
	v := c.VerifyTransaction(context.Background(), "TXN9")
	require.True(t, v.Success)
	assert.Equal(t, StatusSuccess, v.Status)
	assert.Equal(t, "550", v.Amount)
	assert.Equal(t, "R1", v.Reference)
}

func TestLiveVerifyTransportError(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", SecretKey: "sk", Timeout: time.Second}, zerolog.Nop())
	v := c.VerifyTransaction(context.Background(), "TXN9")
	assert.False(t, v.Success)
	assert.Equal(t, 0, v.StatusCode)
	assert.NotEmpty(t, v.Error)
}

func TestFetchExchangeRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "USD", r.URL.Query().Get("from"))
		assert.Equal(t, "ETB", r.URL.Query().Get("to"))
		_, _ = w.Write([]byte(`{"rate":56.25}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk"}, zerolog.Nop())
	rate, err := c.FetchExchangeRate(context.Background(), "USD", "ETB")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("56.25")))

	_, err = NewClient(Config{TestMode: true}, zerolog.Nop()).FetchExchangeRate(context.Background(), "USD", "ETB")
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestLiveRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TXN1", body["tx_ref"])
		_, hasAmount := body["amount"]
		assert.False(t, hasAmount)
		_, _ = w.Write([]byte(`{"data":{"id":"RF1","status":"Pending"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk"}, zerolog.Nop())
	res := c.Refund(context.Background(), "TXN1", decimal.Zero, "")
	require.True(t, res.Success)
	assert.Equal(t, "RF1", res.RefundID)
	assert.Equal(t, StatusPending, res.Status)
}
