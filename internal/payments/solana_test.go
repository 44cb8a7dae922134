package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/shoestore/api/internal/domain"
)

const solanaRecipient = "Recipient1111111111111111111111111111111111"

func newTestSolana(t *testing.T, rpcURL string) *SolanaProvider {
	t.Helper()
	p, err := NewSolanaProvider(SolanaProviderConfig{
		RPCURL:    rpcURL,
		Recipient: solanaRecipient,
		VNDPerSOL: "4000000",
		Label:     "Shoe Store",
		Timeout:   time.Second,
		Reference: func() string { return "ref-1" },
	})
	require.NoError(t, err)
	return p
}

func TestSolanaCreatePaymentURL(t *testing.T) {
	p := newTestSolana(t, "")
	redirect, err := p.CreatePayment(context.Background(), PaymentRequest{Order: domain.Order{ID: "01HXORDER", TotalPrice: 470000}})
	require.NoError(t, err)

	target, query, ok := strings.Cut(redirect.URL, "?")
	require.True(t, ok)
	assert.Equal(t, "solana:"+solanaRecipient, target)
	values, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.Equal(t, "0.1175", values.Get("amount"))
	assert.Equal(t, "ref-1", values.Get("reference"))
	assert.Equal(t, "01HXORDER", values.Get("memo"))
	assert.Equal(t, "Shoe Store", values.Get("label"))
	assert.Equal(t, "ref-1", redirect.Reference)
}

func TestSolanaAmountRoundsToLamports(t *testing.T) {
	p := newTestSolana(t, "")
	assert.Equal(t, "0.00000025", p.AmountSOL(1).String())
	assert.Equal(t, int64(117500000), p.lamports(470000))

	thirds, err := NewSolanaProvider(SolanaProviderConfig{Recipient: solanaRecipient, VNDPerSOL: "3"})
	require.NoError(t, err)
	assert.Equal(t, "0.333333333", thirds.AmountSOL(1).String())
	assert.Equal(t, int64(333333333), thirds.lamports(1))

	_, err = NewSolanaProvider(SolanaProviderConfig{Recipient: solanaRecipient, VNDPerSOL: "-1"})
	assert.Error(t, err)
}

func solanaRPC(t *testing.T, result string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTransaction", req.Method)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func solanaTx(err string, credited int64, memo string) string {
	return `{"blockTime":1714532645,"meta":{"err":` + err + `,` +
		`"preBalances":[5000000000,1000],"postBalances":[` + jsonInt(5000000000-credited-5000) + `,` + jsonInt(1000+credited) + `],` +
		`"logMessages":["Program log: Memo (len 9): \"` + memo + `\""]},` +
		`"transaction":{"message":{"accountKeys":["Payer111","` + solanaRecipient + `"]}}}`
}

func jsonInt(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func TestSolanaVerifyCallback(t *testing.T) {
	params := map[string]string{"orderId": "01HXORDER", "signature": "sig1", "amount": "470000"}

	t.Run("confirmed", func(t *testing.T) {
		p := newTestSolana(t, solanaRPC(t, solanaTx("null", 117500000, "01HXORDER")).URL)
		outcome, err := p.VerifyCallback(context.Background(), Callback{Params: params})
		require.NoError(t, err)
		assert.True(t, outcome.Success)
		assert.Equal(t, "sig1", outcome.TransactionID)
		assert.Equal(t, time.Unix(1714532645, 0).UTC(), outcome.PaidAt)
	})

	t.Run("underpaid", func(t *testing.T) {
		p := newTestSolana(t, solanaRPC(t, solanaTx("null", 100, "01HXORDER")).URL)
		outcome, err := p.VerifyCallback(context.Background(), Callback{Params: params})
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Equal(t, "underpaid", outcome.Code)
	})

	t.Run("failed on chain", func(t *testing.T) {
		p := newTestSolana(t, solanaRPC(t, solanaTx(`{"InstructionError":[0,"Custom"]}`, 117500000, "01HXORDER")).URL)
		outcome, err := p.VerifyCallback(context.Background(), Callback{Params: params})
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Equal(t, "failed", outcome.Code)
	})

	t.Run("not found", func(t *testing.T) {
		p := newTestSolana(t, solanaRPC(t, "null").URL)
		outcome, err := p.VerifyCallback(context.Background(), Callback{Params: params})
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Equal(t, "not_found", outcome.Code)
	})

	t.Run("memo for another order", func(t *testing.T) {
		p := newTestSolana(t, solanaRPC(t, solanaTx("null", 117500000, "OTHER")).URL)
		_, err := p.VerifyCallback(context.Background(), Callback{Params: params})
		require.ErrorIs(t, err, ErrSignatureMismatch)
	})
}
