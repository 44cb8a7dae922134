package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/shoestore/api/internal/domain"
)

const (
	// DefaultSolanaRPCURL is the public mainnet JSON-RPC endpoint.
	DefaultSolanaRPCURL = "https://api.mainnet-beta.solana.com"

	solanaProviderName = "Solana"
	solanaDecimals     = 9
)

// SolanaProviderConfig configures the SolanaProvider.
type SolanaProviderConfig struct {
	RPCURL     string
	Recipient  string
	VNDPerSOL  string
	Label      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     Logger
	Clock      func() time.Time
	Reference  func() string
}

// SolanaProvider issues Solana Pay transfer requests and verifies transfers on chain.
type SolanaProvider struct {
	rpcURL    string
	recipient string
	rate      decimal.Decimal
	label     string
	client    jsonClient
	logger    Logger
	clock     func() time.Time
	reference func() string
}

// NewSolanaProvider validates the wallet and conversion rate and builds the adapter.
func NewSolanaProvider(cfg SolanaProviderConfig) (*SolanaProvider, error) {
	recipient := strings.TrimSpace(cfg.Recipient)
	if recipient == "" {
		return nil, errors.New("solana: recipient is required")
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(cfg.VNDPerSOL))
	if err != nil || !rate.IsPositive() {
		return nil, fmt.Errorf("solana: invalid VND per SOL rate %q", cfg.VNDPerSOL)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger
	}
	reference := cfg.Reference
	if reference == nil {
		reference = uuid.NewString
	}
	return &SolanaProvider{
		rpcURL:    defaultString(strings.TrimSpace(cfg.RPCURL), DefaultSolanaRPCURL),
		recipient: recipient,
		rate:      rate,
		label:     defaultString(strings.TrimSpace(cfg.Label), "Shoe Store"),
		client:    newJSONClient(cfg.HTTPClient, cfg.Timeout),
		logger:    logger,
		clock:     clock,
		reference: reference,
	}, nil
}

// Method identifies the adapter.
func (p *SolanaProvider) Method() domain.PaymentMethod {
	return domain.PaymentMethodSolana
}

// AmountSOL converts a VND total to SOL rounded to lamport precision.
func (p *SolanaProvider) AmountSOL(totalVND int64) decimal.Decimal {
	return decimal.NewFromInt(totalVND).Div(p.rate).Round(solanaDecimals)
}

func (p *SolanaProvider) lamports(totalVND int64) int64 {
	return p.AmountSOL(totalVND).Shift(solanaDecimals).IntPart()
}

// CreatePayment returns a Solana Pay transfer request URL. No network call is made.
func (p *SolanaProvider) CreatePayment(ctx context.Context, req PaymentRequest) (Redirect, error) {
	orderID := strings.TrimSpace(req.Order.ID)
	if orderID == "" {
		return Redirect{}, errors.New("solana: order id is required")
	}
	amount := p.AmountSOL(req.Order.TotalPrice)
	ref := p.reference()

	query := url.Values{}
	query.Set("amount", amount.String())
	query.Set("reference", ref)
	query.Set("label", p.label)
	query.Set("memo", orderID)

	p.logger(ctx, "payments.solana.request.created", map[string]any{
		"orderId":   orderID,
		"reference": ref,
		"amountSol": amount.String(),
	})

	return Redirect{
		URL:       "solana:" + p.recipient + "?" + query.Encode(),
		Reference: ref,
		Fields:    map[string]string{"amountSol": amount.String()},
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type getTransactionResponse struct {
	Result *struct {
		BlockTime *int64 `json:"blockTime"`
		Meta      *struct {
			Err          any      `json:"err"`
			PreBalances  []int64  `json:"preBalances"`
			PostBalances []int64  `json:"postBalances"`
			LogMessages  []string `json:"logMessages"`
		} `json:"meta"`
		Transaction struct {
			Message struct {
				AccountKeys []string `json:"accountKeys"`
			} `json:"message"`
		} `json:"transaction"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// VerifyCallback looks up the transaction named by "signature" and checks that it
// succeeded, credited the recipient with at least the order amount, and carries the
// order id as memo. "amount" must be the stored order total in VND.
func (p *SolanaProvider) VerifyCallback(ctx context.Context, cb Callback) (Outcome, error) {
	outcome := Outcome{
		OrderID:  cb.Param("orderId"),
		Provider: solanaProviderName,
	}
	signature := cb.Param("signature")
	total, err := strconv.ParseInt(cb.Param("amount"), 10, 64)
	if outcome.OrderID == "" || signature == "" || err != nil {
		return outcome, fmt.Errorf("%w: orderId, signature and amount are required", ErrInvalidCallback)
	}
	outcome.TransactionID = signature

	var resp getTransactionResponse
	err = p.client.post(ctx, p.rpcURL, rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTransaction",
		Params: []any{signature, map[string]any{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		}},
	}, &resp)
	if err != nil {
		return outcome, fmt.Errorf("solana: getTransaction: %w", err)
	}
	if resp.Error != nil {
		return outcome, fmt.Errorf("%w: solana rpc error %d: %s", ErrProviderRejected, resp.Error.Code, resp.Error.Message)
	}

	tx := resp.Result
	switch {
	case tx == nil:
		outcome.Code = "not_found"
		outcome.Message = "Transaction not found"
		return outcome, nil
	case tx.Meta == nil || tx.Meta.Err != nil:
		outcome.Code = "failed"
		outcome.Message = "Transaction failed on chain"
		return outcome, nil
	}

	expected := p.lamports(total)
	received := recipientDelta(tx.Transaction.Message.AccountKeys, tx.Meta.PreBalances, tx.Meta.PostBalances, p.recipient)
	if received < expected {
		p.logger(ctx, "payments.solana.underpaid", map[string]any{
			"orderId":  outcome.OrderID,
			"expected": expected,
			"received": received,
		})
		outcome.Code = "underpaid"
		outcome.Message = fmt.Sprintf("Transfer of %d lamports is below the expected %d", received, expected)
		return outcome, nil
	}
	if !memoMatches(tx.Meta.LogMessages, outcome.OrderID) {
		outcome.Message = "Invalid signature"
		return outcome, ErrSignatureMismatch
	}

	outcome.Code = "confirmed"
	outcome.Success = true
	outcome.Message = "Payment successful"
	outcome.PaidAt = p.clock().UTC()
	if tx.BlockTime != nil {
		outcome.PaidAt = time.Unix(*tx.BlockTime, 0).UTC()
	}
	return outcome, nil
}

func recipientDelta(keys []string, pre, post []int64, recipient string) int64 {
	for i, key := range keys {
		if key != recipient {
			continue
		}
		if i >= len(pre) || i >= len(post) {
			return 0
		}
		return post[i] - pre[i]
	}
	return 0
}

func memoMatches(logs []string, orderID string) bool {
	for _, line := range logs {
		if strings.Contains(line, "Memo") && strings.Contains(line, orderID) {
			return true
		}
	}
	return false
}
