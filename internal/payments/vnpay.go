package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/payments/signing"
)

const (
	vnpayVersion      = "2.1.0"
	vnpayDateLayout   = "20060102150405"
	vnpaySuccessCode  = "00"
	vnpayProviderName = "VNPay"
)

// VNPay reports timestamps in Indochina Time, which has no daylight saving.
var vnpayLocation = time.FixedZone("ICT", 7*60*60)

// VNPayProviderConfig configures the VNPayProvider.
type VNPayProviderConfig struct {
	TMNCode    string
	HashSecret string
	PaymentURL string
	Logger     Logger
	Clock      func() time.Time
}

// VNPayProvider signs redirect URLs and verifies return callbacks for VNPay.
type VNPayProvider struct {
	tmnCode    string
	secret     string
	paymentURL string
	logger     Logger
	clock      func() time.Time
}

// NewVNPayProvider validates the merchant credentials and builds the adapter.
func NewVNPayProvider(cfg VNPayProviderConfig) (*VNPayProvider, error) {
	tmn := strings.TrimSpace(cfg.TMNCode)
	secret := strings.TrimSpace(cfg.HashSecret)
	endpoint := strings.TrimSpace(cfg.PaymentURL)
	if tmn == "" || secret == "" || endpoint == "" {
		return nil, errors.New("vnpay: tmn code, hash secret and payment url are required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &VNPayProvider{
		tmnCode:    tmn,
		secret:     secret,
		paymentURL: endpoint,
		logger:     logger,
		clock:      clock,
	}, nil
}

// Method identifies the adapter.
func (p *VNPayProvider) Method() domain.PaymentMethod {
	return domain.PaymentMethodVNPay
}

// CreatePayment builds the signed VNPay payment URL. No network call is made.
func (p *VNPayProvider) CreatePayment(ctx context.Context, req PaymentRequest) (Redirect, error) {
	orderID := strings.TrimSpace(req.Order.ID)
	if orderID == "" {
		return Redirect{}, errors.New("vnpay: order id is required")
	}
	if strings.TrimSpace(req.ReturnURL) == "" {
		return Redirect{}, errors.New("vnpay: return url is required")
	}

	params := map[string]string{
		"vnp_Version":    vnpayVersion,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    p.tmnCode,
		"vnp_Locale":     vnpayLocale(req.Locale),
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     orderID,
		"vnp_OrderInfo":  orderInfo(orderID),
		"vnp_OrderType":  "billpayment",
		"vnp_Amount":     strconv.FormatInt(req.Order.TotalPrice*100, 10),
		"vnp_ReturnUrl":  req.ReturnURL,
		"vnp_IpAddr":     defaultString(req.ClientIP, "127.0.0.1"),
		"vnp_CreateDate": p.clock().In(vnpayLocation).Format(vnpayDateLayout),
	}

	query := signing.Canonicalize(params)
	secureHash := signing.HMACSHA512Hex(query, p.secret)

	p.logger(ctx, "payments.vnpay.url.created", map[string]any{
		"orderId": orderID,
		"amount":  req.Order.TotalPrice,
	})

	return Redirect{
		URL:       p.paymentURL + "?" + query + "&vnp_SecureHash=" + secureHash,
		Reference: orderID,
	}, nil
}

// VerifyCallback validates the return query parameters.
func (p *VNPayProvider) VerifyCallback(ctx context.Context, cb Callback) (Outcome, error) {
	outcome := Outcome{
		OrderID:  cb.Param("vnp_TxnRef"),
		Provider: vnpayProviderName,
	}

	expected := signing.HMACSHA512Hex(signing.Canonicalize(cb.Params, "vnp_SecureHash", "vnp_SecureHashType"), p.secret)
	if !signing.Equal(expected, cb.Param("vnp_SecureHash")) {
		p.logger(ctx, "payments.vnpay.signature_mismatch", map[string]any{"orderId": outcome.OrderID})
		outcome.Message = "Invalid signature"
		return outcome, ErrSignatureMismatch
	}
	if outcome.OrderID == "" {
		return outcome, fmt.Errorf("%w: vnp_TxnRef missing", ErrInvalidCallback)
	}

	outcome.Code = cb.Param("vnp_ResponseCode")
	outcome.TransactionID = cb.Param("vnp_TransactionNo")
	outcome.PaidAt = p.clock().UTC()
	if outcome.Code == vnpaySuccessCode {
		outcome.Success = true
		outcome.Message = "Payment successful"
	} else {
		outcome.Message = "Payment failed with code: " + outcome.Code
	}
	return outcome, nil
}

func vnpayLocale(locale string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(locale)), "en") {
		return "en"
	}
	return "vn"
}
