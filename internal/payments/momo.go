package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "github.com/shoestore/api/internal/domain"
	"github.com/shoestore/api/internal/payments/signing"
)

const (
	// DefaultMomoEndpoint is the Momo sandbox create endpoint.
	DefaultMomoEndpoint = "https://test-payment.momo.vn/v2/gateway/api/create"

	momoRequestType  = "captureWallet"
	momoProviderName = "Momo"
)

// MomoProviderConfig configures the MomoProvider.
type MomoProviderConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	HTTPClient  *http.Client
	Timeout     time.Duration
	Logger      Logger
	Clock       func() time.Time
	RequestID   func() string
}

// MomoProvider creates captureWallet payments and verifies IPN deliveries.
type MomoProvider struct {
	partnerCode string
	accessKey   string
	secretKey   string
	endpoint    string
	client      jsonClient
	logger      Logger
	clock       func() time.Time
	requestID   func() string
}

// NewMomoProvider validates partner credentials and builds the adapter.
func NewMomoProvider(cfg MomoProviderConfig) (*MomoProvider, error) {
	partner := strings.TrimSpace(cfg.PartnerCode)
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if partner == "" || access == "" || secret == "" {
		return nil, errors.New("momo: partner code, access key and secret key are required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger
	}
	requestID := cfg.RequestID
	if requestID == nil {
		requestID = func() string { return "REQ-" + uuid.NewString() }
	}
	return &MomoProvider{
		partnerCode: partner,
		accessKey:   access,
		secretKey:   secret,
		endpoint:    defaultString(strings.TrimSpace(cfg.Endpoint), DefaultMomoEndpoint),
		client:      newJSONClient(cfg.HTTPClient, cfg.Timeout),
		logger:      logger,
		clock:       clock,
		requestID:   requestID,
	}, nil
}

// Method identifies the adapter.
func (p *MomoProvider) Method() domain.PaymentMethod {
	return domain.PaymentMethodMomo
}

type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      string `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Signature   string `json:"signature"`
	Lang        string `json:"lang"`
}

type momoCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	Deeplink   string `json:"deeplink"`
	QRCodeURL  string `json:"qrCodeUrl"`
}

// CreatePayment calls the Momo create API and returns the hosted payUrl.
func (p *MomoProvider) CreatePayment(ctx context.Context, req PaymentRequest) (Redirect, error) {
	orderID := strings.TrimSpace(req.Order.ID)
	if orderID == "" {
		return Redirect{}, errors.New("momo: order id is required")
	}
	if strings.TrimSpace(req.ReturnURL) == "" || strings.TrimSpace(req.NotifyURL) == "" {
		return Redirect{}, errors.New("momo: return url and notify url are required")
	}

	body := momoCreateRequest{
		PartnerCode: p.partnerCode,
		AccessKey:   p.accessKey,
		RequestID:   p.requestID(),
		Amount:      strconv.FormatInt(req.Order.TotalPrice, 10),
		OrderID:     orderID,
		OrderInfo:   orderInfo(orderID),
		RedirectURL: req.ReturnURL,
		IPNURL:      req.NotifyURL,
		ExtraData:   "",
		RequestType: momoRequestType,
		Lang:        momoLang(req.Locale),
	}
	body.Signature = signing.HMACSHA256Hex(signing.RawPairs(
		[2]string{"accessKey", body.AccessKey},
		[2]string{"amount", body.Amount},
		[2]string{"extraData", body.ExtraData},
		[2]string{"ipnUrl", body.IPNURL},
		[2]string{"orderId", body.OrderID},
		[2]string{"orderInfo", body.OrderInfo},
		[2]string{"partnerCode", body.PartnerCode},
		[2]string{"redirectUrl", body.RedirectURL},
		[2]string{"requestId", body.RequestID},
		[2]string{"requestType", body.RequestType},
	), p.secretKey)

	var resp momoCreateResponse
	if err := p.client.post(ctx, p.endpoint, body, &resp); err != nil {
		p.logger(ctx, "payments.momo.create.failed", map[string]any{
			"orderId": orderID,
			"timeout": isTimeout(err),
			"error":   err.Error(),
		})
		return Redirect{}, fmt.Errorf("momo: create payment: %w", err)
	}
	if resp.ResultCode != 0 {
		p.logger(ctx, "payments.momo.create.rejected", map[string]any{
			"orderId":    orderID,
			"resultCode": resp.ResultCode,
			"message":    resp.Message,
		})
		return Redirect{}, fmt.Errorf("%w: Momo payment error: %s", ErrProviderRejected, resp.Message)
	}

	p.logger(ctx, "payments.momo.create.succeeded", map[string]any{
		"orderId":   orderID,
		"requestId": body.RequestID,
	})

	fields := map[string]string{"requestId": body.RequestID}
	if resp.Deeplink != "" {
		fields["deeplink"] = resp.Deeplink
	}
	if resp.QRCodeURL != "" {
		fields["qrCodeUrl"] = resp.QRCodeURL
	}
	return Redirect{URL: resp.PayURL, Reference: body.RequestID, Fields: fields}, nil
}

// VerifyCallback checks an IPN body flattened into string parameters.
func (p *MomoProvider) VerifyCallback(ctx context.Context, cb Callback) (Outcome, error) {
	outcome := Outcome{
		OrderID:  cb.Param("orderId"),
		Provider: momoProviderName,
	}

	raw := signing.RawPairs(
		[2]string{"accessKey", p.accessKey},
		[2]string{"amount", cb.Param("amount")},
		[2]string{"extraData", cb.Param("extraData")},
		[2]string{"message", cb.Param("message")},
		[2]string{"orderId", cb.Param("orderId")},
		[2]string{"orderInfo", cb.Param("orderInfo")},
		[2]string{"orderType", cb.Param("orderType")},
		[2]string{"partnerCode", cb.Param("partnerCode")},
		[2]string{"payType", cb.Param("payType")},
		[2]string{"requestId", cb.Param("requestId")},
		[2]string{"responseTime", cb.Param("responseTime")},
		[2]string{"resultCode", cb.Param("resultCode")},
		[2]string{"transId", cb.Param("transId")},
	)
	if !signing.Equal(signing.HMACSHA256Hex(raw, p.secretKey), cb.Param("signature")) {
		p.logger(ctx, "payments.momo.signature_mismatch", map[string]any{"orderId": outcome.OrderID})
		outcome.Message = "Invalid signature"
		return outcome, ErrSignatureMismatch
	}
	if outcome.OrderID == "" {
		return outcome, fmt.Errorf("%w: orderId missing", ErrInvalidCallback)
	}

	outcome.Code = cb.Param("resultCode")
	outcome.Message = cb.Param("message")
	outcome.TransactionID = cb.Param("transId")
	outcome.PaidAt = p.clock().UTC()
	if ms, err := strconv.ParseInt(cb.Param("responseTime"), 10, 64); err == nil && ms > 0 {
		outcome.PaidAt = time.UnixMilli(ms).UTC()
	}
	outcome.Success = outcome.Code == "0"
	return outcome, nil
}

func momoLang(locale string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(locale)), "en") {
		return "en"
	}
	return "vi"
}
