package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/wajihaissa/fahamni/internal/models"
)

// KonnectService drives the Konnect payment gateway. Konnect has no Go SDK,
// so this talks to its JSON API directly.
type KonnectService struct {
	httpClient *http.Client
	apiKey     string
	walletID   string
	baseURL    string
	currency   string
	successURL string
	failURL    string
	webhookURL string
	pricing    *StripeService
}

func NewKonnectService(pricing *StripeService) *KonnectService {
	baseURL := strings.TrimSpace(os.Getenv("KONNECT_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.sandbox.konnect.network/api/v2"
	}
	return &KonnectService{
		httpClient: &http.Client{Timeout: 25 * time.Second},
		apiKey:     strings.TrimSpace(os.Getenv("KONNECT_API_KEY")),
		walletID:   strings.TrimSpace(os.Getenv("KONNECT_WALLET_ID")),
		baseURL:    strings.TrimRight(baseURL, "/"),
		currency:   strings.ToUpper(normalizeCurrencyCode(os.Getenv("PAYMENT_CURRENCY"))),
		successURL: os.Getenv("CHECKOUT_SUCCESS_URL"),
		failURL:    os.Getenv("CHECKOUT_CANCEL_URL"),
		webhookURL: os.Getenv("KONNECT_WEBHOOK_URL"),
		pricing:    pricing,
	}
}

// IsConfigured reports whether the API key and wallet are present.
func (s *KonnectService) IsConfigured() bool {
	return s.apiKey != "" && s.walletID != ""
}

func (s *KonnectService) ProviderName() string {
	return "konnect"
}

// Currency returns the configured charge currency (lowercase ISO code).
func (s *KonnectService) Currency() string {
	return strings.ToLower(s.currency)
}

type konnectInitRequest struct {
	ReceiverWalletID       string   `json:"receiverWalletId"`
	Token                  string   `json:"token"`
	Amount                 int64    `json:"amount"`
	Description            string   `json:"description"`
	AcceptedPaymentMethods []string `json:"acceptedPaymentMethods"`
	SuccessURL             string   `json:"successUrl,omitempty"`
	FailURL                string   `json:"failUrl,omitempty"`
	Webhook                string   `json:"webhook,omitempty"`
	OrderID                string   `json:"orderId,omitempty"`
}

type konnectInitResponse struct {
	PayURL     string `json:"payUrl"`
	PaymentRef string `json:"paymentRef"`
}

// CreateCheckoutSession initializes a Konnect payment and returns its
// reference and pay URL.
func (s *KonnectService) CreateCheckoutSession(ctx context.Context, r *models.Reservation) (*CheckoutSession, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("KONNECT_API_KEY or KONNECT_WALLET_ID is not configured")
	}

	amountMinor := s.pricing.ComputeReservationAmountCents(r)
	if amountMinor < 100 {
		amountMinor = 100
	}

	reqBody := konnectInitRequest{
		ReceiverWalletID:       s.walletID,
		Token:                  s.currency,
		Amount:                 amountMinor,
		Description:            fmt.Sprintf("Reservation seance: %s", seanceLabel(r)),
		AcceptedPaymentMethods: []string{"wallet", "bank_card", "e-DINAR"},
		SuccessURL:             s.successURL,
		FailURL:                s.failURL,
		Webhook:                s.webhookURL,
		OrderID:                fmt.Sprintf("reservation-%d", r.ID),
	}

	var resp konnectInitResponse
	if err := s.doJSON(ctx, http.MethodPost, "/payments/init-payment", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("konnect init-payment: %w", err)
	}
	if resp.PayURL == "" || resp.PaymentRef == "" {
		return nil, fmt.Errorf("konnect init-payment: payUrl or paymentRef missing")
	}

	return &CheckoutSession{
		ExternalRef: resp.PaymentRef,
		RedirectURL: resp.PayURL,
		AmountCents: amountMinor,
		Currency:    strings.ToLower(s.currency),
	}, nil
}

type konnectPaymentResponse struct {
	Payment struct {
		Status string `json:"status"`
	} `json:"payment"`
}

// IsPaymentCompleted fetches the payment and reports whether Konnect marks
// it completed. The webhook only carries a reference, so the handler calls
// back here before trusting it.
func (s *KonnectService) IsPaymentCompleted(ctx context.Context, paymentRef string) (bool, error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return false, fmt.Errorf("paymentRef is empty")
	}

	var resp konnectPaymentResponse
	if err := s.doJSON(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentRef), nil, &resp); err != nil {
		return false, fmt.Errorf("konnect get payment: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(resp.Payment.Status), "completed"), nil
}

func (s *KonnectService) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return json.Unmarshal(raw, dest)
}
