package payments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Gateway is the narrow contract the checkout workflow needs from the
// payment provider. Handlers depend on this, not on the PayPal client, so
// tests can swap in a fake.
type Gateway interface {
	// CreatePayment builds a redirect-based payment for an order and
	// returns the URL the buyer must approve it at.
	CreatePayment(ctx context.Context, amount float64, orderID int64) (string, error)
	// CapturePayment settles a previously approved payment and returns the
	// gateway status and capture id. Already-completed tokens return
	// ("COMPLETED", token) without a second capture.
	CapturePayment(ctx context.Context, token string) (status string, captureID string, err error)
}

// GatewayStatusCompleted is the terminal status PayPal reports for a
// captured order.
const GatewayStatusCompleted = "COMPLETED"

// PayPalGateway implements Gateway against the PayPal Orders v2 API.
type PayPalGateway struct {
	client     *paypal.Client
	logger     *zap.Logger
	baseURL    string
	returnPath string
	cancelPath string
}

// NewPayPalGateway builds a client from PAYPAL_* environment variables.
// PAYPAL_MODE anything other than "live" means sandbox.
func NewPayPalGateway(ctx context.Context, logger *zap.Logger) (*PayPalGateway, error) {
	clientID := os.Getenv("PAYPAL_CLIENT_ID")
	clientSecret := os.Getenv("PAYPAL_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET must be set")
	}

	apiBase := paypal.APIBaseSandBox
	if strings.EqualFold(os.Getenv("PAYPAL_MODE"), "live") {
		apiBase = paypal.APIBaseLive
	}

	client, err := paypal.NewClient(clientID, clientSecret, apiBase)
	if err != nil {
		return nil, err
	}
	if _, err := client.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}

	return &PayPalGateway{
		client:     client,
		logger:     logger,
		baseURL:    os.Getenv("PAYPAL_BASE_URL"),
		returnPath: os.Getenv("PAYPAL_RETURN_URL"),
		cancelPath: os.Getenv("PAYPAL_CANCEL_URL"),
	}, nil
}

func (g *PayPalGateway) CreatePayment(ctx context.Context, amount float64, orderID int64) (string, error) {
	if g.baseURL == "" || g.returnPath == "" || g.cancelPath == "" {
		return "", errors.New("base URL or return/cancel URL configuration is missing")
	}

	ref := strconv.FormatInt(orderID, 10)
	fullReturnURL := strings.TrimRight(g.baseURL, "/") + g.returnPath + "?orderNumber=" + ref
	fullCancelURL := strings.TrimRight(g.baseURL, "/") + g.cancelPath + "?orderNumber=" + ref

	// PayPal wants the amount as a string; whole units only, matching the
	// storefront's USD pricing.
	value := decimal.NewFromFloat(amount).Round(0).String()

	units := []paypal.PurchaseUnitRequest{
		{
			ReferenceID: ref,
			Amount: &paypal.PurchaseUnitAmount{
				Currency: "USD",
				Value:    value,
			},
		},
	}
	appCtx := &paypal.ApplicationContext{
		ReturnURL:          fullReturnURL,
		CancelURL:          fullCancelURL,
		UserAction:         paypal.UserActionPayNow,
		ShippingPreference: paypal.ShippingPreferenceNoShipping,
	}

	order, err := g.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		g.logger.Error("Error creating PayPal payment", zap.Int64("orderID", orderID), zap.Error(err))
		return "", err
	}

	for _, link := range order.Links {
		if strings.EqualFold(link.Rel, "approve") {
			return link.Href, nil
		}
	}

	return "", errors.New("PayPal approve URL not found in response")
}

func (g *PayPalGateway) CapturePayment(ctx context.Context, token string) (string, string, error) {
	if token == "" {
		return "", "", errors.New("token is required")
	}

	// Probe first: a buyer refreshing the return page must not trigger a
	// second capture for the same token.
	order, err := g.client.GetOrder(ctx, token)
	if err != nil {
		g.logger.Error("Error checking PayPal order status", zap.String("token", token), zap.Error(err))
		return "", "", err
	}
	if order.Status == GatewayStatusCompleted {
		g.logger.Info("Order already captured", zap.String("token", token))
		return GatewayStatusCompleted, token, nil
	}

	capture, err := g.client.CaptureOrder(ctx, token, paypal.CaptureOrderRequest{})
	if err != nil {
		g.logger.Error("Error capturing PayPal payment", zap.String("token", token), zap.Error(err))
		return "", "", err
	}

	return capture.Status, capture.ID, nil
}
