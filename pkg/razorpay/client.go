package razorpay

import (
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// Client is the slice of the gateway this service needs: open an order and
// verify a payment signature. The gateway's own lifecycle stays opaque.
type Client interface {
	CreateOrder(amountPaise int64, currency string, receipt string) (string, error)
	VerifySignature(razorpayOrderID, razorpayPaymentID, signature string) bool
}

type razorpayClient struct {
	client    *razorpay.Client
	keySecret string
}

func NewClient(keyID, keySecret string) Client {
	return &razorpayClient{
		client:    razorpay.NewClient(keyID, keySecret),
		keySecret: keySecret,
	}
}

// CreateOrder implements Client. Amount is in the currency's smallest unit.
func (c *razorpayClient) CreateOrder(amountPaise int64, currency string, receipt string) (string, error) {

	data := map[string]interface{}{
		"amount":   amountPaise,
		"currency": currency,
		"receipt":  receipt,
	}

	body, err := c.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay order creation failed: %w", err)
	}

	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return "", errors.New("razorpay response missing order id")
	}

	return orderID, nil
}

// VerifySignature implements Client. The signature is an HMAC-SHA256 of
// "<order_id>|<payment_id>" keyed with the account secret.
func (c *razorpayClient) VerifySignature(razorpayOrderID, razorpayPaymentID, signature string) bool {

	params := map[string]interface{}{
		"razorpay_order_id":   razorpayOrderID,
		"razorpay_payment_id": razorpayPaymentID,
	}

	return utils.VerifyPaymentSignature(params, signature, c.keySecret)
}
