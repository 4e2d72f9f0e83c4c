package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhookSignature checks the X-Razorpay-Signature header against an
// HMAC-SHA256 of the exact raw request body. The body must not be re-encoded
// or normalized before verification. Comparison is constant time.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c == nil || c.webhookSecret == "" || signature == "" {
		return false
	}
	return verifyHMAC([]byte(c.webhookSecret), body, signature)
}

// VerifyCheckoutSignature checks the signature Razorpay checkout hands back
// to the browser after payment. The signed payload is "<orderID>|<paymentID>"
// keyed with the API secret, not the webhook secret.
func (c *Client) VerifyCheckoutSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if c == nil || c.keySecret == "" || signature == "" {
		return false
	}
	payload := gatewayOrderID + "|" + gatewayPaymentID
	return verifyHMAC([]byte(c.keySecret), []byte(payload), signature)
}

func verifyHMAC(key, payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
