package woocommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Sign computes the X-WC-Webhook-Signature value for body.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyWebhook checks the signature header WooCommerce sends with each delivery.
func VerifyWebhook(secret string, body []byte, signature string) bool {
	if secret == "" || strings.TrimSpace(signature) == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}
