// Package signing holds the HMAC helpers shared by the payment gateway adapters.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"net/url"
	"sort"
	"strings"
)

// HMACSHA512Hex signs data with HMAC-SHA512 and returns the lowercase hex digest.
func HMACSHA512Hex(data, secret string) string {
	return sign(sha512.New, data, secret)
}

// HMACSHA256Hex signs data with HMAC-SHA256 and returns the lowercase hex digest.
func HMACSHA256Hex(data, secret string) string {
	return sign(sha256.New, data, secret)
}

func sign(h func() hash.Hash, data, secret string) string {
	mac := hmac.New(h, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compares two hex digests in constant time, ignoring case.
func Equal(expected, actual string) bool {
	expected = strings.ToLower(strings.TrimSpace(expected))
	actual = strings.ToLower(strings.TrimSpace(actual))
	if expected == "" || actual == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(actual))
}

// Canonicalize serialises params as a query string with keys in ascending order.
// Keys listed in exclude are skipped. Values are form encoded.
func Canonicalize(params map[string]string, exclude ...string) string {
	skip := make(map[string]struct{}, len(exclude))
	for _, key := range exclude {
		skip[key] = struct{}{}
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		if _, ok := skip[key]; ok {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[key]))
	}
	return b.String()
}

// RawPairs joins key=value pairs in the given order without escaping.
// Momo signs its payloads this way.
func RawPairs(pairs ...[2]string) string {
	var b strings.Builder
	for i, pair := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(pair[0])
		b.WriteByte('=')
		b.WriteString(pair[1])
	}
	return b.String()
}

// RazorpaySignature computes the checkout signature over "orderID|paymentID".
func RazorpaySignature(orderID, paymentID, secret string) string {
	return HMACSHA256Hex(orderID+"|"+paymentID, secret)
}

// VerifyRazorpaySignature reports whether signature matches the checkout payload.
func VerifyRazorpaySignature(orderID, paymentID, signature, secret string) bool {
	if secret == "" {
		return false
	}
	return Equal(RazorpaySignature(orderID, paymentID, secret), signature)
}
