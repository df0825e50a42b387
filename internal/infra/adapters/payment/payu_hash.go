package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"jobflow/internal/domain/model"
)

const hashSep = "|"

// RequestHashString lays out the checkout fields in gateway order:
// key|txnid|amount|productinfo|firstname|email|udf1..udf10|salt.
func RequestHashString(r *model.PayURequest, salt string) string {
	parts := make([]string, 0, 7+model.UDFCount)
	parts = append(parts, r.Key, r.TxnID, r.Amount, r.ProductInfo, r.FirstName, r.Email)
	parts = append(parts, r.UDF[:]...)
	parts = append(parts, salt)
	return strings.Join(parts, hashSep)
}

// ResponseHashString lays out the callback fields in reverse gateway order:
// salt|status|udf10..udf1|email|firstname|productinfo|amount|txnid|key.
func ResponseHashString(r *model.PayUResponse, salt string) string {
	parts := make([]string, 0, 8+model.UDFCount)
	parts = append(parts, salt, r.Status)
	for i := model.UDFCount - 1; i >= 0; i-- {
		parts = append(parts, r.UDF[i])
	}
	parts = append(parts, r.Email, r.FirstName, r.ProductInfo, r.Amount, r.TxnID, r.Key)
	return strings.Join(parts, hashSep)
}

// Digest returns the lowercase hex SHA-512 of s.
func Digest(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

// hashEqual compares two digests in constant time.
func hashEqual(expected, got string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
