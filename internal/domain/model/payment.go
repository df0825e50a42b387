package model

import (
	"crypto/rand"
	"encoding/hex"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// PremiumPlan is the plan tag carried in udf2 through the gateway round trip.
type PremiumPlan string

const (
	PlanPremiumMonthly PremiumPlan = "premium_monthly"
	PlanPremiumYearly  PremiumPlan = "premium_yearly"
)

const (
	DefaultPlan        = "monthly"
	DefaultProductInfo = "JobFlow Premium"
	DefaultFirstName   = "User"

	premiumDay = 24 * time.Hour
)

// PlanFromChoice maps the client's plan choice ("monthly", "yearly", ...) to a tag.
// Anything other than "yearly" is monthly.
func PlanFromChoice(choice string) PremiumPlan {
	if strings.ToLower(strings.TrimSpace(choice)) == "yearly" {
		return PlanPremiumYearly
	}
	return PlanPremiumMonthly
}

// PlanFromTag parses the udf2 value echoed back by the gateway.
func PlanFromTag(tag string) PremiumPlan {
	if strings.ToLower(tag) == string(PlanPremiumYearly) {
		return PlanPremiumYearly
	}
	return PlanPremiumMonthly
}

// Duration is the entitlement length granted for the plan.
func (p PremiumPlan) Duration() time.Duration {
	if p == PlanPremiumYearly {
		return 365 * premiumDay
	}
	return 30 * premiumDay
}

// UDFCount is the number of user-defined slots the gateway hashes.
const UDFCount = 10

// PayURequest is the outbound checkout form. Field order for signing is fixed
// by the gateway: key, txnid, amount, productinfo, firstname, email, udf1..udf10.
type PayURequest struct {
	Key         string
	TxnID       string
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
	Phone       string
	SURL        string
	FURL        string
	UDF         [UDFCount]string
	Hash        string
}

// PayUResponse is the inbound callback body. Its signature covers status and
// the same fields in reverse order.
type PayUResponse struct {
	Status      string
	TxnID       string
	Amount      string
	ProductInfo string
	FirstName   string
	Email       string
	Key         string
	UDF         [UDFCount]string
	Hash        string
}

// HasRequired reports whether every field the gateway always sends is present.
func (r *PayUResponse) HasRequired() bool {
	for _, v := range []string{r.Status, r.TxnID, r.Amount, r.ProductInfo, r.FirstName, r.Email, r.Key, r.Hash} {
		if v == "" {
			return false
		}
	}
	return true
}

func (r *PayUResponse) Succeeded() bool { return strings.ToLower(r.Status) == "success" }

// UserID is carried in udf1.
func (r *PayUResponse) UserID() string { return r.UDF[0] }

// Plan is carried in udf2.
func (r *PayUResponse) Plan() PremiumPlan { return PlanFromTag(r.UDF[1]) }

// PayUTransaction is a processed callback recorded in the ledger.
type PayUTransaction struct {
	TxnID        string
	UserID       string
	Plan         PremiumPlan
	Amount       string
	Status       string
	PremiumUntil time.Time
	ProcessedAt  time.Time
}

// FormatAmount renders v with two decimals. Exact binary ties (1.125, 0.375)
// round away from zero, as toFixed(2) does in the browser; strconv rounds
// them to even.
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	cents := new(big.Float).SetPrec(256).SetFloat64(v)
	cents.Mul(cents, big.NewFloat(100))
	whole, _ := cents.Int(nil)
	frac := new(big.Float).SetPrec(256).Sub(cents, new(big.Float).SetInt(whole))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		whole.Add(whole, big.NewInt(1))
	}
	digits := whole.String()
	for len(digits) < 3 {
		digits = "0" + digits
	}
	return sign + digits[:len(digits)-2] + "." + digits[len(digits)-2:]
}

// NewTxnID returns 32 hex chars from 16 random bytes.
func NewTxnID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
