package mpesa

import (
	"connectwork/src/types"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizePhone turns user input such as "0712 345 678" or "+254712345678" into
// the 12 digit MSISDN the provider expects.
func NormalizePhone(raw, countryCode string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	if !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + strings.TrimPrefix(digits, "0")
	}
	if len(digits) != 12 || !strings.HasPrefix(digits, countryCode) {
		return "", &types.InvalidPhoneNumberError{Input: raw, Normalized: digits}
	}
	return digits, nil
}

// RoundAmount rounds half away from zero. Anything that rounds below 1 is rejected.
func RoundAmount(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, &types.InvalidAmountError{Amount: amount}
	}
	rounded := decimal.NewFromFloat(amount).Round(0)
	if rounded.LessThan(decimal.NewFromInt(1)) {
		return 0, &types.InvalidAmountError{Amount: amount}
	}
	return rounded.IntPart(), nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
