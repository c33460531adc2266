package mpesa

import (
	"errors"

	"github.com/tidwall/gjson"
)

// Callback is the part of the provider's STK callback this service acts on.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        string
	ResultDesc        string
	ReceiptNumber     string
	Amount            float64
	PhoneNumber       string
	TransactionDate   string
}

func (cb *Callback) Outcome() Outcome {
	if cb.ResultCode == "0" {
		return OutcomeCompleted
	}
	return OutcomeFailed
}

var (
	ErrInvalidCallback   = errors.New("invalid callback payload")
	ErrMissingCheckoutID = errors.New("callback is missing CheckoutRequestID")
	ErrMissingResultCode = errors.New("callback is missing ResultCode")
)

const stkCallbackPath = "Body.stkCallback"

func ParseCallback(body []byte) (*Callback, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidCallback
	}
	cb := gjson.GetBytes(body, stkCallbackPath)
	if !cb.Exists() {
		return nil, ErrInvalidCallback
	}
	checkoutID := cb.Get("CheckoutRequestID").String()
	if checkoutID == "" {
		return nil, ErrMissingCheckoutID
	}
	code := cb.Get("ResultCode")
	if !code.Exists() {
		return nil, ErrMissingResultCode
	}

	out := &Callback{
		MerchantRequestID: cb.Get("MerchantRequestID").String(),
		CheckoutRequestID: checkoutID,
		ResultCode:        code.String(),
		ResultDesc:        cb.Get("ResultDesc").String(),
		ReceiptNumber:     cb.Get("MpesaReceiptNumber").String(),
	}
	if out.ReceiptNumber == "" {
		out.ReceiptNumber = metadataItem(cb, "MpesaReceiptNumber").String()
	}
	out.Amount = metadataItem(cb, "Amount").Float()
	out.PhoneNumber = metadataItem(cb, "PhoneNumber").String()
	out.TransactionDate = metadataItem(cb, "TransactionDate").String()
	return out, nil
}

func metadataItem(cb gjson.Result, name string) gjson.Result {
	return cb.Get(`CallbackMetadata.Item.#(Name=="` + name + `").Value`)
}
