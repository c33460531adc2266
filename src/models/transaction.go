package models

import (
	"connectwork/src/types"
)

// MpesaTransaction records one STK push as the provider sees it, keyed by the checkout request id.
// Written pending by the initiator; only reconciliation moves it out of pending.
type MpesaTransaction struct {
	CheckoutRequestID string `gorm:"primarykey;size:64" json:"checkout_request_id"`

	MerchantRequestID string              `gorm:"size:64" json:"merchant_request_id,omitempty"`
	PhoneNumber       string              `gorm:"size:12;index" json:"phone_number"`
	Amount            int64               `json:"amount"`
	AccountReference  string              `gorm:"size:12" json:"account_reference"`
	TransactionDesc   string              `json:"transaction_desc"`
	Status            types.PaymentStatus `gorm:"size:16;index" json:"status"`
	ResultCode        *string             `gorm:"size:32" json:"result_code,omitempty"`
	ResultDesc        *string             `json:"result_desc,omitempty"`
	ReceiptNumber     *string             `gorm:"size:32" json:"receipt_number,omitempty"`

	types.Timestamps
}
