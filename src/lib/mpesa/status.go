package mpesa

import (
	"connectwork/src/types"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/tidwall/gjson"
)

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

func (o Outcome) Terminal() bool {
	return o == OutcomeCompleted || o == OutcomeFailed
}

func (o Outcome) PaymentStatus() types.PaymentStatus {
	switch o {
	case OutcomeCompleted:
		return types.PAYMENT_COMPLETED
	case OutcomeFailed:
		return types.PAYMENT_FAILED
	}
	return types.PAYMENT_PENDING
}

// Codes the query endpoint uses while the customer has not answered the prompt yet.
var pendingResultCodes = map[string]bool{
	"4999":         true,
	"500.001.1001": true,
}

func ClassifyResultCode(code string) Outcome {
	switch {
	case code == "0":
		return OutcomeCompleted
	case code == "" || pendingResultCodes[code]:
		return OutcomePending
	}
	return OutcomeFailed
}

type StatusResult struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Outcome    Outcome         `json:"outcome,omitempty"`
	ResultCode string          `json:"resultCode,omitempty"`
	ResultDesc string          `json:"resultDesc,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// CheckTransactionStatus queries the provider once. A terminal answer is reconciled
// before returning; a pending one changes nothing.
func (c *Client) CheckTransactionStatus(ctx context.Context, checkoutRequestID string) (*StatusResult, error) {
	fail := func(err error) (*StatusResult, error) {
		return &StatusResult{Success: false, Message: err.Error()}, err
	}

	if err := c.checkSigning(); err != nil {
		return fail(err)
	}
	if checkoutRequestID == "" {
		return fail(errors.New("checkout request id is required"))
	}

	token, err := c.GetAuthToken(ctx)
	if err != nil {
		return fail(err)
	}

	ts, password := c.sign()
	res := c.proxy.Call(ctx, stkQueryEndpoint, http.MethodPost, stkQueryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}, bearer(token))
	if !res.Success {
		// "The transaction is being processed" comes back as an error response.
		if code := gjson.GetBytes(res.Data, "errorCode").String(); pendingResultCodes[code] {
			return &StatusResult{
				Success:    true,
				Message:    "The payment is still being processed",
				Outcome:    OutcomePending,
				ResultCode: code,
				ResultDesc: res.Message,
				Data:       res.Data,
			}, nil
		}
		return &StatusResult{Success: false, Message: res.Message, Data: res.Data}, res.Err
	}

	resultCode := gjson.GetBytes(res.Data, "ResultCode").String()
	resultDesc := gjson.GetBytes(res.Data, "ResultDesc").String()
	outcome := ClassifyResultCode(resultCode)
	result := &StatusResult{
		Success:    true,
		Outcome:    outcome,
		ResultCode: resultCode,
		ResultDesc: resultDesc,
		Data:       res.Data,
	}
	switch outcome {
	case OutcomeCompleted:
		result.Message = "Payment completed successfully"
	case OutcomeFailed:
		result.Message = "Payment failed: " + resultDesc
	default:
		result.Message = "The payment is still being processed"
		return result, nil
	}

	if c.reconciler == nil {
		return result, nil
	}
	_, err = c.reconciler.Reconcile(ctx, Reconciliation{
		CheckoutRequestID: checkoutRequestID,
		Status:            outcome.PaymentStatus(),
		ResultCode:        resultCode,
		ResultDesc:        resultDesc,
		Source:            "status_query",
	})
	if err != nil {
		if types.IsNotFound(err) {
			log.Printf("[mpesa] no payment to reconcile for %s: %s\n", checkoutRequestID, err.Error())
			return result, nil
		}
		result.Success = false
		result.Message = err.Error()
		return result, err
	}
	return result, nil
}
