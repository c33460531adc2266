package mpesa

import (
	"connectwork/src/models"
	"connectwork/src/types"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	DefaultAccountReference = "ConnectWork"
	DefaultTransactionDesc  = "Payment for services"

	maxAccountReference = 12
)

type PushOptions struct {
	AccountReference string
	TransactionDesc  string
	CallbackURL      string
}

type PushResult struct {
	Success           bool            `json:"success"`
	Message           string          `json:"message"`
	CheckoutRequestID string          `json:"checkoutRequestId,omitempty"`
	MerchantRequestID string          `json:"merchantRequestId,omitempty"`
	CustomerMessage   string          `json:"customerMessage,omitempty"`
	PhoneNumber       string          `json:"phoneNumber,omitempty"`
	Amount            int64           `json:"amount,omitempty"`
	AccountReference  string          `json:"accountReference,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

func (c *Client) pushDefaults(opts PushOptions) PushOptions {
	if opts.AccountReference == "" {
		opts.AccountReference = DefaultAccountReference
	}
	opts.AccountReference = truncateRunes(opts.AccountReference, maxAccountReference)
	if opts.TransactionDesc == "" {
		opts.TransactionDesc = DefaultTransactionDesc
	}
	if opts.CallbackURL == "" {
		opts.CallbackURL = c.cfg.CallbackURL
	}
	return opts
}

// truncateRunes cuts s to at most n characters without splitting a multibyte one.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// InitiateStkPush asks the provider to prompt phone for amount. On success the
// transaction is recorded as pending; the outcome arrives later through a callback
// or a status query.
func (c *Client) InitiateStkPush(ctx context.Context, phone string, amount float64, opts PushOptions) (*PushResult, error) {
	fail := func(err error) (*PushResult, error) {
		return &PushResult{Success: false, Message: err.Error()}, err
	}

	if err := c.checkSigning(); err != nil {
		return fail(err)
	}
	msisdn, err := NormalizePhone(phone, c.cfg.CountryCode)
	if err != nil {
		return fail(err)
	}
	value, err := RoundAmount(amount)
	if err != nil {
		return fail(err)
	}
	opts = c.pushDefaults(opts)

	token, err := c.GetAuthToken(ctx)
	if err != nil {
		log.Printf("[mpesa] stk push to %s aborted: %s\n", maskPhone(msisdn), err.Error())
		return fail(err)
	}

	ts, password := c.sign()
	res := c.proxy.Call(ctx, stkPushEndpoint, http.MethodPost, stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            value,
		PartyA:            msisdn,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       msisdn,
		CallBackURL:       opts.CallbackURL,
		AccountReference:  opts.AccountReference,
		TransactionDesc:   opts.TransactionDesc,
	}, bearer(token))
	if !res.Success {
		return &PushResult{Success: false, Message: res.Message, Data: res.Data}, res.Err
	}

	code := gjson.GetBytes(res.Data, "ResponseCode").String()
	desc := gjson.GetBytes(res.Data, "ResponseDescription").String()
	if code != "0" {
		err := &types.UpstreamError{Kind: types.ErrorKindUpstream, StatusCode: res.StatusCode, Message: desc}
		if desc == "" {
			err.Message = "M-Pesa rejected the request with code " + strconv.Quote(code)
		}
		return &PushResult{Success: false, Message: err.Message, Data: res.Data}, err
	}

	checkoutID := gjson.GetBytes(res.Data, "CheckoutRequestID").String()
	if checkoutID == "" {
		err := &types.UpstreamError{Kind: types.ErrorKindUpstream, StatusCode: res.StatusCode, Message: "M-Pesa response is missing CheckoutRequestID"}
		return &PushResult{Success: false, Message: err.Message, Data: res.Data}, err
	}
	merchantID := gjson.GetBytes(res.Data, "MerchantRequestID").String()

	if c.recorder != nil {
		err := c.recorder.CreateMpesaTransaction(ctx, &models.MpesaTransaction{
			CheckoutRequestID: checkoutID,
			MerchantRequestID: merchantID,
			PhoneNumber:       msisdn,
			Amount:            value,
			AccountReference:  opts.AccountReference,
			TransactionDesc:   opts.TransactionDesc,
			Status:            types.PAYMENT_PENDING,
		})
		if err != nil {
			// The push has already gone out; reconciliation still settles the payment row.
			log.Printf("[mpesa] could not record pending transaction %s: %s\n", checkoutID, err.Error())
		}
	}

	customerMessage := gjson.GetBytes(res.Data, "CustomerMessage").String()
	message := customerMessage
	if message == "" {
		message = desc
	}
	log.Printf("[mpesa] stk push accepted: checkout=%s phone=%s amount=%d\n", checkoutID, maskPhone(msisdn), value)
	return &PushResult{
		Success:           true,
		Message:           message,
		CheckoutRequestID: checkoutID,
		MerchantRequestID: merchantID,
		CustomerMessage:   customerMessage,
		PhoneNumber:       msisdn,
		Amount:            value,
		AccountReference:  opts.AccountReference,
		Data:              res.Data,
	}, nil
}
