package controllers

import (
	"connectwork/src/db"
	"connectwork/src/lib/mpesa"
	"connectwork/src/models"
	"connectwork/src/types"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Gateway is satisfied by *mpesa.Client.
type Gateway interface {
	Initiator
	CheckTransactionStatus(ctx context.Context, checkoutRequestID string) (*mpesa.StatusResult, error)
}

// Archiver keeps a copy of raw callbacks outside the database.
type Archiver interface {
	Archive(ctx context.Context, checkoutRequestID string, payload []byte) (string, error)
}

type MpesaController struct {
	store      db.Store
	gateway    Gateway
	reconciler mpesa.Reconciler
	archive    Archiver
}

func NewMpesaController(store db.Store, gateway Gateway, reconciler mpesa.Reconciler, archive Archiver) *MpesaController {
	return &MpesaController{
		store:      store,
		gateway:    gateway,
		reconciler: reconciler,
		archive:    archive,
	}
}

func (c *MpesaController) StkPush(ctx context.Context, body *types.StkPushRequestBody) (*mpesa.PushResult, int, error) {
	res, err := c.gateway.InitiateStkPush(ctx, body.PhoneNumber, body.Amount, mpesa.PushOptions{
		AccountReference: body.AccountReference,
		TransactionDesc:  body.TransactionDesc,
		CallbackURL:      body.CallbackURL,
	})
	if err != nil {
		return res, types.HTTPStatus(err), err
	}
	return res, http.StatusOK, nil
}

func (c *MpesaController) Status(ctx context.Context, checkoutRequestID string) (*mpesa.StatusResult, int, error) {
	res, err := c.gateway.CheckTransactionStatus(ctx, checkoutRequestID)
	if err != nil {
		return res, types.HTTPStatus(err), err
	}
	return res, http.StatusOK, nil
}

func ack(status int, code, desc string) (types.CallbackAck, int) {
	return types.CallbackAck{ResultCode: code, ResultDesc: desc}, status
}

// HandleCallback records and reconciles one provider callback. The provider retries on
// anything but 200, so duplicates and unknown checkouts are still acknowledged.
func (c *MpesaController) HandleCallback(ctx context.Context, body []byte) (types.CallbackAck, int) {
	cb, err := mpesa.ParseCallback(body)
	if err != nil {
		log.Printf("[callback] rejected payload: %s\n", err.Error())
		entry := &models.CallbackLog{Payload: rawPayload(body)}
		msg := err.Error()
		entry.Error = &msg
		if logErr := c.store.CreateCallbackLog(ctx, entry); logErr != nil {
			log.Printf("[callback] could not log rejected payload: %s\n", logErr.Error())
		}
		return ack(http.StatusInternalServerError, "1", err.Error())
	}

	entry := &models.CallbackLog{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		Payload:           rawPayload(body),
	}
	logErr := c.store.CreateCallbackLog(ctx, entry)
	if logErr != nil {
		log.Printf("[callback] %s: could not log payload: %s\n", cb.CheckoutRequestID, logErr.Error())
	}
	if c.archive != nil {
		actx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if key, err := c.archive.Archive(actx, cb.CheckoutRequestID, body); err == nil {
			log.Printf("[callback] %s archived to %s\n", cb.CheckoutRequestID, key)
		}
		cancel()
	}

	outcome := cb.Outcome()
	_, err = c.reconciler.Reconcile(ctx, mpesa.Reconciliation{
		CheckoutRequestID: cb.CheckoutRequestID,
		Status:            outcome.PaymentStatus(),
		TransactionID:     cb.ReceiptNumber,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		Source:            "callback",
	})
	if logErr == nil {
		if markErr := c.store.MarkCallbackProcessed(ctx, entry.ID, err); markErr != nil {
			log.Printf("[callback] %s: %s\n", cb.CheckoutRequestID, markErr.Error())
		}
	}

	switch {
	case err == nil:
		log.Printf("[callback] %s: %s (%s)\n", cb.CheckoutRequestID, outcome, cb.ResultCode)
	case types.IsNotFound(err):
		log.Printf("[callback] %s: %s\n", cb.CheckoutRequestID, err.Error())
	case logErr == nil:
		// The raw payload is stored; the sweeper settles the payment later.
		log.Printf("[callback] %s: reconcile deferred: %s\n", cb.CheckoutRequestID, err.Error())
	default:
		return ack(http.StatusInternalServerError, "1", err.Error())
	}
	return ack(http.StatusOK, "0", "Success")
}

func rawPayload(body []byte) types.JSONB {
	var payload types.JSONB
	if err := json.Unmarshal(body, &payload); err != nil {
		return types.JSONB{"raw": string(body)}
	}
	return payload
}
