package mpesa

import (
	"connectwork/src/config"
	"connectwork/src/models"
	"connectwork/src/types"
	"context"
	"time"
)

const (
	oauthEndpoint    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushEndpoint  = "/mpesa/stkpush/v1/processrequest"
	stkQueryEndpoint = "/mpesa/stkpushquery/v1/query"

	transactionType = "CustomerPayBillOnline"
)

// TokenCache stores access tokens between calls. A miss is ("", false, nil).
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
}

// TransactionRecorder persists the pending transaction right after a push is accepted.
type TransactionRecorder interface {
	CreateMpesaTransaction(ctx context.Context, t *models.MpesaTransaction) error
}

// Reconciliation is a terminal provider outcome to be applied to the store.
type Reconciliation struct {
	CheckoutRequestID string
	Status            types.PaymentStatus
	TransactionID     string
	ResultCode        string
	ResultDesc        string
	Source            string
}

type ReconcileResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Applied bool   `json:"applied"`
}

type Reconciler interface {
	Reconcile(ctx context.Context, r Reconciliation) (*ReconcileResult, error)
}

type Options struct {
	Cache      TokenCache
	Recorder   TransactionRecorder
	Reconciler Reconciler
	Now        func() time.Time
}

type Client struct {
	cfg        config.Mpesa
	proxy      *Proxy
	cache      TokenCache
	recorder   TransactionRecorder
	reconciler Reconciler
	now        func() time.Time
}

func NewClient(cfg config.Mpesa, proxy *Proxy, opts Options) *Client {
	if proxy == nil {
		proxy = NewProxy(cfg.BaseURL(), nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = config.DefaultCountryCode
	}
	return &Client{
		cfg:        cfg,
		proxy:      proxy,
		cache:      opts.Cache,
		recorder:   opts.Recorder,
		reconciler: opts.Reconciler,
		now:        opts.Now,
	}
}

func (c *Client) Config() config.Mpesa {
	return c.cfg
}

func (c *Client) checkCredentials() error {
	switch {
	case c.cfg.ConsumerKey == "":
		return &types.ConfigError{Field: "MPESA_CONSUMER_KEY"}
	case c.cfg.ConsumerSecret == "":
		return &types.ConfigError{Field: "MPESA_CONSUMER_SECRET"}
	}
	return nil
}

func (c *Client) checkSigning() error {
	if err := c.checkCredentials(); err != nil {
		return err
	}
	switch {
	case c.cfg.PassKey == "":
		return &types.ConfigError{Field: "MPESA_PASSKEY"}
	case c.cfg.ShortCode == "":
		return &types.ConfigError{Field: "MPESA_SHORTCODE"}
	}
	return nil
}

// sign returns a fresh timestamp and the password derived from it.
func (c *Client) sign() (string, string) {
	ts := Timestamp(c.now())
	return ts, Password(c.cfg.ShortCode, c.cfg.PassKey, ts)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
