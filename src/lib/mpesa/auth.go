package mpesa

import (
	"connectwork/src/types"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Tokens are dropped from the cache this long before the provider expires them.
const tokenExpiryMargin = 60 * time.Second

func (c *Client) tokenCacheKey() string {
	return fmt.Sprintf("mpesa:token:%s:%s", c.cfg.Environment, c.cfg.ShortCode)
}

// GetAuthToken exchanges the consumer key and secret for a short-lived access token.
func (c *Client) GetAuthToken(ctx context.Context) (string, error) {
	if err := c.checkCredentials(); err != nil {
		return "", err
	}

	key := c.tokenCacheKey()
	if c.cache != nil {
		token, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			log.Printf("[mpesa] token cache read failed: %s\n", err.Error())
		} else if ok {
			return token, nil
		}
	}

	res := c.proxy.Call(ctx, oauthEndpoint, http.MethodGet, nil, map[string]string{
		"Authorization": "Basic " + basicCredentials(c.cfg.ConsumerKey, c.cfg.ConsumerSecret),
	})
	if !res.Success {
		return "", res.Err
	}

	token := gjson.GetBytes(res.Data, "access_token").String()
	if token == "" {
		return "", &types.UpstreamError{
			Kind:       types.ErrorKindUpstream,
			StatusCode: res.StatusCode,
			Message:    "M-Pesa did not return an access token",
		}
	}

	if c.cache != nil {
		expiresIn := time.Duration(gjson.GetBytes(res.Data, "expires_in").Int()) * time.Second
		if ttl := expiresIn - tokenExpiryMargin; ttl > 0 {
			if err := c.cache.Set(ctx, key, token, ttl); err != nil {
				log.Printf("[mpesa] token cache write failed: %s\n", err.Error())
			}
		}
	}
	return token, nil
}

func basicCredentials(key, secret string) string {
	raw := key + ":" + secret
	if !utf8.ValidString(raw) {
		log.Println("[mpesa] consumer credentials are not valid UTF-8, encoding raw bytes")
	}
	return base64.StdEncoding.EncodeToString([]byte(raw))
}
