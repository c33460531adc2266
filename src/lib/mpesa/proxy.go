package mpesa

import (
	"bytes"
	"connectwork/src/types"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Response is what every provider call resolves to. Failures are reported here
// rather than as a Go error so callers can hand the message straight to the user.
type Response struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message"`
	StatusCode int                  `json:"-"`
	Data       json.RawMessage      `json:"data,omitempty"`
	Err        *types.UpstreamError `json:"-"`
}

func (r *Response) ErrorKind() types.ErrorKind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

// Proxy is the single path from this service to the provider's HTTP API.
type Proxy struct {
	baseURL string
	client  *http.Client
}

func NewProxy(baseURL string, client *http.Client) *Proxy {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Proxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

var authKeywords = []string{
	"unauthorized",
	"invalid access token",
	"authentication",
	"invalid credentials",
	"access token expired",
}

func (p *Proxy) Call(ctx context.Context, endpoint, method string, body any, headers map[string]string) *Response {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return failure(&types.UpstreamError{Kind: types.ErrorKindUpstream, Message: "could not encode request body", Err: err}, nil)
		}
		payload = b
	}

	url := p.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return failure(&types.UpstreamError{Kind: types.ErrorKindUpstream, Message: "could not build request", Err: err}, nil)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	log.Printf("[mpesa] --> %s %s headers=%v body=%s\n", method, endpoint, redactHeaders(headers), redactBody(payload))
	start := time.Now()
	res, err := p.client.Do(req)
	if err != nil {
		log.Printf("[mpesa] <-- %s %s network error after %s: %s\n", method, endpoint, time.Since(start), err.Error())
		return failure(&types.UpstreamError{
			Kind:    types.ErrorKindNetwork,
			Message: "Network error: could not reach M-Pesa. Check your connection and try again.",
			Err:     err,
		}, nil)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return failure(&types.UpstreamError{Kind: types.ErrorKindNetwork, StatusCode: res.StatusCode, Message: "could not read M-Pesa response", Err: err}, nil)
	}
	log.Printf("[mpesa] <-- %s %s %d in %s body=%s\n", method, endpoint, res.StatusCode, time.Since(start), redactBody(raw))

	data := asJSON(raw)
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return &Response{
			Success:    true,
			Message:    providerMessage(data, "OK"),
			StatusCode: res.StatusCode,
			Data:       data,
		}
	}

	msg := providerMessage(data, http.StatusText(res.StatusCode))
	return failure(&types.UpstreamError{
		Kind:       classify(res.StatusCode, msg),
		StatusCode: res.StatusCode,
		Message:    msg,
	}, data)
}

func failure(err *types.UpstreamError, data json.RawMessage) *Response {
	msg := err.Message
	if err.Kind == types.ErrorKindAuth {
		msg = "Authentication with M-Pesa failed: " + err.Message
	}
	return &Response{
		Success:    false,
		Message:    msg,
		StatusCode: err.StatusCode,
		Data:       data,
		Err:        err,
	}
}

func classify(status int, msg string) types.ErrorKind {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return types.ErrorKindAuth
	}
	lower := strings.ToLower(msg)
	for _, kw := range authKeywords {
		if strings.Contains(lower, kw) {
			return types.ErrorKindAuth
		}
	}
	return types.ErrorKindUpstream
}

func providerMessage(data json.RawMessage, fallback string) string {
	for _, path := range []string{"errorMessage", "ResponseDescription", "error_description", "error.message", "message"} {
		if v := gjson.GetBytes(data, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return fallback
}

func asJSON(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if gjson.ValidBytes(trimmed) {
		return json.RawMessage(trimmed)
	}
	b, _ := json.Marshal(string(trimmed))
	return b
}

var secretFields = map[string]bool{
	"password":           true,
	"passkey":            true,
	"consumerkey":        true,
	"consumersecret":     true,
	"accesstoken":        true,
	"securitycredential": true,
}

var phoneFields = map[string]bool{
	"phonenumber": true,
	"partya":      true,
	"msisdn":      true,
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}

func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if strings.EqualFold(k, "Authorization") {
			scheme, _, _ := strings.Cut(v, " ")
			out[k] = scheme + " ****"
			continue
		}
		out[k] = v
	}
	return out
}

func redactBody(payload []byte) string {
	if len(payload) == 0 {
		return "<empty>"
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Sprintf("<%d bytes>", len(payload))
	}
	b, err := json.Marshal(redactValue(v))
	if err != nil {
		return fmt.Sprintf("<%d bytes>", len(payload))
	}
	return string(b)
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			key := normalizeKey(k)
			switch {
			case secretFields[key]:
				t[k] = "****"
			case phoneFields[key]:
				t[k] = maskPhone(fmt.Sprint(inner))
			default:
				t[k] = redactValue(inner)
			}
		}
		return t
	case []any:
		for i := range t {
			t[i] = redactValue(t[i])
		}
		return t
	}
	return v
}
