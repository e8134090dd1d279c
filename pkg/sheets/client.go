package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"cryptocagua/model"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// EndpointSource resolves the endpoint URL on every call, so a URL saved by
// the admin takes effect without a restart.
type EndpointSource interface {
	SheetURL(ctx context.Context) (string, error)
}

// StaticEndpoint is an EndpointSource with a fixed URL.
type StaticEndpoint string

func (s StaticEndpoint) SheetURL(context.Context) (string, error) { return string(s), nil }

// Ack is the acknowledgement of a write. Confirmed is true only when the
// script answered {"success": true}; a bare 2xx says nothing about whether
// the row was stored.
type Ack struct {
	StatusCode int  `json:"status_code"`
	Confirmed  bool `json:"confirmed"`
}

// Client talks to the Apps Script web app that fronts the offers sheet. It
// never retries: a retried save would append a duplicate row.
type Client struct {
	client   *http.Client
	endpoint EndpointSource
	logger   *slog.Logger
}

func NewClient(endpoint EndpointSource, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		logger:   logger,
	}
}

// WithHTTPClient replaces the underlying http client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.client = h
	return c
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type response struct {
	status      int
	contentType string
	body        []byte
}

// Read fetches every row.
func (c *Client) Read(ctx context.Context) ([]model.Offer, error) {
	resp, err := c.post(ctx, url.Values{"action": {ActionRead}})
	if err != nil {
		return nil, errors.Wrap(err, "read offers")
	}
	env, err := resp.envelope(true)
	if err != nil {
		return nil, errors.Wrap(err, "read offers")
	}
	if env.Success == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errors.Wrap(ErrMalformed, "read offers: missing data")
	}
	offers, err := DecodeOffers(env.Data)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "read offers: %v", err)
	}
	return offers, nil
}

func (c *Client) Save(ctx context.Context, o model.Offer) (Ack, error) {
	ack, err := c.write(ctx, EncodeOffer(ActionSave, o))
	return ack, errors.Wrapf(err, "save offer %s", o.ID)
}

func (c *Client) UpdateStatus(ctx context.Context, id string, status model.OfferStatus) (Ack, error) {
	v := url.Values{}
	v.Set("action", ActionUpdateStatus)
	v.Set("id", id)
	v.Set("status", string(status))
	ack, err := c.write(ctx, v)
	return ack, errors.Wrapf(err, "update status of %s", id)
}

func (c *Client) Delete(ctx context.Context, id string) (Ack, error) {
	v := url.Values{}
	v.Set("action", ActionDelete)
	v.Set("id", id)
	ack, err := c.write(ctx, v)
	return ack, errors.Wrapf(err, "delete offer %s", id)
}

func (c *Client) write(ctx context.Context, form url.Values) (Ack, error) {
	resp, err := c.post(ctx, form)
	if err != nil {
		return Ack{}, err
	}
	ack := Ack{StatusCode: resp.status}
	env, err := resp.envelope(false)
	if err != nil {
		return ack, err
	}
	ack.Confirmed = env != nil && env.Success != nil && *env.Success
	return ack, nil
}

func (c *Client) post(ctx context.Context, form url.Values) (*response, error) {
	endpoint, err := c.endpoint.SheetURL(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(endpoint) == "" {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidURL, err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("sheet request failed", "action", form.Get("action"), "error", err)
		return nil, &networkError{cause: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &networkError{cause: err}
	}
	c.logger.Debug("sheet request",
		"action", form.Get("action"),
		"status", res.StatusCode,
		"elapsed", time.Since(start),
	)
	return &response{
		status:      res.StatusCode,
		contentType: res.Header.Get("Content-Type"),
		body:        body,
	}, nil
}

// envelope classifies the response. With strict=false a 2xx body that is not
// JSON yields a nil envelope and no error.
func (r *response) envelope(strict bool) (*envelope, error) {
	if r.status == http.StatusUnauthorized || r.status == http.StatusForbidden {
		return nil, errors.Wrap(ErrPermissionDenied, (&StatusError{Code: r.status}).Error())
	}
	if r.isHTML() {
		if looksLikePermissionPage(r.body) {
			return nil, ErrPermissionDenied
		}
		return nil, ErrHTMLResponse
	}
	if r.status < 200 || r.status > 299 {
		return nil, &StatusError{Code: r.status}
	}

	var env envelope
	if err := json.Unmarshal(r.body, &env); err != nil {
		if strict {
			return nil, errors.Wrap(ErrMalformed, err.Error())
		}
		return nil, nil
	}
	if env.Error != "" {
		return &env, &RemoteError{Message: env.Error}
	}
	if env.Success != nil && !*env.Success {
		return &env, &RemoteError{Message: env.Message}
	}
	return &env, nil
}

func (r *response) isHTML() bool {
	if strings.Contains(strings.ToLower(r.contentType), "text/html") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(r.body), []byte("<"))
}

// permissionMarkers only match the access-request page and the ServiceLogin
// redirect. Ordinary Google error pages also carry sign-in links in their
// header, so those words alone do not count.
var permissionMarkers = []string{
	"you need access",
	"necesitas acceso",
	"request access",
	"solicitar acceso",
	"you do not have permission",
	"no tienes permiso",
	"servicelogin",
}

func looksLikePermissionPage(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, m := range permissionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

type networkError struct {
	cause error
}

func (e *networkError) Error() string { return ErrNetwork.Error() + ": " + e.cause.Error() }

func (e *networkError) Is(target error) bool { return target == ErrNetwork }

func (e *networkError) Unwrap() error { return e.cause }
