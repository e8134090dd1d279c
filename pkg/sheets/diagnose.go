package sheets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"cryptocagua/model"
)

// DiagnosisKind is the outcome of a connectivity test.
type DiagnosisKind string

const (
	DiagnosisSuccess          DiagnosisKind = "success"
	DiagnosisMisconfiguredURL DiagnosisKind = "misconfigured_url"
	DiagnosisPermissionDenied DiagnosisKind = "permission_denied"
	DiagnosisNetworkError     DiagnosisKind = "network_error"
)

type Diagnosis struct {
	Kind    DiagnosisKind `json:"kind"`
	Message string        `json:"message"`
	Err     error         `json:"-"`
}

func (d Diagnosis) OK() bool { return d.Kind == DiagnosisSuccess }

// Diagnose maps an adapter error onto one actionable diagnosis.
func Diagnose(err error) Diagnosis {
	var remote *RemoteError
	var status *StatusError
	switch {
	case err == nil:
		return Diagnosis{Kind: DiagnosisSuccess, Message: "connection OK: the sheet accepted the test row"}
	case errors.Is(err, ErrNotConfigured):
		return Diagnosis{Kind: DiagnosisMisconfiguredURL, Message: "no sheet endpoint URL is configured", Err: err}
	case errors.Is(err, ErrInvalidURL):
		return Diagnosis{Kind: DiagnosisMisconfiguredURL, Message: "the endpoint URL is not a valid web app URL", Err: err}
	case errors.Is(err, ErrPermissionDenied):
		return Diagnosis{Kind: DiagnosisPermissionDenied, Message: "the script refused access: deploy it with access set to \"Anyone\"", Err: err}
	case errors.Is(err, ErrNetwork):
		return Diagnosis{Kind: DiagnosisNetworkError, Message: "could not reach the endpoint: check the network and try again", Err: err}
	case errors.As(err, &remote):
		return Diagnosis{Kind: DiagnosisMisconfiguredURL, Message: "the script answered with an error: " + remote.Message, Err: err}
	case errors.As(err, &status):
		return Diagnosis{Kind: DiagnosisMisconfiguredURL, Message: "the endpoint answered HTTP " + httpStatusText(status.Code) + ": check the deployment URL", Err: err}
	case errors.Is(err, ErrHTMLResponse):
		return Diagnosis{Kind: DiagnosisMisconfiguredURL, Message: "the endpoint returned a web page: use the /exec URL of a web app deployment", Err: err}
	default:
		return Diagnosis{Kind: DiagnosisMisconfiguredURL, Message: "unexpected answer from the endpoint", Err: err}
	}
}

// Ping saves a throwaway row and then asks the script to delete it.
func (c *Client) Ping(ctx context.Context) Diagnosis {
	endpoint, err := c.endpoint.SheetURL(ctx)
	if err != nil {
		return Diagnose(err)
	}
	if strings.TrimSpace(endpoint) == "" {
		return Diagnose(ErrNotConfigured)
	}
	if err := ValidateEndpointURL(endpoint, false); err != nil {
		return Diagnose(err)
	}

	testRow := model.Offer{
		ID:     "TEST-" + uuid.NewString(),
		Type:   "TEST",
		Title:  "Test",
		Status: model.StatusPending,
	}
	if _, err := c.Save(ctx, testRow); err != nil {
		return Diagnose(err)
	}
	if _, err := c.Delete(ctx, testRow.ID); err != nil {
		c.logger.Warn("failed to remove connectivity test row", "id", testRow.ID, "error", err)
	}
	return Diagnose(nil)
}

// ValidateEndpointURL checks that raw is an absolute http(s) URL. With
// requireGoogle it must also point at script.google.com.
func ValidateEndpointURL(raw string, requireGoogle bool) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.Wrap(ErrInvalidURL, "empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(ErrInvalidURL, err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrap(ErrInvalidURL, "url must be absolute http(s)")
	}
	if requireGoogle && !strings.EqualFold(u.Hostname(), "script.google.com") {
		return errors.Wrap(ErrInvalidURL, "not a script.google.com url")
	}
	return nil
}

func httpStatusText(code int) string {
	return strings.TrimSpace(fmt.Sprintf("%d %s", code, http.StatusText(code)))
}
