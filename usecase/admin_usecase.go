package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"cryptocagua/dao"
	"cryptocagua/model"
	"cryptocagua/pkg/sheets"
)

// AdminUsecase is the PIN gate in front of moderation and configuration.
// It is a single shared PIN, not an account system.
type AdminUsecase struct {
	settings          *dao.SettingsRepository
	remote            RemoteStore
	pin               string
	requireGoogleHost bool
	logger            *slog.Logger

	now      func() time.Time
	newToken func() string
}

func NewAdminUsecase(settings *dao.SettingsRepository, remote RemoteStore, pin string, requireGoogleHost bool, logger *slog.Logger) *AdminUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminUsecase{
		settings:          settings,
		remote:            remote,
		pin:               pin,
		requireGoogleHost: requireGoogleHost,
		logger:            logger,
		now:               time.Now,
		newToken:          uuid.NewString,
	}
}

// VerifyPin opens the node-wide admin session used by the command line when
// candidate matches the PIN. A wrong PIN leaves the session as it was.
func (u *AdminUsecase) VerifyPin(ctx context.Context, candidate string) (bool, error) {
	if !u.pinMatches(candidate) {
		return false, nil
	}
	if err := u.settings.SetAdminSession(ctx, true); err != nil {
		return false, err
	}
	return true, nil
}

// Login issues a client session token when candidate matches the PIN. The
// token only grants admin to requests that present it.
func (u *AdminUsecase) Login(ctx context.Context, candidate string) (string, bool, error) {
	if !u.pinMatches(candidate) {
		return "", false, nil
	}
	token := u.newToken()
	if err := u.settings.SaveAdminToken(ctx, token, u.now().Add(AdminSessionTTL)); err != nil {
		return "", false, err
	}
	u.logger.Info("admin session opened")
	return token, true, nil
}

func (u *AdminUsecase) pinMatches(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	return u.pin != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(u.pin)) == 1
}

// Logout ends the caller's session: the client token for remote requests,
// the node-wide session otherwise.
func (u *AdminUsecase) Logout(ctx context.Context) error {
	if token, remote := SessionToken(ctx); remote {
		return u.settings.DeleteAdminToken(ctx, token)
	}
	return u.settings.SetAdminSession(ctx, false)
}

func (u *AdminUsecase) IsAdmin(ctx context.Context) (bool, error) {
	return isAdmin(ctx, u.settings, u.now())
}

func (u *AdminUsecase) Settings(ctx context.Context) (model.Settings, error) {
	if err := u.requireAdmin(ctx); err != nil {
		return model.Settings{}, err
	}
	return u.settings.Settings(ctx)
}

// UpdateSettings saves all three fields. An empty URL clears the stored one.
func (u *AdminUsecase) UpdateSettings(ctx context.Context, s model.Settings) error {
	if err := u.requireAdmin(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(s.SheetURL) != "" {
		if err := sheets.ValidateEndpointURL(s.SheetURL, u.requireGoogleHost); err != nil {
			return err
		}
	}
	if err := u.settings.SaveSheetURL(ctx, s.SheetURL); err != nil {
		return err
	}
	if err := u.settings.SaveAdminEmail(ctx, s.AdminEmail); err != nil {
		return err
	}
	return u.settings.SaveAdminPhone(ctx, s.AdminPhone)
}

func (u *AdminUsecase) TestConnection(ctx context.Context) (sheets.Diagnosis, error) {
	if err := u.requireAdmin(ctx); err != nil {
		return sheets.Diagnosis{}, err
	}
	d := u.remote.Ping(ctx)
	u.logger.Info("connection test", "kind", d.Kind, "error", d.Err)
	return d, nil
}

// ApplyMagicLink decodes a base64 setup code and stores it as the endpoint
// URL. It reports false for codes that do not decode to an http(s) URL.
// Remote clients may only use it to configure a node that has no endpoint
// yet; replacing an existing one requires an admin session.
func (u *AdminUsecase) ApplyMagicLink(ctx context.Context, code string) (bool, error) {
	decoded, ok := DecodeSetupCode(code)
	if !ok {
		return false, nil
	}
	if err := sheets.ValidateEndpointURL(decoded, u.requireGoogleHost); err != nil {
		return false, err
	}
	if _, remote := SessionToken(ctx); remote {
		current, err := u.settings.SheetURL(ctx)
		if err != nil {
			return false, err
		}
		if current != "" {
			if err := u.requireAdmin(ctx); err != nil {
				return false, err
			}
		}
	}
	if err := u.settings.SaveSheetURL(ctx, decoded); err != nil {
		return false, err
	}
	u.logger.Info("endpoint configured from setup link")
	return true, nil
}

// BuildMagicLink returns baseURL with the current endpoint attached as the
// setup parameter.
func (u *AdminUsecase) BuildMagicLink(ctx context.Context, baseURL string) (string, error) {
	if err := u.requireAdmin(ctx); err != nil {
		return "", err
	}
	endpoint, err := u.settings.SheetURL(ctx)
	if err != nil {
		return "", err
	}
	if endpoint == "" {
		return "", sheets.ErrNotConfigured
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	q := base.Query()
	q.Set("setup", EncodeSetupCode(endpoint))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func EncodeSetupCode(endpoint string) string {
	return base64.StdEncoding.EncodeToString([]byte(endpoint))
}

// DecodeSetupCode accepts standard or URL-safe base64, padded or not.
func DecodeSetupCode(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	encodings := []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		b, err := enc.DecodeString(code)
		if err != nil {
			continue
		}
		s := strings.TrimSpace(string(b))
		if strings.HasPrefix(s, "http") {
			return s, true
		}
		return "", false
	}
	return "", false
}

func (u *AdminUsecase) requireAdmin(ctx context.Context) error {
	return requireAdmin(ctx, u.settings, u.now())
}
