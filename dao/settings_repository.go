package dao

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"cryptocagua/model"
)

const (
	sheetURLKey     = KeyPrefix + "sheet_url"
	adminEmailKey   = KeyPrefix + "admin_email"
	adminPhoneKey   = KeyPrefix + "admin_phone"
	adminSessionKey = KeyPrefix + "admin_session"
	adminTokenKey   = KeyPrefix + "admin_token."
	profileKey      = KeyPrefix + "profile"
)

// SettingsRepository holds the endpoint URL, admin contact details, the admin
// session flag, issued admin tokens and the poster profile.
type SettingsRepository struct {
	store      Store
	defaultURL string
}

// NewSettingsRepository uses defaultURL when no endpoint URL has been saved.
func NewSettingsRepository(store Store, defaultURL string) *SettingsRepository {
	return &SettingsRepository{store: store, defaultURL: defaultURL}
}

func (r *SettingsRepository) get(ctx context.Context, key string) (string, error) {
	v, _, err := r.store.Get(ctx, key)
	return v, err
}

// SheetURL returns the effective endpoint URL; empty means unconfigured.
func (r *SettingsRepository) SheetURL(ctx context.Context) (string, error) {
	v, err := r.get(ctx, sheetURLKey)
	if err != nil {
		return r.defaultURL, err
	}
	if v == "" {
		return r.defaultURL, nil
	}
	return v, nil
}

func (r *SettingsRepository) SaveSheetURL(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return r.store.Delete(ctx, sheetURLKey)
	}
	return r.store.Set(ctx, sheetURLKey, url)
}

func (r *SettingsRepository) AdminEmail(ctx context.Context) (string, error) {
	return r.get(ctx, adminEmailKey)
}

func (r *SettingsRepository) SaveAdminEmail(ctx context.Context, email string) error {
	return r.store.Set(ctx, adminEmailKey, strings.TrimSpace(email))
}

func (r *SettingsRepository) AdminPhone(ctx context.Context) (string, error) {
	return r.get(ctx, adminPhoneKey)
}

// SaveAdminPhone strips '+' and whitespace before storing.
func (r *SettingsRepository) SaveAdminPhone(ctx context.Context, phone string) error {
	return r.store.Set(ctx, adminPhoneKey, NormalizePhone(phone))
}

func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r == '+' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, phone)
}

func (r *SettingsRepository) Settings(ctx context.Context) (model.Settings, error) {
	var s model.Settings
	var err error
	if s.SheetURL, err = r.SheetURL(ctx); err != nil {
		return s, err
	}
	if s.AdminEmail, err = r.AdminEmail(ctx); err != nil {
		return s, err
	}
	s.AdminPhone, err = r.AdminPhone(ctx)
	return s, err
}

func (r *SettingsRepository) SetAdminSession(ctx context.Context, valid bool) error {
	if valid {
		return r.store.Set(ctx, adminSessionKey, "true")
	}
	return r.store.Delete(ctx, adminSessionKey)
}

// IsAdmin reports the node-wide session used by the command line.
func (r *SettingsRepository) IsAdmin(ctx context.Context) (bool, error) {
	v, err := r.get(ctx, adminSessionKey)
	return v == "true", err
}

// SaveAdminToken records a client session token valid until expires.
func (r *SettingsRepository) SaveAdminToken(ctx context.Context, token string, expires time.Time) error {
	return r.store.Set(ctx, adminTokenKey+token, expires.UTC().Format(time.RFC3339))
}

// AdminTokenValid reports whether token was issued and has not expired.
// Expired or unreadable entries are removed.
func (r *SettingsRepository) AdminTokenValid(ctx context.Context, token string, now time.Time) (bool, error) {
	if token == "" {
		return false, nil
	}
	v, err := r.get(ctx, adminTokenKey+token)
	if err != nil || v == "" {
		return false, err
	}
	expires, err := time.Parse(time.RFC3339, v)
	if err != nil || !now.Before(expires) {
		return false, r.store.Delete(ctx, adminTokenKey+token)
	}
	return true, nil
}

func (r *SettingsRepository) DeleteAdminToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return r.store.Delete(ctx, adminTokenKey+token)
}

func (r *SettingsRepository) SaveProfile(ctx context.Context, p model.Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, profileKey, string(b))
}

// Profile returns nil when none was saved or the stored value is unreadable.
func (r *SettingsRepository) Profile(ctx context.Context) (*model.Profile, error) {
	v, err := r.get(ctx, profileKey)
	if err != nil || v == "" {
		return nil, err
	}
	var p model.Profile
	if err := json.Unmarshal([]byte(v), &p); err != nil {
		return nil, nil
	}
	return &p, nil
}
