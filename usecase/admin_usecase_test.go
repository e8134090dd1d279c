package usecase

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptocagua/model"
	"cryptocagua/pkg/sheets"
)

func TestVerifyPinWrongLeavesSessionUnset(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ok, err := e.admin.VerifyPin(ctx, "0000")
	require.NoError(t, err)
	assert.False(t, ok)

	isAdmin, err := e.admin.IsAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestVerifyPinWrongKeepsOpenSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t)

	ok, err := e.admin.VerifyPin(ctx, "0000")
	require.NoError(t, err)
	assert.False(t, ok)

	isAdmin, err := e.admin.IsAdmin(ctx)
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestLoginLogout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ok, err := e.admin.VerifyPin(ctx, " 1234 ")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, e.admin.Logout(ctx))
	isAdmin, err := e.admin.IsAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestEmptyPinNeverMatches(t *testing.T) {
	e := newEnv(t)
	admin := NewAdminUsecase(e.settings, e.remote, "", true, quietLogger())
	ok, err := admin.VerifyPin(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettingsRequireAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.admin.Settings(ctx)
	assert.ErrorIs(t, err, ErrAdminRequired)
	assert.ErrorIs(t, e.admin.UpdateSettings(ctx, model.Settings{}), ErrAdminRequired)
	_, err = e.admin.TestConnection(ctx)
	assert.ErrorIs(t, err, ErrAdminRequired)
	_, err = e.admin.BuildMagicLink(ctx, "http://localhost:8080")
	assert.ErrorIs(t, err, ErrAdminRequired)
}

func TestUpdateSettings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t)

	err := e.admin.UpdateSettings(ctx, model.Settings{SheetURL: "https://example.com/exec"})
	assert.ErrorIs(t, err, sheets.ErrInvalidURL)

	want := model.Settings{
		SheetURL:   "https://script.google.com/macros/s/AKfy/exec",
		AdminEmail: "admin@example.com",
		AdminPhone: "+58 412 1234567",
	}
	require.NoError(t, e.admin.UpdateSettings(ctx, want))

	got, err := e.admin.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.SheetURL, got.SheetURL)
	assert.Equal(t, "584121234567", got.AdminPhone)

	require.NoError(t, e.admin.UpdateSettings(ctx, model.Settings{}))
	got, err = e.admin.Settings(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.SheetURL)
}

func TestTestConnection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t)

	d, err := e.admin.TestConnection(ctx)
	require.NoError(t, err)
	assert.True(t, d.OK())

	e.remote.err = sheets.ErrPermissionDenied
	d, err = e.admin.TestConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, sheets.DiagnosisPermissionDenied, d.Kind)
}

func TestMagicLinkRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	endpoint := "https://script.google.com/macros/s/AKfy/exec"

	ok, err := e.admin.ApplyMagicLink(ctx, EncodeSetupCode(endpoint))
	require.NoError(t, err)
	assert.True(t, ok)

	url, err := e.settings.SheetURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, endpoint, url)

	e.login(t)
	link, err := e.admin.BuildMagicLink(ctx, "http://localhost:8080/?tab=admin")
	require.NoError(t, err)
	assert.Contains(t, link, "tab=admin")
	assert.Contains(t, link, "setup=")
}

func TestBuildMagicLinkWithoutEndpoint(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	_, err := e.admin.BuildMagicLink(context.Background(), "http://localhost:8080")
	assert.ErrorIs(t, err, sheets.ErrNotConfigured)
}

func TestDecodeSetupCode(t *testing.T) {
	endpoint := "https://script.google.com/macros/s/a-b_c/exec"
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		got, ok := DecodeSetupCode(enc.EncodeToString([]byte(endpoint)))
		assert.True(t, ok)
		assert.Equal(t, endpoint, got)
	}

	_, ok := DecodeSetupCode("")
	assert.False(t, ok)
	_, ok = DecodeSetupCode("%%%")
	assert.False(t, ok)
	_, ok = DecodeSetupCode(base64.StdEncoding.EncodeToString([]byte("ftp://x")))
	assert.False(t, ok)
}

func TestApplyMagicLinkRejectsGarbage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ok, err := e.admin.ApplyMagicLink(ctx, "not-base64!")
	require.NoError(t, err)
	assert.False(t, ok)

	url, err := e.settings.SheetURL(ctx)
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestClientSessionsAreIndependent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r, err := e.offers.Create(ctx, aliceDraft())
	require.NoError(t, err)

	token, ok, err := e.admin.Login(WithSession(ctx, ""), "0000")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, token)

	token, ok, err = e.admin.Login(WithSession(ctx, ""), "1234")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	clientA := WithSession(ctx, token)
	clientB := WithSession(ctx, "")

	isAdmin, err := e.admin.IsAdmin(clientA)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = e.admin.IsAdmin(clientB)
	require.NoError(t, err)
	assert.False(t, isAdmin)
	isAdmin, err = e.admin.IsAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, isAdmin, "client login must not open the node-wide session")

	pending, err := e.offers.List(clientB, Query{View: ViewPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
	_, err = e.offers.Approve(clientB, r.Offer.ID)
	assert.ErrorIs(t, err, ErrAdminRequired)
	_, err = e.admin.Settings(clientB)
	assert.ErrorIs(t, err, ErrAdminRequired)

	pending, err = e.offers.List(clientA, Query{View: ViewPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, e.admin.Logout(clientA))
	isAdmin, err = e.admin.IsAdmin(clientA)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestNodeSessionDoesNotLeakToClients(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.login(t)

	isAdmin, err := e.admin.IsAdmin(WithSession(ctx, ""))
	require.NoError(t, err)
	assert.False(t, isAdmin)
	isAdmin, err = e.admin.IsAdmin(WithSession(ctx, "forged"))
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestClientSessionExpires(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	e.admin.now = func() time.Time { return now }

	token, ok, err := e.admin.Login(WithSession(ctx, ""), "1234")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(AdminSessionTTL + time.Minute)
	isAdmin, err := e.admin.IsAdmin(WithSession(ctx, token))
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestApplyMagicLinkChecksHost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, c := range []context.Context{ctx, WithSession(ctx, "")} {
		ok, err := e.admin.ApplyMagicLink(c, EncodeSetupCode("http://attacker.example/collect"))
		assert.ErrorIs(t, err, sheets.ErrInvalidURL)
		assert.False(t, ok)
	}

	url, err := e.settings.SheetURL(ctx)
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestApplyMagicLinkFromClient(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	first := "https://script.google.com/macros/s/FIRST/exec"
	second := "https://script.google.com/macros/s/SECOND/exec"
	anonymous := WithSession(ctx, "")

	ok, err := e.admin.ApplyMagicLink(anonymous, EncodeSetupCode(first))
	require.NoError(t, err)
	assert.True(t, ok, "an unconfigured node accepts its first endpoint")

	ok, err = e.admin.ApplyMagicLink(anonymous, EncodeSetupCode(second))
	assert.ErrorIs(t, err, ErrAdminRequired)
	assert.False(t, ok)
	url, err := e.settings.SheetURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, url)

	token, loggedIn, err := e.admin.Login(anonymous, "1234")
	require.NoError(t, err)
	require.True(t, loggedIn)
	ok, err = e.admin.ApplyMagicLink(WithSession(ctx, token), EncodeSetupCode(second))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.admin.ApplyMagicLink(ctx, EncodeSetupCode(first))
	require.NoError(t, err)
	assert.True(t, ok, "the command line may always reconfigure")
	url, err = e.settings.SheetURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, url)
}
