package inbound_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/otpguard/internal/pkg/clock"
	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/goerror"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/jwt"
	"github.com/shandysiswandi/otpguard/internal/pkg/router"
	"github.com/shandysiswandi/otpguard/internal/pkg/uid"
	"github.com/shandysiswandi/otpguard/internal/twofactor/entity"
	"github.com/shandysiswandi/otpguard/internal/twofactor/inbound"
	"github.com/shandysiswandi/otpguard/internal/twofactor/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceKey = "login-service-key"

var now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fakeUC struct {
	err error

	gotAccount int64
	gotCode    string
	gotToken   string
	gotAdmin   int64
	caller     *jwt.Claims
}

func (f *fakeUC) Status(ctx context.Context) (*usecase.StatusOutput, error) {
	f.caller = jwt.GetAuth(ctx)
	return &usecase.StatusOutput{State: entity.OTPStateEnabled, EnabledAt: &now, RecoveryCodesLeft: 9, TrustEpoch: 3}, f.err
}

func (f *fakeUC) BeginEnrollment(context.Context) (*usecase.BeginEnrollmentOutput, error) {
	return &usecase.BeginEnrollmentOutput{Outcome: entity.OutcomeEnrollmentPending, Secret: "JBSWY3DPEHPK3PXP", URI: "otpauth://totp/x"}, f.err
}

func (f *fakeUC) ConfirmEnrollment(_ context.Context, in usecase.ConfirmEnrollmentInput) (*usecase.ConfirmEnrollmentOutput, error) {
	f.gotCode = in.Code
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.ConfirmEnrollmentOutput{Outcome: entity.OutcomeEnrollmentConfirmed, RecoveryCodes: []string{"AAAA-BBBB-CCCC", "DDDD-EEEE-FFFF"}}, nil
}

func (f *fakeUC) Disable(context.Context) (*usecase.DisableOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.DisableOutput{Outcome: entity.OutcomeDisabled}, nil
}

func (f *fakeUC) Reset(context.Context) (*usecase.ResetOutput, error) {
	return &usecase.ResetOutput{Outcome: entity.OutcomeReset, TrustEpoch: 4}, f.err
}

func (f *fakeUC) AdminReset(_ context.Context, in usecase.AdminResetInput) (*usecase.ResetOutput, error) {
	f.gotAdmin = in.AccountID
	return &usecase.ResetOutput{Outcome: entity.OutcomeReset, TrustEpoch: 1}, f.err
}

func (f *fakeUC) RegenerateRecoveryCodes(context.Context) (*usecase.RegenerateRecoveryCodesOutput, error) {
	return &usecase.RegenerateRecoveryCodesOutput{Outcome: entity.OutcomeRecoveryCodesIssued, Codes: []string{"AAAA-BBBB-CCCC", "DDDD-EEEE-FFFF"}}, f.err
}

func (f *fakeUC) RefreshCredential(_ context.Context, in usecase.RefreshCredentialInput) (*usecase.RefreshCredentialOutput, error) {
	f.gotCode = in.Code
	return &usecase.RefreshCredentialOutput{Outcome: entity.OutcomeCredentialRefreshed, RefreshedAt: now, Method: entity.LoginMethodTOTP}, f.err
}

func (f *fakeUC) TrustDevice(context.Context) (*usecase.TrustDeviceOutput, error) {
	return &usecase.TrustDeviceOutput{Outcome: entity.OutcomeDeviceTrusted, Token: "device.token", ExpiresAt: now.Add(time.Hour)}, f.err
}

func (f *fakeUC) UntrustDevice(_ context.Context, in usecase.UntrustDeviceInput) (*usecase.UntrustDeviceOutput, error) {
	f.gotToken = in.Token
	return &usecase.UntrustDeviceOutput{Outcome: entity.OutcomeDeviceUntrusted}, f.err
}

func (f *fakeUC) RotateTrustEpoch(context.Context) (*usecase.RotateTrustEpochOutput, error) {
	return &usecase.RotateTrustEpochOutput{Outcome: entity.OutcomeEpochRotated, TrustEpoch: 5}, f.err
}

func (f *fakeUC) ValidateDevice(_ context.Context, in usecase.ValidateDeviceInput) (*usecase.ValidateDeviceOutput, error) {
	f.gotAccount, f.gotToken = in.AccountID, in.Token
	if in.Token == "stale" {
		return &usecase.ValidateDeviceOutput{}, nil
	}
	return &usecase.ValidateDeviceOutput{Trusted: true, AccountID: in.AccountID, ExpiresAt: now}, f.err
}

func (f *fakeUC) VerifyLogin(_ context.Context, in usecase.VerifyLoginInput) (*usecase.VerifyLoginOutput, error) {
	f.gotAccount, f.gotCode = in.AccountID, in.Code
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.VerifyLoginOutput{AccountID: in.AccountID, Method: entity.LoginMethodRecoveryCode}, nil
}

type server struct {
	handler http.Handler
	uc      *fakeUC
	bearer  string
}

func newServer(t *testing.T) *server {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("instrument:\n  log_mask_fields: code,token\n"))
	require.NoError(t, err)

	codec, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("k", 64)),
		Issuer:    "identity",
		Audiences: []string{"otpguard"},
		TTL:       time.Hour,
		Clock:     clock.New(),
		UUID:      uid.NewUUID(),
	})
	require.NoError(t, err)

	r := router.NewRouter(router.Config{
		Config:     cfg,
		UUID:       uid.NewUUID(),
		JWT:        codec,
		Instrument: instrument.NewNoop(),
	})

	uc := &fakeUC{}
	inbound.RegisterHTTPEndpoint(r, uc, serviceKey)

	token, err := codec.Generate(7, "alice@example.com")
	require.NoError(t, err)

	return &server{handler: r, uc: uc, bearer: token}
}

func (s *server) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) authed(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + s.bearer})
}

func data(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func TestHTTP_RequiresBearer(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/twofactor"},
		{http.MethodDelete, "/api/v1/twofactor"},
		{http.MethodPost, "/api/v1/twofactor/enrollment"},
		{http.MethodPost, "/api/v1/twofactor/enrollment/confirm"},
		{http.MethodPost, "/api/v1/twofactor/reset"},
		{http.MethodPost, "/api/v1/twofactor/recovery-codes"},
		{http.MethodPost, "/api/v1/twofactor/credential/refresh"},
		{http.MethodPost, "/api/v1/twofactor/devices"},
		{http.MethodPost, "/api/v1/twofactor/devices/clear"},
		{http.MethodPost, "/api/v1/twofactor/devices/rotate"},
		{http.MethodPost, "/api/v1/admin/twofactor/3/reset"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			rec := s.do(t, rt.method, rt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestHTTP_Status(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := s.authed(t, http.MethodGet, "/api/v1/twofactor", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	got := data(t, rec)
	assert.Equal(t, "ENABLED", got["state"])
	assert.EqualValues(t, 9, got["recovery_codes_left"])
	assert.EqualValues(t, 3, got["trust_epoch"])
	assert.Equal(t, false, got["refresh_required"])

	require.NotNil(t, s.uc.caller)
	assert.Equal(t, int64(7), s.uc.caller.AccountID)
}

func TestHTTP_Enrollment(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := s.authed(t, http.MethodPost, "/api/v1/twofactor/enrollment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "enrollment_pending", data(t, rec)["outcome"])
	assert.Equal(t, "JBSWY3DPEHPK3PXP", data(t, rec)["secret"])

	rec = s.authed(t, http.MethodPost, "/api/v1/twofactor/enrollment/confirm", `{"code":"123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123456", s.uc.gotCode)
	got := data(t, rec)
	assert.Equal(t, "enrollment_confirmed", got["outcome"])
	assert.Len(t, got["recovery_codes"], 2)

	rec = s.authed(t, http.MethodPost, "/api/v1/twofactor/enrollment/confirm", `{"code":"1","extra":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "wrong code", err: goerror.NewBusiness("invalid verification code", goerror.CodeUnauthorized), want: http.StatusUnauthorized},
		{name: "state conflict", err: goerror.NewBusiness("no pending enrollment", goerror.CodeConflict), want: http.StatusConflict},
		{name: "stale credential", err: goerror.NewBusiness("credential refresh required", goerror.CodeRefreshRequired), want: http.StatusPreconditionRequired},
		{name: "validation", err: goerror.NewInvalidInput(nil, "code", "Code is a required field"), want: http.StatusUnprocessableEntity},
		{name: "store failure", err: goerror.NewServer(assert.AnError), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newServer(t)
			s.uc.err = tt.err

			rec := s.authed(t, http.MethodDelete, "/api/v1/twofactor", "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "disabled")
		})
	}
}

func TestHTTP_OutcomeInErrorBody(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.uc.err = goerror.NewBusinessWithFields("Credential refresh required", goerror.CodeRefreshRequired,
		usecase.FieldOutcome, string(entity.OutcomeRefreshRequired))

	rec := s.authed(t, http.MethodDelete, "/api/v1/twofactor", "")
	require.Equal(t, http.StatusPreconditionRequired, rec.Code)

	var body struct {
		Message string            `json:"message"`
		Error   map[string]string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.Equal(t, "Credential refresh required", body.Message)
	assert.Equal(t, "refresh_required", body.Error["outcome"])
}

func TestHTTP_RecoveryCodesAsText(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/twofactor/recovery-codes", nil)
	req.Header.Set("Authorization", "Bearer "+s.bearer)
	req.Header.Set("Accept", "text/plain")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "otp-recovery-codes.txt")
	assert.Equal(t, "AAAA-BBBB-CCCC\nDDDD-EEEE-FFFF\n", rec.Body.String())

	rec = s.authed(t, http.MethodPost, "/api/v1/twofactor/recovery-codes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "recovery_codes_issued", data(t, rec)["outcome"])
}

func TestHTTP_Devices(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := s.authed(t, http.MethodPost, "/api/v1/twofactor/devices", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "device.token", data(t, rec)["token"])

	rec = s.authed(t, http.MethodPost, "/api/v1/twofactor/devices/clear", `{"token":"device.token"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "device.token", s.uc.gotToken)
	assert.Equal(t, "device_untrusted", data(t, rec)["outcome"])

	rec = s.authed(t, http.MethodPost, "/api/v1/twofactor/devices/rotate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, data(t, rec)["trust_epoch"])
}

func TestHTTP_LoginServiceRoutes(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	key := map[string]string{router.HeaderServiceKey: serviceKey}

	rec := s.do(t, http.MethodPost, "/api/v1/twofactor/login/verify", `{"account_id":11,"code":"abcd-efgh-jkmn"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "service key required")

	rec = s.do(t, http.MethodPost, "/api/v1/twofactor/login/verify", `{"account_id":11,"code":"abcd-efgh-jkmn"}`,
		map[string]string{router.HeaderServiceKey: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/twofactor/login/verify", `{"account_id":11,"code":"abcd-efgh-jkmn"}`, key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(11), s.uc.gotAccount)
	assert.Equal(t, "recovery_code", data(t, rec)["method"])

	rec = s.do(t, http.MethodPost, "/api/v1/twofactor/devices/validate", `{"account_id":11,"token":"t"}`, key)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, data(t, rec)["trusted"])

	rec = s.do(t, http.MethodPost, "/api/v1/twofactor/devices/validate", `{"account_id":11,"token":"stale"}`, key)
	require.Equal(t, http.StatusOK, rec.Code)
	got := data(t, rec)
	assert.Equal(t, false, got["trusted"])
	assert.NotContains(t, got, "account_id")
}

func TestHTTP_AdminReset(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := s.authed(t, http.MethodPost, "/api/v1/admin/twofactor/42/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), s.uc.gotAdmin)

	rec = s.authed(t, http.MethodPost, "/api/v1/admin/twofactor/abc/reset", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.uc.err = goerror.NewBusiness("forbidden", goerror.CodeForbidden)
	rec = s.authed(t, http.MethodPost, "/api/v1/admin/twofactor/42/reset", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHTTP_RefreshCredential(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := s.authed(t, http.MethodPost, "/api/v1/twofactor/credential/refresh", `{"password":"pw","code":"654321"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "654321", s.uc.gotCode)
	got := data(t, rec)
	assert.Equal(t, "credential_refreshed", got["outcome"])
	assert.Equal(t, "totp", got["method"])

	rec = s.authed(t, http.MethodPost, "/api/v1/twofactor/credential/refresh", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
