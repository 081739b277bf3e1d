package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradeshield/config"
	"tradeshield/database"
	"tradeshield/handlers"
	"tradeshield/models"
	"tradeshield/utils"
	"tradeshield/verifier"
)

const (
	testPAN      = "ABCDE1234F"
	testGST      = "27ABCDE1234F1Z5"
	testGSTOther = "29ABCDE1234F1Z3"
	adminCode    = "test-admin-code"
)

func TestMain(m *testing.M) {
	if err := utils.InitializeEncryption("0123456789abcdef0123456789abcdef"); err != nil {
		panic(err)
	}
	if err := utils.InitializeJWT("routes-test-secret-0123456789abcdef"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeVerifier answers like the remote tax API without the network.
type fakeVerifier struct {
	err      error
	inactive bool
}

func (f *fakeVerifier) VerifyPAN(ctx context.Context, pan string) (*verifier.Result, error) {
	return f.answer(ctx, verifier.NewLocal().VerifyPAN, pan)
}

func (f *fakeVerifier) VerifyGST(ctx context.Context, gst string) (*verifier.Result, error) {
	return f.answer(ctx, verifier.NewLocal().VerifyGST, gst)
}

func (f *fakeVerifier) answer(ctx context.Context, local func(context.Context, string) (*verifier.Result, error), n string) (*verifier.Result, error) {
	res, _ := local(ctx, n)
	if !res.Verified {
		return res, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	res.Source = verifier.SourceRemote
	res.Status = verifier.StatusActive
	res.RegisteredName = "ACME TRADERS"
	if f.inactive {
		res.Verified = false
		res.Status = verifier.StatusInactive
	}
	return res, nil
}

// gatedVerifier holds every PAN check until released, so concurrent requests
// all pass their early checks before any of them saves.
type gatedVerifier struct {
	verifier.Local
	arrived chan struct{}
	release chan struct{}
}

func (g *gatedVerifier) VerifyPAN(ctx context.Context, pan string) (*verifier.Result, error) {
	g.arrived <- struct{}{}
	<-g.release
	return g.Local.VerifyPAN(ctx, pan)
}

// otpOutbox keeps the last code sent to each user.
type otpOutbox struct {
	mu    sync.Mutex
	codes map[uint]string
}

func (o *otpOutbox) SendOTP(_ context.Context, user *models.User, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes[user.ID] = code
	return nil
}

func (o *otpOutbox) last(userID uint) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[userID]
}

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	router *mux.Router
	outbox *otpOutbox
}

func newTestServer(t *testing.T, v verifier.Verifier) *testServer {
	t.Helper()
	db, err := database.Initialize(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	cfg := config.Load()
	cfg.AdminCode = adminCode
	h := handlers.NewHandlers(db, cfg, v, zap.NewNop())
	outbox := &otpOutbox{codes: make(map[uint]string)}
	h.SetOTPSender(outbox)
	return &testServer{
		t:      t,
		db:     db,
		router: SetupRouter(h, zap.NewNop(), Options{CORSOrigin: "http://localhost:3000"}),
		outbox: outbox,
	}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// signup registers and logs in a user, returning its ID and token.
func (s *testServer) signup(email, phone, role, code string) (uint, string) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":     email,
		"phone":     phone,
		"password":  "password123",
		"firstName": "Test",
		"lastName":  "User",
		"role":      role,
		"adminCode": code,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"emailOrPhone": email,
		"password":     "password123",
	})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp models.LoginResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.User.ID, resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealthAndCORS(t *testing.T) {
	s := newTestServer(t, verifier.NewLocal())

	w := s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = s.do(http.MethodOptions, "/api/tax/verify-pan", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, verifier.NewLocal())
	_, token := s.signup("vendor@example.com", "9876543210", "vendor", "")

	w := s.do(http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var user models.User
	decode(t, w, &user)
	assert.Equal(t, utils.RoleVendor, user.Role)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "vendor@example.com", "phone": "9876543211", "password": "password123",
		"firstName": "Dup", "lastName": "User",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "x@example.com", "phone": "9876543212", "password": "password123",
		"firstName": "Bad", "lastName": "Code", "adminCode": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var errResp handlers.ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, "Validation failed", errResp.Error)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"emailOrPhone": "vendor@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPut, "/api/user/profile", token, map[string]string{"firstName": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &user)
	assert.Equal(t, "Renamed", user.FirstName)

	w = s.do(http.MethodGet, "/api/user/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginByPhoneAndOTP(t *testing.T) {
	s := newTestServer(t, verifier.NewLocal())
	userID, _ := s.signup("vendor@example.com", "9876543210", "vendor", "")

	w := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"emailOrPhone": "9876543210", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.LoginResponse
	decode(t, w, &resp)
	assert.Equal(t, userID, resp.User.ID)
	assert.NotEmpty(t, resp.Token)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"emailOrPhone": "not an id", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"emailOrPhone": "0000000000", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// no password: a code is sent instead of a token
	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"emailOrPhone": "Vendor@Example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "token")
	code := s.outbox.last(userID)
	require.Len(t, code, 6)

	var stored models.User
	require.NoError(t, s.db.First(&stored, userID).Error)
	assert.NotEqual(t, code, stored.OTPHash, "codes are stored hashed")
	require.NotNil(t, stored.OTPExpiresAt)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *stored.OTPExpiresAt, time.Minute)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	w = s.do(http.MethodPost, "/api/auth/verify", "", map[string]string{"emailOrPhone": "9876543210", "otp": wrong})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodPost, "/api/auth/verify", "", map[string]string{"emailOrPhone": "9876543210", "otp": "12ab"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/verify", "", map[string]string{"emailOrPhone": "9876543210", "otp": code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.User.EmailVerified)

	w = s.do(http.MethodGet, "/api/user/profile", resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// a code works once
	w = s.do(http.MethodPost, "/api/auth/verify", "", map[string]string{"emailOrPhone": "9876543210", "otp": code})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// and not after it expires
	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"emailOrPhone": "vendor@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	code = s.outbox.last(userID)
	require.NoError(t, s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("otp_expires_at", time.Now().Add(-time.Minute)).Error)
	w = s.do(http.MethodPost, "/api/auth/verify", "", map[string]string{"emailOrPhone": "vendor@example.com", "otp": code})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckFormat(t *testing.T) {
	s := newTestServer(t, verifier.NewLocal())

	w := s.do(http.MethodPost, "/api/tax/check-format", "", map[string]string{
		"panNumber": " abcde1234f ", "gstNumber": testGST,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var r struct {
		PANValid    bool   `json:"panValid"`
		GSTValid    bool   `json:"gstValid"`
		Matching    bool   `json:"matching"`
		EmbeddedPAN string `json:"embeddedPan"`
		StateCode   string `json:"stateCode"`
	}
	decode(t, w, &r)
	assert.True(t, r.PANValid)
	assert.True(t, r.GSTValid)
	assert.True(t, r.Matching)
	assert.Equal(t, testPAN, r.EmbeddedPAN)
	assert.Equal(t, "27", r.StateCode)

	w = s.do(http.MethodPost, "/api/tax/check-format", "", map[string]string{
		"panNumber": "XXXXX0000X", "gstNumber": testGST,
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &r)
	assert.False(t, r.Matching)
}

func TestVerifyPANAndGST(t *testing.T) {
	s := newTestServer(t, verifier.NewLocal())
	_, token := s.signup("vendor@example.com", "9876543210", "vendor", "")

	w := s.do(http.MethodPost, "/api/tax/verify-pan", token, map[string]string{"panNumber": "abcde1234f"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ok struct {
		Reference string          `json:"reference"`
		Result    verifier.Result `json:"result"`
	}
	decode(t, w, &ok)
	assert.NotEmpty(t, ok.Reference)
	assert.True(t, ok.Result.Verified)
	assert.Equal(t, testPAN, ok.Result.Number)

	w = s.do(http.MethodPost, "/api/tax/verify-pan", token, map[string]string{"panNumber": "ABCD1234F"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid PAN format")

	w = s.do(http.MethodPost, "/api/tax/verify-gst", token, map[string]string{"gstNumber": testGST})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &ok)
	assert.Equal(t, testPAN, ok.Result.EmbeddedPAN)

	w = s.do(http.MethodPost, "/api/tax/verify-gst", token, map[string]string{"gstNumber": "27ABCDE1234F1Y5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/tax/verify-gst", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/tax/verify-pan", "", map[string]string{"panNumber": testPAN})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/tax/verifications", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.TaxVerification
	decode(t, w, &history)
	require.Len(t, history, 4)
	for _, h := range history {
		assert.NotContains(t, h.NumberMasked, "ABCDE")
	}
	assert.NotContains(t, w.Body.String(), testPAN)
}

func TestVerifyRemoteErrors(t *testing.T) {
	fv := &fakeVerifier{err: verifier.ErrUnavailable}
	s := newTestServer(t, fv)
	_, token := s.signup("vendor@example.com", "9876543210", "vendor", "")

	w := s.do(http.MethodPost, "/api/tax/verify-pan", token, map[string]string{"panNumber": testPAN})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	fv.err = verifier.ErrNotFound
	w = s.do(http.MethodPost, "/api/tax/verify-gst", token, map[string]string{"gstNumber": testGST})
	assert.Equal(t, http.StatusNotFound, w.Code)
	var errResp handlers.ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, "GST number is not registered", errResp.Message)

	fv.err = nil
	fv.inactive = true
	w = s.do(http.MethodPost, "/api/tax/verify-pan", token, map[string]string{"panNumber": testPAN})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var count int64
	require.NoError(t, s.db.Model(&models.TaxVerification{}).Count(&count).Error)
	assert.Equal(t, int64(2), count, "not-found and inactive attempts are recorded")
}

func TestVendorTaxProfileLifecycle(t *testing.T) {
	s := newTestServer(t, verifier.NewLocal())
	vendorID, vendorToken := s.signup("vendor@example.com", "9876543210", "vendor", "")
	otherID, otherToken := s.signup("other@example.com", "9876543211", "vendor", "")
	_, adminToken := s.signup("admin@example.com", "9876543212", "", adminCode)
	profilePath := fmt.Sprintf("/api/tax/vendor/%d/profile", vendorID)

	w := s.do(http.MethodGet, profilePath, vendorToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/tax/verify-vendor-tax", vendorToken, map[string]interface{}{
		"vendorId": vendorID, "panNumber": "XXXXX0000X", "gstNumber": testGST, "legalName": "Acme Traders",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/tax/verify-vendor-tax", vendorToken, map[string]interface{}{
		"vendorId": vendorID, "panNumber": "ABCD1234F", "gstNumber": testGST, "legalName": "Acme Traders",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/tax/verify-vendor-tax", otherToken, map[string]interface{}{
		"vendorId": vendorID, "panNumber": testPAN, "gstNumber": testGST, "legalName": "Acme Traders",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/tax/verify-vendor-tax", vendorToken, map[string]interface{}{
		"vendorId": vendorID, "panNumber": " abcde1234f ", "gstNumber": testGST + "\n", "legalName": "Acme Traders",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved struct {
		Profile models.VendorTaxProfile `json:"profile"`
	}
	decode(t, w, &saved)
	assert.Equal(t, models.StatusPending, saved.Profile.Status, "format-only verification awaits review")
	assert.Equal(t, models.StatusVerified, saved.Profile.PANStatus)
	assert.True(t, saved.Profile.Matching)
	assert.Equal(t, "27", saved.Profile.StateCode)
	assert.NotContains(t, w.Body.String(), testPAN)

	var stored models.VendorTaxProfile
	require.NoError(t, s.db.Where("vendor_id = ?", vendorID).First(&stored).Error)
	assert.NotEqual(t, testPAN, stored.PAN)
	pan, err := utils.DecryptSensitiveData(stored.PAN)
	require.NoError(t, err)
	assert.Equal(t, testPAN, pan)

	// same GSTIN cannot belong to two vendors
	w = s.do(http.MethodPost, "/api/tax/verify-vendor-tax", otherToken, map[string]interface{}{
		"vendorId": otherID, "panNumber": testPAN, "gstNumber": testGST, "legalName": "Copycat",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, profilePath, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, profilePath, vendorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile models.VendorTaxProfile
	decode(t, w, &profile)
	assert.Equal(t, "******234F", profile.PANMasked)
	assert.Equal(t, "Acme Traders", profile.LegalName)

	// reveal is admin only; a vendor gets the masked form
	w = s.do(http.MethodGet, profilePath+"?reveal=true", vendorToken, nil)
	decode(t, w, &profile)
	assert.Equal(t, "******234F", profile.PANMasked)
	w = s.do(http.MethodGet, profilePath+"?reveal=true", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &profile)
	assert.Equal(t, testPAN, profile.PANMasked)
	assert.Equal(t, testGST, profile.GSTMasked)

	// admin review
	w = s.do(http.MethodGet, "/api/admin/tax/profiles", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []models.VendorTaxProfile
	decode(t, w, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, vendorID, pending[0].VendorID)

	w = s.do(http.MethodGet, "/api/admin/tax/profiles", vendorToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	reviewPath := fmt.Sprintf("/api/admin/tax/profiles/%d/review", vendorID)
	w = s.do(http.MethodPost, reviewPath, adminToken, map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"reason"`)

	w = s.do(http.MethodPost, reviewPath, adminToken, map[string]string{"status": "verified"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &saved)
	assert.Equal(t, models.StatusVerified, saved.Profile.Status)
	assert.NotNil(t, saved.Profile.VerifiedAt)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/admin/tax/profiles/%d/review", otherID), adminToken, map[string]string{"status": "verified"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// updating only descriptive fields keeps the verification
	w = s.do(http.MethodPut, profilePath, vendorToken, map[string]string{"businessType": "Wholesale"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &saved)
	assert.Equal(t, models.StatusVerified, saved.Profile.Status)
	assert.Equal(t, "Wholesale", saved.Profile.BusinessType)

	// a mismatched PAN is refused
	w = s.do(http.MethodPut, profilePath, vendorToken, map[string]string{"panNumber": "XXXXX0000X"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// a new GSTIN for the same PAN resets verification
	w = s.do(http.MethodPut, profilePath, vendorToken, map[string]string{"gstNumber": testGSTOther})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated struct {
		Profile models.VendorTaxProfile `json:"profile"`
	}
	decode(t, w, &updated)
	assert.Equal(t, models.StatusPending, updated.Profile.Status)
	assert.Equal(t, models.StatusPending, updated.Profile.GSTStatus)
	assert.Equal(t, models.StatusVerified, updated.Profile.PANStatus)
	assert.Equal(t, "29", updated.Profile.StateCode)
	assert.Nil(t, updated.Profile.VerifiedAt)

	w = s.do(http.MethodGet, "/api/admin/audit-logs?resource=TAX_PROFILE", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []models.AuditLog
	decode(t, w, &logs)
	assert.Len(t, logs, 5)

	w = s.do(http.MethodGet, "/api/admin/users?role=vendor", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.User
	decode(t, w, &users)
	assert.Len(t, users, 2)
}

func TestVendorTaxRemoteVerification(t *testing.T) {
	fv := &fakeVerifier{}
	s := newTestServer(t, fv)
	vendorID, token := s.signup("vendor@example.com", "9876543210", "vendor", "")
	_, userToken := s.signup("buyer@example.com", "9876543211", "user", "")
	_, adminToken := s.signup("admin@example.com", "9876543212", "", adminCode)

	body := map[string]interface{}{
		"vendorId": vendorID, "panNumber": testPAN, "gstNumber": testGST, "legalName": "Acme Traders",
	}

	fv.inactive = true
	w := s.do(http.MethodPost, "/api/tax/verify-vendor-tax", token, body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	fv.inactive = false
	w = s.do(http.MethodPost, "/api/tax/verify-vendor-tax", token, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved struct {
		Profile       models.VendorTaxProfile `json:"profile"`
		Verifications map[string]string      `json:"verifications"`
	}
	decode(t, w, &saved)
	assert.Equal(t, models.StatusVerified, saved.Profile.Status)
	assert.NotNil(t, saved.Profile.VerifiedAt)
	assert.NotEmpty(t, saved.Verifications["pan"])
	assert.NotEmpty(t, saved.Verifications["gst"])

	// resubmitting updates the existing profile
	w = s.do(http.MethodPost, "/api/tax/verify-vendor-tax", adminToken, body)
	require.Equal(t, http.StatusOK, w.Code)
	var count int64
	require.NoError(t, s.db.Model(&models.VendorTaxProfile{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// only vendors have tax profiles
	w = s.do(http.MethodPost, "/api/tax/verify-vendor-tax", adminToken, map[string]interface{}{
		"vendorId": 999, "panNumber": testPAN, "gstNumber": testGST, "legalName": "Ghost",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/tax/vendor/%d/profile", vendorID), userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	fv.err = verifier.ErrUnavailable
	w = s.do(http.MethodPost, "/api/tax/verify-vendor-tax", token, body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestVendorTaxConcurrentSameGST(t *testing.T) {
	gate := &gatedVerifier{arrived: make(chan struct{}), release: make(chan struct{})}
	s := newTestServer(t, gate)
	firstID, firstToken := s.signup("first@example.com", "9876543210", "vendor", "")
	secondID, secondToken := s.signup("second@example.com", "9876543211", "vendor", "")

	submit := func(id uint, token string) int {
		return s.do(http.MethodPost, "/api/tax/verify-vendor-tax", token, map[string]interface{}{
			"vendorId": id, "panNumber": testPAN, "gstNumber": testGST, "legalName": "Acme Traders",
		}).Code
	}

	codes := make([]int, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); codes[0] = submit(firstID, firstToken) }()
	go func() { defer wg.Done(); codes[1] = submit(secondID, secondToken) }()

	for i := 0; i < 2; i++ {
		select {
		case <-gate.arrived:
		case <-time.After(5 * time.Second):
			t.Fatal("requests did not reach verification")
		}
	}
	close(gate.release)
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, codes)

	fp, err := utils.Fingerprint(testGST)
	require.NoError(t, err)
	var count int64
	require.NoError(t, s.db.Model(&models.VendorTaxProfile{}).Where("gst_fingerprint = ?", fp).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateProfileToTakenGST(t *testing.T) {
	s := newTestServer(t, verifier.NewLocal())
	firstID, firstToken := s.signup("first@example.com", "9876543210", "vendor", "")
	secondID, secondToken := s.signup("second@example.com", "9876543211", "vendor", "")

	w := s.do(http.MethodPost, "/api/tax/verify-vendor-tax", firstToken, map[string]interface{}{
		"vendorId": firstID, "panNumber": testPAN, "gstNumber": testGST, "legalName": "Acme Traders",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/tax/verify-vendor-tax", secondToken, map[string]interface{}{
		"vendorId": secondID, "panNumber": testPAN, "gstNumber": testGSTOther, "legalName": "Acme South",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPut, fmt.Sprintf("/api/tax/vendor/%d/profile", secondID), secondToken, map[string]string{
		"gstNumber": testGST,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	var profile models.VendorTaxProfile
	require.NoError(t, s.db.Where("vendor_id = ?", secondID).First(&profile).Error)
	gst, err := utils.DecryptSensitiveData(profile.GST)
	require.NoError(t, err)
	assert.Equal(t, testGSTOther, gst)
}
