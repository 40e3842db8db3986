package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinahealthcare/site/internal/auth"
	"github.com/divinahealthcare/site/internal/submit"
)

type fakeLedger struct {
	records []submit.Record
	err     error
	limit   int
}

func (f *fakeLedger) Recent(_ context.Context, limit int) ([]submit.Record, error) {
	f.limit = limit
	return f.records, f.err
}

func withCookie(req *http.Request, c *http.Cookie) *http.Request {
	if c != nil {
		req.AddCookie(c)
	}
	return req
}

func sessionFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "divina_session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestPortal_NotMountedWithoutProvider(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	assert.Equal(t, http.StatusNotFound, get(t, s, "/portal/login").Code)
}

func TestPortal_StudentFlow(t *testing.T) {
	provider := auth.NewMemoryProvider(time.Hour)
	s := newTestServer(t, testConfig(), Deps{Auth: provider})

	doc := parse(t, get(t, s, "/"))
	assert.Equal(t, 1, doc.Find(`.nav-links a[href="/portal"]`).Length())

	// Anonymous visitors are sent to the login page.
	rec := get(t, s, "/portal")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/portal/login", rec.Header().Get("Location"))

	rec = do(t, s, postForm("/portal/signup", url.Values{
		"name":     {"Ada Obi"},
		"level":    {"200"},
		"gender":   {"Female"},
		"email":    {"Ada@Example.com"},
		"password": {"correct-horse"},
		"role":     {"admin"},
	}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/portal/login?registered=1", rec.Header().Get("Location"))

	doc = parse(t, get(t, s, "/portal/login?registered=1"))
	assert.Equal(t, signupNotice, doc.Find(".banner-success").Text())

	rec = do(t, s, postForm("/portal/login", url.Values{"email": {"ada@example.com"}, "password": {"wrong-password"}}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password.", parse(t, rec).Find(".banner-error").Text())

	rec = do(t, s, postForm("/portal/login", url.Values{"email": {"ada@example.com"}, "password": {"correct-horse"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/portal", rec.Header().Get("Location"))
	cookie := sessionFrom(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/portal", cookie.Path)

	rec = do(t, s, withCookie(httptest.NewRequest(http.MethodGet, "/portal", nil), cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	doc = parse(t, rec)
	assert.Equal(t, "Welcome, Ada Obi!", doc.Find("h1").Text())
	assert.Equal(t, 2, doc.Find("ul.menu li").Length(), "signup never grants admin")
	assert.Equal(t, 0, doc.Find("table.submissions").Length())

	rec = do(t, s, withCookie(httptest.NewRequest(http.MethodPost, "/portal/logout", nil), cookie))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/portal/login", rec.Header().Get("Location"))

	rec = do(t, s, withCookie(httptest.NewRequest(http.MethodGet, "/portal", nil), cookie))
	assert.Equal(t, http.StatusSeeOther, rec.Code, "signed-out token no longer works")
}

func TestPortal_SignupErrors(t *testing.T) {
	provider := auth.NewMemoryProvider(time.Hour)
	s := newTestServer(t, testConfig(), Deps{Auth: provider})

	valid := url.Values{
		"name": {"Ada"}, "level": {"100"}, "gender": {"Female"},
		"email": {"ada@example.com"}, "password": {"long-enough"},
	}

	short := url.Values{}
	for k, v := range valid {
		short[k] = v
	}
	short.Set("password", "short")
	rec := do(t, s, postForm("/portal/signup", short))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	doc := parse(t, rec)
	assert.Equal(t, 1, doc.Find(".field-error").Length())
	val, _ := doc.Find(`input[name="name"]`).Attr("value")
	assert.Equal(t, "Ada", val)

	require.Equal(t, http.StatusSeeOther, do(t, s, postForm("/portal/signup", valid)).Code)

	rec = do(t, s, postForm("/portal/signup", valid))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "An account with this email already exists.", parse(t, rec).Find(".banner-error").Text())
}

func TestPortal_AdminDashboard(t *testing.T) {
	provider := auth.NewMemoryProvider(time.Hour)
	ctx := context.Background()
	_, err := provider.SignUp(ctx, auth.SignUpParams{
		Email: "admin@example.com", Password: "admin-password", Name: "Admin",
		Level: "staff", Gender: "Male", Role: auth.RoleAdmin,
	})
	require.NoError(t, err)
	sess, err := provider.SignIn(ctx, "admin@example.com", "admin-password")
	require.NoError(t, err)
	cookie := &http.Cookie{Name: "divina_session", Value: sess.Token}

	t.Run("recent submissions", func(t *testing.T) {
		ledger := &fakeLedger{records: []submit.Record{{
			ID: "r1", Form: submit.FormOrder, Outcome: submit.Delivered,
			Label: "GlucoGlide™ Pen Needles", Email: "jane@example.com",
			CreatedAt: time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC),
		}}}
		s := newTestServer(t, testConfig(), Deps{Auth: provider, Ledger: ledger})

		rec := do(t, s, withCookie(httptest.NewRequest(http.MethodGet, "/portal", nil), cookie))
		require.Equal(t, http.StatusOK, rec.Code)
		doc := parse(t, rec)

		assert.Equal(t, "Admin Dashboard", doc.Find("h1").Text())
		assert.Equal(t, 4, doc.Find("ul.menu li").Length())
		assert.Equal(t, dashboardRecentLimit, ledger.limit)
		cells := doc.Find("table.submissions tbody td")
		assert.Equal(t, "2026-03-01 14:30 UTC", cells.Eq(0).Text())
		assert.Equal(t, "delivered", cells.Eq(2).Text())
	})

	t.Run("empty ledger", func(t *testing.T) {
		s := newTestServer(t, testConfig(), Deps{Auth: provider, Ledger: &fakeLedger{}})

		doc := parse(t, do(t, s, withCookie(httptest.NewRequest(http.MethodGet, "/portal", nil), cookie)))
		assert.Equal(t, "No submissions yet.", doc.Find("table.submissions tbody td").Text())
	})

	t.Run("ledger error still renders", func(t *testing.T) {
		s := newTestServer(t, testConfig(), Deps{Auth: provider, Ledger: &fakeLedger{err: errors.New("db down")}})

		rec := do(t, s, withCookie(httptest.NewRequest(http.MethodGet, "/portal", nil), cookie))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, parse(t, rec).Find("table.submissions").Length())
	})
}
