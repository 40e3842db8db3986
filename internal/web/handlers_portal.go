package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/divinahealthcare/site/internal/auth"
	"github.com/divinahealthcare/site/internal/logging"
	"github.com/divinahealthcare/site/internal/submit"
	"github.com/divinahealthcare/site/internal/web/views"
)

// signupNotice is shown on the login page after registering.
const signupNotice = "Sign up successful! Please check your email to verify your account."

// dashboardRecentLimit is how many ledger rows the admin dashboard lists.
const dashboardRecentLimit = 20

func (s *Server) sessionCookie(r *http.Request) string {
	c, err := r.Cookie(s.cfg.Portal.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, expires time.Time) {
	c := &http.Cookie{
		Name:     s.cfg.Portal.CookieName,
		Value:    value,
		Path:     "/portal",
		HttpOnly: true,
		Secure:   s.cfg.Portal.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	} else {
		c.Expires = expires
	}
	http.SetCookie(w, c)
}

// requireUser loads the session user or redirects to the login page.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.deps.Auth.CurrentUser(r.Context(), s.sessionCookie(r))
		if errors.Is(err, auth.ErrNoSession) {
			http.Redirect(w, r, "/portal/login", http.StatusSeeOther)
			return
		}
		if err != nil {
			s.respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), u)))
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := views.LoginData{}
	if r.URL.Query().Get("registered") == "1" {
		data.Notice = signupNotice
	}
	s.renderPage(w, r, http.StatusOK, s.page("Login", "/portal"), views.Login(data))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")

	sess, err := s.deps.Auth.SignIn(r.Context(), email, r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.renderPage(w, r, http.StatusUnauthorized, s.page("Login", "/portal"),
			views.Login(views.LoginData{Email: email, Error: "Invalid email or password."}))
		return
	}
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	logging.FromContext(r.Context()).Info("portal sign-in", "user_id", sess.UserID)
	http.Redirect(w, r, "/portal", http.StatusSeeOther)
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, s.page("Sign Up", "/portal"), views.Signup(views.SignupData{}))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	values := map[string]string{
		"name":   r.PostFormValue("name"),
		"level":  r.PostFormValue("level"),
		"gender": r.PostFormValue("gender"),
		"email":  r.PostFormValue("email"),
	}

	// New accounts are always students; admins are promoted in the database.
	_, err := s.deps.Auth.SignUp(r.Context(), auth.SignUpParams{
		Email:    values["email"],
		Password: r.PostFormValue("password"),
		Name:     values["name"],
		Level:    values["level"],
		Gender:   values["gender"],
		Role:     auth.RoleStudent,
	})

	var fe *auth.FieldError
	switch {
	case err == nil:
		http.Redirect(w, r, "/portal/login?registered=1", http.StatusSeeOther)
	case errors.As(err, &fe):
		s.renderPage(w, r, http.StatusUnprocessableEntity, s.page("Sign Up", "/portal"),
			views.Signup(views.SignupData{Values: values, Errors: map[string]string{fe.Field: fe.Message}}))
	case errors.Is(err, auth.ErrEmailTaken):
		s.renderPage(w, r, http.StatusConflict, s.page("Sign Up", "/portal"),
			views.Signup(views.SignupData{Values: values, Error: "An account with this email already exists."}))
	default:
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := s.sessionCookie(r); token != "" {
		if err := s.deps.Auth.SignOut(r.Context(), token); err != nil {
			logging.FromContext(r.Context()).Warn("portal sign-out failed", "error", err)
		}
	}
	s.setSessionCookie(w, "", time.Time{})
	http.Redirect(w, r, "/portal/login", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	data := views.DashboardData{User: u, Menu: auth.Menu(u)}

	if u.Role == auth.RoleAdmin && s.deps.Ledger != nil {
		recent, err := s.deps.Ledger.Recent(r.Context(), dashboardRecentLimit)
		if err != nil {
			logging.FromContext(r.Context()).Warn("load recent submissions", "error", err)
		} else if recent == nil {
			data.Recent = []submit.Record{}
		} else {
			data.Recent = recent
		}
	}

	s.renderPage(w, r, http.StatusOK, s.page("Dashboard", "/portal"), views.Dashboard(data))
}
