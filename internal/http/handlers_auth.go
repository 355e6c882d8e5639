package http

import (
	"context"
	"errors"
	"net/http"

	"chitieu/internal/auth"
	"chitieu/internal/log"
)

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, r, "signup.html", nil)
		return
	}
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	email := sanitizeInput(r.Form.Get("email"))
	password := r.Form.Get("password")

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	userID, err := s.auth.Register(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			ConflictError("Email đã được đăng ký").Write(w)
		case errors.Is(err, auth.ErrInvalidEmail):
			UnprocessableEntityError("Email không hợp lệ").Write(w)
		case errors.Is(err, auth.ErrWeakPassword):
			UnprocessableEntityError("Mật khẩu phải có ít nhất 8 ký tự").Write(w)
		default:
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Sign-up failed", "error", err, "email", email)
			InternalServerError("Không thể tạo tài khoản").Write(w)
		}
		return
	}

	// New accounts start with the entry and report roles.
	if err := s.roles.GrantDefaults(ctx, userID); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Default role grant failed",
			"error", err, "user_id", userID)
	}

	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		http.Redirect(w, r, "/signin", http.StatusSeeOther)
		return
	}
	s.setSessionCookie(w, sess)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Account created",
		"user_id", userID, "email", email)
	s.redirectAfterAuth(w, r)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, r, "signin.html", nil)
		return
	}
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	email := sanitizeInput(r.Form.Get("email"))
	password := r.Form.Get("password")

	ctx, cancel := context.WithTimeout(r.Context(), mutationTimeout)
	defer cancel()

	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			ErrorResponse(http.StatusUnauthorized, "Email hoặc mật khẩu không đúng").Write(w)
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Sign-in failed", "error", err, "email", email)
		InternalServerError("Không thể đăng nhập").Write(w)
		return
	}

	s.setSessionCookie(w, sess)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Signed in", "user_id", sess.UserID)
	s.redirectAfterAuth(w, r)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request, v Viewer) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.auth.SignOut(r.Context(), c.Value); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Sign-out cleanup failed",
				"error", err, "user_id", v.User.ID)
		}
	}
	s.clearSessionCookie(w)
	s.redirectAfterAuth(w, r)
}

// redirectAfterAuth sends the browser to the entry list, using HX-Redirect
// for HTMX forms so the whole page navigates instead of the swap target.
func (s *Server) redirectAfterAuth(w http.ResponseWriter, r *http.Request) {
	target := "/entries"
	if r.URL.Path == "/signout" {
		target = "/signin"
	}
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
