package http

import (
	"errors"
	"net/http"

	"chitieu/internal/auth"
	"chitieu/internal/config"
	"chitieu/internal/core"
	"chitieu/internal/log"
	"chitieu/internal/storage"
)

const sessionCookie = "chitieu_session"

// Viewer is the authenticated principal attached to every protected request.
type Viewer struct {
	User  storage.User
	Roles core.RoleSet
}

type viewerHandler func(w http.ResponseWriter, r *http.Request, v Viewer)

// requireUser resolves the session cookie into a Viewer. Unauthenticated
// browsers are redirected to the sign-in page; HTMX requests get a
// HX-Redirect header instead so the swap never shows the login form inline.
func (s *Server) requireUser(next viewerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil {
			s.redirectToSignIn(w, r)
			return
		}

		user, err := s.auth.Resolve(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, auth.ErrSessionExpired) && !errors.Is(err, core.ErrNotFound) {
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Session resolution failed", "error", err)
			}
			s.clearSessionCookie(w)
			s.redirectToSignIn(w, r)
			return
		}

		roles, err := s.roles.Resolve(r.Context(), user.ID)
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Role resolution failed", "error", err, "user_id", user.ID)
			InternalServerError("Không thể xác định quyền truy cập").Write(w)
			return
		}

		next(w, r, Viewer{User: user, Roles: roles})
	}
}

// requireRole gates a handler behind a role. The gate policy decides what a
// denied user sees: a hidden surface answers 404 as if the route does not
// exist, a visible one answers 403 with an explanation.
func (s *Server) requireRole(role, gatePolicy string, next viewerHandler) viewerHandler {
	return func(w http.ResponseWriter, r *http.Request, v Viewer) {
		if v.Roles.Has(role) {
			next(w, r, v)
			return
		}

		log.FromContext(r.Context()).WarnContext(r.Context(), "Access denied",
			"user_id", v.User.ID, "role", role, "path", r.URL.Path)

		if gatePolicy == config.GateHidden {
			http.NotFound(w, r)
			return
		}
		s.renderDenied(w, r, v, role)
	}
}

func (s *Server) renderDenied(w http.ResponseWriter, r *http.Request, v Viewer, role string) {
	if isHTMX(r) {
		ForbiddenError("Bạn không có quyền truy cập chức năng này").Write(w)
		return
	}
	w.WriteHeader(http.StatusForbidden)
	s.render(w, r, "denied.html", map[string]any{
		"Viewer": v,
		"Role":   role,
	})
}

func (s *Server) redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/signin")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess storage.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
