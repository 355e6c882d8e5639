package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"chitieu/internal/auth"
	"chitieu/internal/cache"
	"chitieu/internal/config"
	"chitieu/internal/core"
	"chitieu/internal/log"
	"chitieu/internal/objstore"
	"chitieu/internal/services"
	"chitieu/internal/storage"
	appweb "chitieu/web"
)

// ImageRepository is the storage surface the receipt image handlers need.
type ImageRepository interface {
	GetEntry(ctx context.Context, id int64, owner string) (core.Entry, error)
	AddEntryImage(ctx context.Context, entryID int64, objectKey string) (int64, error)
	ListEntryImages(ctx context.Context, entryID int64) ([]storage.EntryImage, error)
	DeleteEntryImage(ctx context.Context, id int64) error
}

// Options bundles the collaborators a Server needs.
type Options struct {
	Config     config.Config
	Auth       *auth.Manager
	Entries    *services.EntryService
	Categories *services.CategoryService
	Roles      *services.RoleService
	Images     *objstore.Store
	ImageRepo  ImageRepository
	Logger     *log.Logger
}

type Server struct {
	http.Server
	templates  *template.Template
	auth       *auth.Manager
	entries    *services.EntryService
	categories *services.CategoryService
	roles      *services.RoleService
	images     *objstore.Store
	imageRepo  ImageRepository

	rateLimiter *rateLimiter
	metrics     *securityMetrics
	structured  *log.StructuredLogger

	// Derived report overviews, keyed by owner and year.
	overviewCache *cache.LRUCache[core.Overview]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once

	secureCookies bool
	pageSize      int
	adminGate     string
	reportGate    string
	categoryGate  string
	uptime        time.Time
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()
	cfg := opts.Config

	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		Server: http.Server{
			Addr:    ":" + cfg.Port,
			Handler: mux,
		},
		auth:             opts.Auth,
		entries:          opts.Entries,
		categories:       opts.Categories,
		roles:            opts.Roles,
		images:           opts.Images,
		imageRepo:        opts.ImageRepo,
		rateLimiter:      newRateLimiter(),
		metrics:          &securityMetrics{},
		structured:       log.NewStructuredLogger(logger.WithComponent(log.ComponentHTTP)),
		overviewCache:    cache.NewLRUCache[core.Overview](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
		secureCookies:    cfg.SecureCookies,
		pageSize:         cfg.PageSize,
		adminGate:        cfg.AdminGate,
		reportGate:       cfg.ReportGate,
		categoryGate:     cfg.CategoryGate,
		uptime:           time.Now(),
	}

	go s.startCacheCleanup()

	t, err := template.New("").Funcs(template.FuncMap{
		"vnd":        func(m core.Money) string { return m.Format() },
		"monthLabel": monthLabel,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/", s.withSecurity(s.handleIndex))
	mux.HandleFunc("/signup", s.withSecurity(s.handleSignUp))
	mux.HandleFunc("/signin", s.withSecurity(s.handleSignIn))
	mux.HandleFunc("/signout", s.withSecurity(s.requireUser(s.handleSignOut)))

	mux.HandleFunc("/entries", s.withSecurity(s.requireUser(s.handleEntries)))
	mux.HandleFunc("/entries/detail", s.withSecurity(s.requireUser(s.handleEntryDetail)))
	mux.HandleFunc("/entries/add", s.withSecurity(s.requireUser(s.handleAddEntry)))
	mux.HandleFunc("/entries/update", s.withSecurity(s.requireUser(s.handleUpdateEntry)))
	mux.HandleFunc("/entries/delete", s.withSecurity(s.requireUser(s.handleDeleteEntry)))

	mux.HandleFunc("/categories", s.withSecurity(s.requireUser(
		s.requireRole(core.RoleCategory, s.categoryGate, s.handleCategories))))
	mux.HandleFunc("/categories/add", s.withSecurity(s.requireUser(
		s.requireRole(core.RoleCategory, s.categoryGate, s.handleAddCategory))))
	mux.HandleFunc("/categories/update", s.withSecurity(s.requireUser(
		s.requireRole(core.RoleCategory, s.categoryGate, s.handleUpdateCategory))))
	mux.HandleFunc("/categories/delete", s.withSecurity(s.requireUser(
		s.requireRole(core.RoleCategory, s.categoryGate, s.handleDeleteCategory))))

	mux.HandleFunc("/reports", s.withSecurity(s.requireUser(
		s.requireRole(core.RoleReport, s.reportGate, s.handleReports))))
	mux.HandleFunc("/reports/export", s.withSecurity(s.requireUser(
		s.requireRole(core.RoleReport, s.reportGate, s.handleExportCSV))))

	mux.HandleFunc("/admin/roles", s.withSecurity(s.requireUser(
		s.requireRole(core.RoleSuperAdmin, s.adminGate, s.handleRoleMatrix))))
	mux.HandleFunc("/admin/roles/grant", s.withSecurity(s.requireUser(
		s.requireRole(core.RoleSuperAdmin, s.adminGate, s.handleGrantRole))))
	mux.HandleFunc("/admin/roles/revoke", s.withSecurity(s.requireUser(
		s.requireRole(core.RoleSuperAdmin, s.adminGate, s.handleRevokeRole))))

	mux.HandleFunc("/entries/images", s.withSecurity(s.requireUser(s.handleUploadImage)))
	mux.HandleFunc("/entries/images/delete", s.withSecurity(s.requireUser(s.handleDeleteImage)))
	mux.HandleFunc("/images/", s.withSecurity(s.requireUser(s.handleServeImage)))

	s.Server.Handler = log.Middleware(logger.WithComponent(log.ComponentHTTP))(mux)

	return s
}

// withSecurity adds security headers, rate limiting, request IDs, and
// request logging to responses.
func (s *Server) withSecurity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r, s.metrics)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), log.LoggerContextKey,
			log.FromContext(r.Context()).With(log.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		s.structured.LogHTTPStart(ctx, r, clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// render executes a template, logging failures instead of leaking them.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			"error", err, "template", name)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := s.auth.Resolve(r.Context(), c.Value); err == nil {
			http.Redirect(w, r, "/entries", http.StatusSeeOther)
			return
		}
	}
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

func (s *Server) overviewKey(owner string, year int) string {
	return owner + "|" + strconv.Itoa(year)
}

func (s *Server) invalidateOverview(owner string, year int) {
	s.overviewCache.Delete(s.overviewKey(owner, year))
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.overviewCache.CleanExpired()
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
