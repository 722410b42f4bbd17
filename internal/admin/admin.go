// Package admin serves the server-rendered management pages on top of the
// link service.
package admin

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/httpx"
	"github.com/sundayezeilo/shortlink/internal/links"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	defaultPageSize = 20
	maxFormSize     = 16 << 10
	pingTimeout     = 2 * time.Second
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the admin handler dependencies.
type Config struct {
	Service links.Service
	Logger  *slog.Logger
	BaseURL string
	DB      Pinger // optional; health reports "unknown" when nil
}

// Handler renders the admin pages.
type Handler struct {
	service links.Service
	logger  *slog.Logger
	baseURL string
	db      Pinger
	now     func() time.Time
	pages   map[string]*template.Template
}

type flash struct {
	Kind    string // "ok" or "error"
	Message string
}

type page struct {
	Title string
	Flash *flash
}

type dashboardPage struct {
	page
	Links        []links.Link
	MaxURLLength int
	Limit        int
	HasPrev      bool
	PrevSkip     int
	HasNext      bool
	NextSkip     int
}

type statsPage struct {
	page
	Link     links.Link
	ShortURL string
}

type redirectPage struct {
	page
	Code    string
	APIPath string
}

type healthPage struct {
	page
	Status    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

type errorPage struct {
	page
	Message string
}

var funcs = template.FuncMap{
	"formatTime": func(t any) string {
		switch v := t.(type) {
		case time.Time:
			return v.UTC().Format("2006-01-02 15:04:05 MST")
		case *time.Time:
			if v == nil {
				return ""
			}
			return v.UTC().Format("2006-01-02 15:04:05 MST")
		default:
			return fmt.Sprint(t)
		}
	},
}

// New parses the embedded templates and returns a Handler.
func New(cfg Config) (*Handler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"dashboard", "stats", "redirect", "health", "error"} {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		db:      cfg.DB,
		now:     time.Now,
		pages:   pages,
	}, nil
}

// Dashboard handles GET /admin/.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > links.MaxListLimit {
		limit = defaultPageSize
	}
	skip := queryInt(r, "skip", 0)

	items, err := h.service.List(ctx, links.ListOptions{Limit: limit, Skip: skip})
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	data := dashboardPage{
		page:         page{Title: "Links", Flash: flashFromQuery(r)},
		Links:        items,
		MaxURLLength: links.MaxURLLength,
		Limit:        limit,
		HasPrev:      skip > 0,
		PrevSkip:     max(skip-limit, 0),
		HasNext:      len(items) == limit,
		NextSkip:     skip + limit,
	}
	h.render(w, r, http.StatusOK, "dashboard", data)
}

// CreateLink handles POST /admin/links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, "error", "could not read form")
		return
	}

	target := strings.TrimSpace(r.PostForm.Get("target"))
	code := strings.TrimSpace(r.PostForm.Get("code"))

	if !links.IsValidURL(target) {
		redirectWithFlash(w, r, "error", "enter an absolute http or https URL such as https://example.com")
		return
	}

	link, err := h.service.Create(ctx, links.CreateLinkRequest{Code: code, Target: target})
	if err != nil {
		switch errx.KindOf(err) {
		case errx.Conflict:
			if code == "" {
				redirectWithFlash(w, r, "error", "generated code collided with an existing link, try again")
				break
			}
			redirectWithFlash(w, r, "error", fmt.Sprintf("code %q is already taken", code))
		case errx.Invalid:
			redirectWithFlash(w, r, "error", rootMessage(err))
		default:
			h.logError(r, "admin create failed", err)
			redirectWithFlash(w, r, "error", "could not create link, try again later")
		}
		return
	}

	h.logger.InfoContext(ctx, "link created from admin",
		"request_id", httpx.GetRequestID(ctx),
		"code", link.Code,
	)
	redirectWithFlash(w, r, "ok", "created "+h.shortURL(link.Code))
}

// DeleteLink handles POST /admin/links/{code}/delete.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	removed, err := h.service.Delete(r.Context(), code)
	switch {
	case err != nil:
		h.logError(r, "admin delete failed", err)
		redirectWithFlash(w, r, "error", "could not delete link, try again later")
	case !removed:
		redirectWithFlash(w, r, "error", fmt.Sprintf("link %q not found", code))
	default:
		redirectWithFlash(w, r, "ok", fmt.Sprintf("deleted %s", code))
	}
}

// LinkStats handles GET /admin/links/{code}.
func (h *Handler) LinkStats(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.Stats(r.Context(), r.PathValue("code"))
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "stats", statsPage{
		page:     page{Title: "Link " + link.Code},
		Link:     link,
		ShortURL: h.shortURL(link.Code),
	})
}

// Redirect handles GET /admin/r/{code}. The page resolves the code through
// the JSON variant of the redirect API and then navigates to the target.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	h.render(w, r, http.StatusOK, "redirect", redirectPage{
		page:    page{Title: "Redirecting"},
		Code:    code,
		APIPath: "/api/links/redirect/" + url.PathEscape(code),
	})
}

// Health handles GET /admin/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	data := healthPage{
		page:      page{Title: "Health"},
		Status:    "unknown",
		CheckedAt: h.now(),
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		start := time.Now()
		err := h.db.Ping(ctx)
		data.Latency = time.Since(start).Round(time.Millisecond)
		if err != nil {
			h.logError(r, "database ping failed", err)
			data.Status = "unavailable"
			data.Error = "database unreachable"
			status = http.StatusServiceUnavailable
		} else {
			data.Status = "OK"
		}
	}

	h.render(w, r, status, "health", data)
}

func (h *Handler) shortURL(code string) string {
	return h.baseURL + "/" + code
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logError(r, "render failed", err, "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errx.KindOf(err)
	status := httpx.ErrorKindToStatus(kind)

	data := errorPage{page: page{Title: "Something went wrong"}, Message: "please try again later"}
	switch kind {
	case errx.NotFound:
		data.Title, data.Message = "Link not found", "It may have been deleted or never created."
	case errx.Invalid:
		data.Title, data.Message = "Bad request", rootMessage(err)
	default:
		h.logError(r, "admin page failed", err)
	}
	h.render(w, r, status, "error", data)
}

func (h *Handler) logError(r *http.Request, msg string, err error, attrs ...any) {
	attrs = append(attrs,
		"request_id", httpx.GetRequestID(r.Context()),
		"path", r.URL.Path,
		"error", err.Error(),
		"error_kind", errx.KindOf(err).String(),
	)
	h.logger.ErrorContext(r.Context(), msg, attrs...)
}

// redirectWithFlash sends the browser back to the dashboard with a message.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	q := url.Values{}
	q.Set("flash", message)
	q.Set("kind", kind)
	http.Redirect(w, r, "/admin/?"+q.Encode(), http.StatusSeeOther)
}

func flashFromQuery(r *http.Request) *flash {
	q := r.URL.Query()
	msg := q.Get("flash")
	if msg == "" {
		return nil
	}
	kind := "ok"
	if q.Get("kind") == "error" {
		kind = "error"
	}
	return &flash{Kind: kind, Message: msg}
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}

func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
