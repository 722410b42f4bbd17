package links

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/httpx"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	Code   string `json:"code,omitempty"`
	Target string `json:"target"`
}

// HTTPUpdateLinkRequest represents the JSON request body for updating a link.
type HTTPUpdateLinkRequest struct {
	Target string `json:"target"`
}

// CreateLinkResponse represents the JSON response for a created link.
type CreateLinkResponse struct {
	Code      string    `json:"code"`
	Target    string    `json:"target"`
	ShortURL  string    `json:"shortUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// LinkStatsResponse is the public view of a stored link.
type LinkStatsResponse struct {
	Code          string     `json:"code"`
	Target        string     `json:"target"`
	Clicks        int64      `json:"clicks"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastClickedAt *time.Time `json:"lastClickedAt"`
}

// ListLinksResponse is the body of GET /api/links.
type ListLinksResponse struct {
	Count int                 `json:"count"`
	Links []LinkStatsResponse `json:"links"`
}

// RedirectResponse is returned by the redirect endpoint to JSON clients.
type RedirectResponse struct {
	Success bool   `json:"success"`
	Target  string `json:"target"`
	Code    string `json:"code"`
}

// Handler provides HTTP handlers for the link API.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // prefix for short URLs, e.g. "https://sho.rt"
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// ShortURL returns the public short URL for code.
func (h *Handler) ShortURL(code string) string {
	return h.baseURL + "/" + code
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// CreateLink handles POST /api/links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := validateCreateRequest(req); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"error", err.Error(),
			"target", req.Target,
			"code", req.Code,
		)
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	link, err := h.service.Create(ctx, CreateLinkRequest{Code: req.Code, Target: req.Target})
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}

	logger.InfoContext(ctx, "link created",
		"code", link.Code,
		"custom_code", req.Code != "",
	)

	httpx.WriteJSON(w, http.StatusCreated, CreateLinkResponse{
		Code:      link.Code,
		Target:    link.Target,
		ShortURL:  h.ShortURL(link.Code),
		CreatedAt: link.CreatedAt,
	})
}

// ListLinks handles GET /api/links?limit=&skip=.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	opts := ListOptions{
		Limit: queryInt(r, "limit", DefaultListLimit),
		Skip:  queryInt(r, "skip", 0),
	}

	links, err := h.service.List(ctx, opts)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}

	resp := ListLinksResponse{
		Count: len(links),
		Links: make([]LinkStatsResponse, 0, len(links)),
	}
	for _, link := range links {
		resp.Links = append(resp.Links, toStatsResponse(link))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// GetLinkStats handles GET /api/links/{code}.
func (h *Handler) GetLinkStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	link, err := h.service.Stats(ctx, r.PathValue("code"))
	if err != nil {
		h.writeServiceError(ctx, w, h.requestLogger(r), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toStatsResponse(link))
}

// UpdateLink handles PUT /api/links/{code}.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)
	code := r.PathValue("code")

	req, err := httpx.DecodeJSON[HTTPUpdateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Target == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "target is required")
		return
	}

	link, err := h.service.Update(ctx, code, req.Target)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}

	logger.InfoContext(ctx, "link updated", "code", link.Code)
	httpx.WriteJSON(w, http.StatusOK, toStatsResponse(link))
}

// DeleteLink handles DELETE /api/links/{code}.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)
	code := r.PathValue("code")

	removed, err := h.service.Delete(ctx, code)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}
	if !removed {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "link not found")
		return
	}

	logger.InfoContext(ctx, "link deleted", "code", code)
	httpx.WriteMessage(w, http.StatusOK, "Link deleted successfully")
}

// Redirect handles GET /api/links/redirect/{code} and GET /{code}.
//
// Every successful call counts one click. Browsers get a 301 to the target;
// clients that ask for JSON get the target in the body instead.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)
	code := r.PathValue("code")

	link, err := h.service.IncrementClicks(ctx, code)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}

	logger.InfoContext(ctx, "link resolved",
		"code", code,
		"clicks", link.Clicks,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	if wantsJSON(r) {
		httpx.WriteJSON(w, http.StatusOK, RedirectResponse{Success: true, Target: link.Target, Code: link.Code})
		return
	}

	// A cached 301 would bypass the server and stop clicks from counting.
	w.Header().Set("Cache-Control", "private, max-age=0, no-cache")
	http.Redirect(w, r, link.Target, http.StatusMovedPermanently)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := errx.KindOf(err)
	status := httpx.ErrorKindToStatus(kind)

	attrs := []any{
		"error", err.Error(),
		"error_kind", kind.String(),
		"operation", errx.OpOf(err),
	}

	var message string
	switch kind {
	case errx.NotFound:
		logger.WarnContext(ctx, "link not found", attrs...)
		message = "link not found"
	case errx.Conflict:
		logger.WarnContext(ctx, "code conflict", attrs...)
		message = "code already exists"
	case errx.Invalid:
		logger.WarnContext(ctx, "invalid link request", attrs...)
		message = rootMessage(err)
	default:
		logger.ErrorContext(ctx, "link operation failed", attrs...)
		message = "internal server error"
	}

	httpx.WriteError(w, status, httpx.ErrorKindToCode(kind), message)
}

func validateCreateRequest(req HTTPCreateLinkRequest) error {
	if req.Target == "" {
		return errors.New("target is required")
	}
	return nil
}

func toStatsResponse(link Link) LinkStatsResponse {
	return LinkStatsResponse{
		Code:          link.Code,
		Target:        link.Target,
		Clicks:        link.Clicks,
		CreatedAt:     link.CreatedAt,
		LastClickedAt: link.LastClickedAt,
	}
}

// queryInt parses a non-negative integer query parameter, falling back to
// def when it is absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// wantsJSON reports whether the first media range in Accept is JSON.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return false
	}
	first, _, _ := strings.Cut(accept, ",")
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(first))
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// rootMessage returns the innermost error text, which for validation
// failures is the message meant for the caller.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
