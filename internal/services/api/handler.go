package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/httpx"
	"github.com/louisbranch/oilandrope/internal/platform/id"
	"github.com/louisbranch/oilandrope/internal/platform/pagination"
	"github.com/louisbranch/oilandrope/internal/platform/requestctx"
	"github.com/louisbranch/oilandrope/internal/platform/telemetry/metrics"
	"github.com/louisbranch/oilandrope/internal/random"
	"github.com/louisbranch/oilandrope/internal/services/api/routepath"
	"github.com/louisbranch/oilandrope/internal/services/registration/mail"
	"github.com/louisbranch/oilandrope/internal/services/registration/service"
	"github.com/louisbranch/oilandrope/internal/services/registration/token"
	"github.com/louisbranch/oilandrope/internal/services/shared/i18nhttp"
	"github.com/louisbranch/oilandrope/internal/storage"
)

var (
	errUnauthenticated = apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	errForbidden       = apperrors.New(apperrors.CodePermissionDenied, "permission denied")
)

// access is the minimum identity a route requires.
type access int

const (
	accessAny access = iota
	accessUser
	accessAdmin
)

type handlerOptions struct {
	store        storage.Store
	registration *service.Service
	tokens       *token.Manager
	sender       mail.Sender
	metrics      *metrics.Metrics
	seed         func() (int64, error)
	now          func() time.Time
	idGenerator  func() (string, error)
	siteURL      string
	fromEmail    string
	botEmail     string
	mediaDir     string
	version      string
}

type handler struct {
	handlerOptions
}

// newHandler builds the API mux wrapped in the shared middleware chain.
func newHandler(opts handlerOptions) http.Handler {
	if opts.seed == nil {
		opts.seed = random.NewSeed
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.idGenerator == nil {
		opts.idGenerator = id.NewID
	}
	if opts.registration == nil && opts.store != nil && opts.tokens != nil {
		opts.registration = service.New(opts.store, opts.tokens, opts.sender, service.Config{
			SiteURL: opts.siteURL,
			From:    opts.fromEmail,
		})
	}
	h := &handler{handlerOptions: opts}

	mux := http.NewServeMux()
	h.registerRoutes(mux)
	if opts.metrics != nil {
		mux.Handle(routepath.Pattern(http.MethodGet, routepath.Metrics), opts.metrics.Handler())
	}
	return httpx.Chain(mux,
		httpx.RequestID(),
		httpx.RecoverPanic(),
		httpx.Trace("api"),
		opts.metrics.Middleware,
	)
}

func (h *handler) registerRoutes(mux *http.ServeMux) {
	h.registerCoreRoutes(mux)
	h.registerRegistrationRoutes(mux)
	h.registerRoleplayRoutes(mux)
	h.registerCampaignRoutes(mux)
	h.registerChatRoutes(mux)
	h.registerCommonRoutes(mux)
	h.registerMenuRoutes(mux)
}

// handle mounts fn under method and path behind locale resolution and the
// access check. Locale and caller are resolved inside the mux so the
// outer middleware still sees the matched pattern.
func (h *handler) handle(mux *http.ServeMux, method, path string, level access, fn http.HandlerFunc) {
	mux.Handle(routepath.Pattern(method, path), i18nhttp.Middleware(h.authenticate(level, fn)))
}

func (h *handler) authenticate(level access, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := h.resolveCaller(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		switch {
		case level >= accessUser && !caller.Authenticated():
			h.fail(w, r, errUnauthenticated)
			return
		case level == accessAdmin && !caller.IsAdmin():
			h.fail(w, r, errForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithCaller(r.Context(), caller)))
	})
}

// resolveCaller reads the bearer token. Requests without one are anonymous;
// a present but invalid token is rejected.
func (h *handler) resolveCaller(r *http.Request) (requestctx.Caller, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return requestctx.Caller{}, nil
	}
	if h.tokens == nil || h.store == nil {
		return requestctx.Caller{}, errUnauthenticated
	}
	claims, err := h.tokens.Verify(raw, token.KindAccess)
	if err != nil {
		return requestctx.Caller{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid access token", err)
	}
	u, err := h.store.GetUser(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return requestctx.Caller{}, errUnauthenticated
		}
		return requestctx.Caller{}, err
	}
	if !u.IsActive {
		return requestctx.Caller{}, errUnauthenticated
	}
	return requestctx.Caller{UserID: u.ID, IsStaff: u.IsStaff, IsSuperuser: u.IsSuperuser}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func caller(r *http.Request) requestctx.Caller {
	return requestctx.CallerFromContext(r.Context())
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.WriteHTTP(w, err, requestctx.LocaleFromContext(r.Context()))
}

func (h *handler) respond(w http.ResponseWriter, status int, payload any) {
	_ = httpx.WriteJSON(w, status, payload)
}

func (h *handler) clock() time.Time {
	return h.now().UTC()
}

// pageRequest reads page_size and page_token.
func pageRequest(r *http.Request) (pagination.Request, error) {
	page, err := pagination.FromQuery(r.URL.Query(), pagination.DefaultPageSize)
	if err != nil {
		return pagination.Request{}, apperrors.WrapWithMetadata(apperrors.CodeInvalidArgument, err.Error(),
			map[string]string{"Field": pagination.PageSizeParam}, err)
	}
	return page, nil
}

// nested reports whether ?nested=true was requested.
func nested(r *http.Request) bool {
	value := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("nested")))
	return value == "true" || value == "1"
}

// resolveID maps the @me alias to the caller.
func resolveID(r *http.Request) string {
	value := strings.TrimSpace(r.PathValue("id"))
	if value == routepath.Me {
		return caller(r).UserID
	}
	return value
}

// notFound hides records the caller may not see.
func notFound() error {
	return storage.ErrNotFound
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
