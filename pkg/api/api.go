package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"blog/pkg/accesslog"
	"blog/pkg/blog"
	"blog/pkg/ratelimit"
	"blog/pkg/storage"
)

const retryAfter = time.Second

type API struct {
	ServiceName string
	Router      *mux.Router

	snap    *blog.Snapshot
	db      storage.Store
	fetcher *blog.Fetcher
	sink    accesslog.Sink
	limiter *ratelimit.Store
}

type Option func(*API)

// WithSink ships an access log entry for every request to s.
func WithSink(s accesslog.Sink) Option {
	return func(api *API) { api.sink = s }
}

// WithLimiter rate limits the load-more routes per client.
func WithLimiter(l *ratelimit.Store) Option {
	return func(api *API) { api.limiter = l }
}

func New(name string, snap *blog.Snapshot, db storage.Store, fetcher *blog.Fetcher, opts ...Option) (*API, error) {
	if snap == nil || db == nil || fetcher == nil {
		return nil, ErrMissingDependency
	}

	api := API{
		ServiceName: name,
		Router:      mux.NewRouter(),
		snap:        snap,
		db:          db,
		fetcher:     fetcher,
	}
	for _, opt := range opts {
		opt(&api)
	}
	api.endpoints()

	return &api, nil
}

func (api *API) endpoints() {
	api.Router.Use(api.requestIDMiddleware)

	if api.sink != nil {
		api.Router.Use(api.loggingMiddleware(api.sink))
	}

	more := func(h http.HandlerFunc) http.Handler { return h }
	if api.limiter != nil {
		limit := ratelimit.Middleware(api.limiter, ratelimit.ClientIP, retryAfter)
		more = func(h http.HandlerFunc) http.Handler { return limit(h) }
	}

	api.Router.HandleFunc("/", api.indexHandler).Methods(http.MethodGet)
	api.Router.Handle("/posts/more", more(api.loadMoreFormHandler)).Methods(http.MethodPost)

	sub := api.Router.PathPrefix("/api").Subrouter()
	sub.Use(api.headerMiddleware)

	sub.HandleFunc("/posts", api.firstPageHandler).Methods(http.MethodGet)
	sub.HandleFunc("/sessions", api.createSessionHandler).Methods(http.MethodPost)
	sub.HandleFunc("/sessions/{id}", api.sessionHandler).Methods(http.MethodGet)
	sub.Handle("/sessions/{id}/more", more(api.loadMoreHandler)).Methods(http.MethodPost)
}

// newSession starts a post list from the current first page.
func (api *API) newSession(ctx context.Context) (*blog.Session, error) {
	page, err := api.snap.Current()
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	s := blog.NewSession(id, page)
	if err := api.db.AddSession(ctx, s); err != nil {
		return nil, err
	}

	return s, nil
}

// pageSession returns the session named by raw, or a fresh one if raw is
// empty, malformed or no longer known.
func (api *API) pageSession(ctx context.Context, raw string) (*blog.Session, error) {
	if raw != "" {
		if id, err := uuid.FromString(raw); err == nil {
			s, err := api.db.Session(ctx, id)
			if err == nil {
				return s, nil
			}
			if !errors.Is(err, storage.ErrSessionNotFound) {
				return nil, err
			}
		}
	}

	return api.newSession(ctx)
}

func (api *API) indexHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	s, err := api.pageSession(r.Context(), r.URL.Query().Get("s"))
	if err != nil {
		if errors.Is(err, blog.ErrNotPrepared) {
			renderError(w, http.StatusServiceUnavailable, msgUnavailable)
			log.Warnf("[indexHandler][%s] first page not prepared", sID)
			return
		}
		renderError(w, http.StatusInternalServerError, msgInternal)
		log.Errorf("[indexHandler][%s] failed to start session: %v", sID, err)
		return
	}

	if err := renderIndex(w, s); err != nil {
		log.Errorf("[indexHandler][%s] failed to render index: %v", sID, err)
		return
	}

	log.Debugf("[indexHandler][%s] session %s rendered with %d posts to: %v", sID, shorten(s.ID.String()), s.Len(), r.RemoteAddr)
}

func (api *API) loadMoreFormHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	id, err := uuid.FromString(r.PostFormValue("session"))
	if err != nil {
		http.Error(w, "Invalid session parameter", http.StatusBadRequest)
		log.Debugf("[loadMoreFormHandler][%s] failed to parse session ID: %v", sID, err)
		return
	}

	s, err := api.db.Session(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			log.Debugf("[loadMoreFormHandler][%s] session %s expired, starting over", sID, shorten(id.String()))
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[loadMoreFormHandler][%s] session ID:%v: %v", sID, id, err)
		return
	}

	page, err := s.LoadMore(r.Context(), api.fetcher)
	switch {
	case err == nil:
		log.Debugf("[loadMoreFormHandler][%s] appended %d posts, more: %v", sID, len(page.Posts), page.HasMore())
	case errors.Is(err, blog.ErrNoMorePages):
		log.Debugf("[loadMoreFormHandler][%s] session %s has no more pages", sID, shorten(id.String()))
	default:
		log.Warnf("[loadMoreFormHandler][%s] load more failed: %v", sID, err)
	}

	http.Redirect(w, r, "/?s="+url.QueryEscape(id.String()), http.StatusSeeOther)
}

func (api *API) firstPageHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	page, err := api.snap.Current()
	if err != nil {
		http.Error(w, msgUnavailable, http.StatusServiceUnavailable)
		log.Warnf("[firstPageHandler][%s] first page not prepared", sID)
		return
	}

	if err := json.NewEncoder(w).Encode(page); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[firstPageHandler][%s] failed to encode response data: %v", sID, err)
		return
	}

	log.Debugf("[firstPageHandler][%s] response sent to: %v", sID, r.RemoteAddr)
}

func (api *API) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	s, err := api.newSession(r.Context())
	if err != nil {
		if errors.Is(err, blog.ErrNotPrepared) {
			http.Error(w, msgUnavailable, http.StatusServiceUnavailable)
			log.Warnf("[createSessionHandler][%s] first page not prepared", sID)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[createSessionHandler][%s] failed to create session: %v", sID, err)
		return
	}

	page := s.Page()
	resp := SessionResponse{
		SessionID: s.ID,
		State:     s.State().String(),
		NextPage:  page.Cursor,
		Results:   page.Posts,
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Errorf("[createSessionHandler][%s] failed to encode response data: %v", sID, err)
		return
	}

	log.Debugf("[createSessionHandler][%s] session %s created for: %v", sID, shorten(s.ID.String()), r.RemoteAddr)
}

func (api *API) sessionHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	s, ok := api.lookupSession(w, r, "sessionHandler")
	if !ok {
		return
	}

	page := s.Page()
	resp := SessionResponse{
		SessionID: s.ID,
		State:     s.State().String(),
		NextPage:  page.Cursor,
		Results:   page.Posts,
	}
	if err := s.LastError(); err != nil {
		resp.Error = msgLoadMoreFailed
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[sessionHandler][%s] failed to encode response data: %v", sID, err)
		return
	}

	log.Debugf("[sessionHandler][%s] response sent to: %v", sID, r.RemoteAddr)
}

func (api *API) loadMoreHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	s, ok := api.lookupSession(w, r, "loadMoreHandler")
	if !ok {
		return
	}

	page, err := s.LoadMore(r.Context(), api.fetcher)
	if err != nil {
		code := statusFor(err)
		http.Error(w, http.StatusText(code), code)
		if code == http.StatusConflict {
			log.Debugf("[loadMoreHandler][%s] session %s has no more pages", sID, shorten(s.ID.String()))
			return
		}
		log.Warnf("[loadMoreHandler][%s] load more failed: %v", sID, err)
		return
	}

	if err := json.NewEncoder(w).Encode(page); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[loadMoreHandler][%s] failed to encode response data: %v", sID, err)
		return
	}

	log.Debugf("[loadMoreHandler][%s] appended %d posts, more: %v", sID, len(page.Posts), page.HasMore())
}

// lookupSession resolves the {id} route variable. It writes the error
// response itself and reports false when there is no session to work on.
func (api *API) lookupSession(w http.ResponseWriter, r *http.Request, handler string) (*blog.Session, bool) {
	sID := shorten(GetRequestID(r.Context()))

	id, err := uuid.FromString(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid UUID parameter", http.StatusBadRequest)
		log.Debugf("[%s][%s] failed to parse session ID: %v", handler, sID, err)
		return nil, false
	}

	s, err := api.db.Session(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			log.Debugf("[%s][%s] failed to retrieve session: %v", handler, sID, err)
			return nil, false
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[%s][%s] session ID:%v: %v", handler, sID, id, err)
		return nil, false
	}

	return s, true
}

// GetRequestID extracts the request ID from the context.
// It returns the request ID as a string if present, otherwise returns an empty string.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
