package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"blog/pkg/accesslog"
	"blog/pkg/logger"
	"blog/pkg/ratelimit"
)

const sinkTimeout = 10 * time.Second

type ctxKeyRequestID struct{}

var RequestIDKey = ctxKeyRequestID{}

func (api *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			id, err := uuid.NewV4()
			if err != nil {
				log.Errorf("[requestIDMiddleware] failed to generate request ID for %v: %v", r.RemoteAddr, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			reqID = id.String()
			log.Debugf("[requestIDMiddleware] generated request ID:%s for %v", reqID, r.RemoteAddr)
		}

		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (api *API) headerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware hands an access log entry to sink once the response is
// written. Delivery runs in the background and never delays the response.
func (api *API) loggingMiddleware(sink accesslog.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := logger.New(w)
			defer func() {
				entry := accesslog.Entry{
					Timestamp:  time.Now(),
					IP:         ratelimit.ClientIP(r),
					StatusCode: lw.Status(),
					RequestID:  GetRequestID(r.Context()),
					Method:     r.Method,
					Path:       r.URL.Path,
					Duration:   time.Since(start).Seconds(),
					Bytes:      lw.BytesWritten(),
					Service:    api.ServiceName,
				}

				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
					defer cancel()

					if err := sink.Send(ctx, entry); err != nil {
						log.Errorf("[loggingMiddleware] failed to send log entry request_id:%s: %v", entry.RequestID, err)
						return
					}
					log.Debugf("[loggingMiddleware] log entry sent request_id:%s", entry.RequestID)
				}()
			}()

			next.ServeHTTP(lw, r)
		})
	}
}
