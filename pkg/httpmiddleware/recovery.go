package httpmiddleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/lewisedginton/session_concierge/pkg/logger"
)

const recoveryResponse = `{"status":"error","error":"internal server error"}`

// Recovery returns a middleware that recovers from panics, logs them with the
// request's correlation ID and stack, and answers 500 with a JSON body.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// the server aborts the connection itself
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logPanic(r, rec, log)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Connection", "close")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(recoveryResponse))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func logPanic(r *http.Request, rec any, log logger.Logger) {
	fields := []logger.LogField{
		logger.StringField("panic_error", fmt.Sprintf("%v", rec)),
		logger.HTTPMethodField(r.Method),
		logger.HTTPPathField(r.URL.Path),
		logger.ClientIPField(r.RemoteAddr),
		logger.StringField("user_agent", r.UserAgent()),
		logger.StringField("stack_trace", string(debug.Stack())),
	}
	if r.ContentLength > 0 {
		fields = append(fields, logger.Int64Field("content_length", r.ContentLength))
	}

	logger.FromContext(r.Context(), log).Error("HTTP request panic recovered", fields...)
}
