package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/wastewatch/pkg/apperr"
	"mercator-hq/wastewatch/pkg/httpapi/types"
)

// Recovery turns a panic in a handler into a 500 with the generic error
// body. The panic value and stack are logged, never returned.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			WriteJSON(w, http.StatusInternalServerError, types.NewErrorResponse(apperr.MsgUnknown))
		}()

		next.ServeHTTP(w, r)
	})
}
