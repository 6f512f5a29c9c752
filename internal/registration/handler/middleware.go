package handler

import (
	"context"
	"log/slog"
	"net/http"

	"zonasi/internal/schedule"
	derrors "zonasi/pkg/domain-errors"
	"zonasi/pkg/platform/httputil"
	"zonasi/pkg/requestcontext"
)

type windowContextKey struct{}

// WindowFromContext returns the registration window injected by
// RequireRegistrationWindow.
func WindowFromContext(ctx context.Context) (schedule.Window, bool) {
	window, ok := ctx.Value(windowContextKey{}).(schedule.Window)
	return window, ok
}

func withWindow(ctx context.Context, window schedule.Window) context.Context {
	return context.WithValue(ctx, windowContextKey{}, window)
}

// RequireRegistrationWindow gates mutating endpoints on an open registration
// window for the periode_jalur_id query parameter. The resolved window is
// injected into the request context for handlers to read.
func RequireRegistrationWindow(schedules schedule.Client, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			periodeJalurID, err := intParam(r.URL.Query().Get("periode_jalur_id"), "periode_jalur_id")
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			windows, err := schedules.Jadwal(ctx, periodeJalurID)
			if err != nil {
				logger.ErrorContext(ctx, "failed to load schedule",
					"request_id", requestcontext.RequestID(ctx),
					"periode_jalur_id", periodeJalurID,
					"error", err,
				)
				httputil.WriteError(w, derrors.Wrap(err, derrors.CodeUnavailable, "failed to load schedule"))
				return
			}

			window, err := schedule.ActiveWindow(windows, requestcontext.Now(ctx))
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withWindow(ctx, window)))
		})
	}
}
