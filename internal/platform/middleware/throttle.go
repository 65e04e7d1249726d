// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/constants"
	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-identity/internal/platform/respond"
	"github.com/taibuivan/yomira-identity/internal/platform/throttle"
)

// Throttler admits or rejects a hit for a bucket key.
type Throttler interface {
	Allow(ctx context.Context, key string) (throttle.Decision, error)
}

// Throttle caps hits per client IP on a single scope (e.g. "login").
//
// A Redis outage fails open: the request proceeds and a warning is logged,
// so an unavailable limiter never locks users out of authentication.
func Throttle(limiter Throttler, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			key := scope + ":" + RealIP(request)

			decision, err := limiter.Allow(request.Context(), key)
			if err != nil {
				ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "throttle_unavailable",
					slog.String("scope", scope),
					slog.Any("error", err),
				)
				next.ServeHTTP(writer, request)
				return
			}

			if !decision.Allowed {
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				writer.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))
				respond.Error(writer, request, apperr.RateLimited(retryAfter))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
