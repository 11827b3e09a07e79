package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/AdamBeresnev/box-league-engine/internal/httputil"
)

// TimeoutBudgetHeader lets a caller shorten the time an operation may take, as a Go
// duration such as "750ms".
const TimeoutBudgetHeader = "X-Timeout-Budget"

// TimeoutBudget bounds every request context. The caller's budget applies when it is
// shorter than limit; a request without one gets limit.
func TimeoutBudget(limit time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			budget := limit
			if header := r.Header.Get(TimeoutBudgetHeader); header != "" {
				d, err := time.ParseDuration(header)
				if err != nil || d <= 0 {
					httputil.BadRequest(w, r, "invalid "+TimeoutBudgetHeader+" header", err)
					return
				}
				budget = min(d, limit)
			}

			ctx, cancel := context.WithTimeout(r.Context(), budget)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
