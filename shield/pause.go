package shield

import (
	"net/http"
	"os"
	"strings"

	"github.com/voilier/constat/gate"
)

// PauseAware returns middleware that answers 503 with the pending admin
// steps while the gate is paused. The state is re-derived from the
// filesystem on every request, so a resume takes effect immediately.
// Paths matching any of excludePrefixes pass through (health checks).
func PauseAware(g *gate.Gate, excludePrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.State() != gate.StatePaused {
				next.ServeHTTP(w, r)
				return
			}
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusServiceUnavailable)

			body := "verification paused: waiting for manual admin steps\n"
			if steps, err := os.ReadFile(g.StepsPath()); err == nil {
				body += "\n" + string(steps)
			}
			w.Write([]byte(body))
		})
	}
}
