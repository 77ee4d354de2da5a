package simserver

import (
	"net/http"
	"strings"

	"github.com/pmaojo/apicentric/pkg/spec"
)

// applyCORS attaches Access-Control-Allow-* headers to every response and
// reports whether the request was a preflight OPTIONS that has now been
// fully answered (caller should return without further processing).
func applyCORS(w http.ResponseWriter, r *http.Request, cors *spec.CORS) bool {
	if cors == nil || !cors.Enabled {
		return false
	}

	origin := allowedOrigin(cors, r.Header.Get("Origin"))
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}

	if r.Method != http.MethodOptions {
		return false
	}

	methods := cors.Methods
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	w.Header().Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))

	if len(cors.Headers) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(cors.Headers, ", "))
	}

	w.WriteHeader(http.StatusNoContent)
	return true
}

func allowedOrigin(cors *spec.CORS, requestOrigin string) string {
	if len(cors.Origins) == 0 {
		return "*"
	}
	for _, o := range cors.Origins {
		if o == "*" || o == requestOrigin {
			return o
		}
	}
	return ""
}
