package handler

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/favorite-places/backend/internal/handler/places"
	"github.com/zhouzirui/favorite-places/backend/pkg/utils"
)

// notFoundBody is never empty; some HTTP clients fail on empty 404 bodies.
const notFoundBody = "Not Found"

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// NewRouter wires the fixed route table to the catalog. identity is the body
// served on the root route so clients can recognise this service.
func NewRouter(catalog places.Catalog, identity string) http.Handler {
	r := chi.NewRouter()

	r.Use(rejectMalformed)
	r.Use(normalize)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.NotFound(handleNotFound)
	// Unknown methods on known paths are plain misses too.
	r.MethodNotAllowed(handleNotFound)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondText(w, http.StatusOK, identity)
	})

	places.New(catalog).RegisterRoutes(r)

	return r
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	utils.RespondText(w, http.StatusNotFound, notFoundBody)
}

// rejectMalformed answers 400 for requests without a method or target.
func rejectMalformed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "" || r.URL == nil {
			utils.RespondEmpty(w, http.StatusBadRequest, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// normalize uppercases the method and routes on the normalized request
// target. The target stays escaped and keeps its query, so encoded
// characters and query strings never alias a known route.
func normalize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(r.Context())
		r.Method = strings.ToUpper(r.Method)

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			rctx.RoutePath = NormalizePath(r.URL.RequestURI())
		}
		next.ServeHTTP(w, r)
	})
}

// NormalizePath collapses repeated slashes and drops a trailing slash. The
// root normalizes to "/".
func NormalizePath(path string) string {
	path = repeatedSlashes.ReplaceAllString(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "/"
	}
	return path
}
