package router

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

// Access lines go to stdout; colors only when it is a terminal
var (
	accessLog = log.New(colorable.NewColorableStdout(), "", 0)
	useColor  = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
)

func paint(color, s string) string {
	if !useColor {
		return s
	}
	return color + s + colorReset
}

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Middleware wraps a handler, in the net/http style used by chi and cors
type Middleware func(http.Handler) http.Handler

type Router struct {
	mux         *http.ServeMux
	routes      map[string]HandlerFunc  // key = METHOD:PATH
	paths       map[string]bool         // track registered paths
	mounts      map[string]http.Handler // path prefix -> handler
	middlewares []Middleware
	handler     http.Handler
}

func New() *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
		mounts: make(map[string]http.Handler),
	}

	// Catch-all handler dispatching to registered routes
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		r.dispatch(lrw, req)

		duration := time.Since(start)
		accessLog.Printf("%s %s %s %s %s",
			paint(colorCyan, "["+start.Format("2006-01-02 15:04:05")+"]"),
			paint(methodColor(req.Method), req.Method),
			req.URL.Path,
			paint(statusColor(lrw.statusCode), fmt.Sprint(lrw.statusCode)),
			paint(colorBlue, fmt.Sprintf("(%v)", duration)),
		)
	})

	return r
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	if h, ok := r.routes[req.Method+":"+req.URL.Path]; ok {
		h(w, req)
		return
	}
	if h, ok := r.mountFor(req.URL.Path); ok {
		h.ServeHTTP(w, req)
		return
	}

	// Most specific wildcard route wins: more literal segments first
	pathMatched := r.paths[req.URL.Path]
	for _, routePath := range r.wildcardPaths() {
		if !matchWildcardRoute(req.URL.Path, routePath) {
			continue
		}
		pathMatched = true
		if h, ok := r.routes[req.Method+":"+routePath]; ok {
			h(w, req)
			return
		}
	}

	if pathMatched {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

func (r *Router) mountFor(path string) (http.Handler, bool) {
	best := ""
	for prefix := range r.mounts {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, false
	}
	return r.mounts[best], true
}

func (r *Router) wildcardPaths() []string {
	var wild []string
	for p := range r.paths {
		if strings.Contains(p, "*") {
			wild = append(wild, p)
		}
	}
	sort.Slice(wild, func(i, j int) bool {
		li, lj := literalSegments(wild[i]), literalSegments(wild[j])
		if li != lj {
			return li > lj
		}
		return wild[i] < wild[j]
	})
	return wild
}

func literalSegments(p string) int {
	n := 0
	for _, s := range strings.Split(strings.Trim(p, "/"), "/") {
		if s != "*" {
			n++
		}
	}
	return n
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern.
// A "*" segment matches exactly one segment, except a trailing "*" which
// matches one or more.
func matchWildcardRoute(requestPath, routePattern string) bool {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	last := len(routeSegments) - 1
	trailing := routeSegments[last] == "*"
	if trailing && len(requestSegments) < len(routeSegments) {
		return false
	}
	if !trailing && len(requestSegments) != len(routeSegments) {
		return false
	}

	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			if requestSegments[i] == "" {
				return false
			}
			continue
		}
		if requestSegments[i] != routeSegment {
			return false
		}
	}
	return true
}

// Segment returns the i-th segment of a request path, or ""
func Segment(req *http.Request, i int) string {
	segs := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if i < 0 || i >= len(segs) {
		return ""
	}
	return segs[i]
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	r.routes[key] = handler
	r.paths[path] = true
	r.handler = nil
}

func (r *Router) GET(path string, handler HandlerFunc)    { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)   { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)    { r.register(http.MethodPut, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) { r.register(http.MethodDelete, path, handler) }

// Mount serves every path below prefix with h
func (r *Router) Mount(prefix string, h http.Handler) {
	r.mounts[prefix] = h
	r.handler = nil
}

// Use appends middleware; the first one added is the outermost
func (r *Router) Use(mw ...Middleware) {
	r.middlewares = append(r.middlewares, mw...)
	r.handler = nil
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

// Handler returns the router wrapped in its middleware
func (r *Router) Handler() http.Handler {
	if r.handler != nil {
		return r.handler
	}
	var h http.Handler = r.mux
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}
	r.handler = h
	return h
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Handler().ServeHTTP(w, req)
}

// --- Start server ---
func (r *Router) Start(addr string) error {
	log.Printf("🚀 Server started on %s", paint(colorGreen, "http://localhost"+addr))
	return http.ListenAndServe(addr, r.Handler())
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// --- Color helpers ---
func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodPut:
		return colorYellow
	case http.MethodDelete:
		return colorRed
	default:
		return colorCyan
	}
}
