package api

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/prometheus/common/expfmt"
)

var contentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

var landing = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html>
<head><title>RCON Exporter</title></head>
<body>
<h1>RCON Exporter</h1>
<p>Target: {{.Target}}</p>
<ul>
<li><a href="{{.MetricsPath}}">Metrics</a></li>
<li><a href="/healthz">Health</a></li>
</ul>
</body>
</html>
`))

// Handler serves the metrics, health and landing endpoints.
type Handler struct {
	src         Source
	metricsPath string
	target      func() string
	mux         *http.ServeMux
}

// New creates a Handler for src and registers all routes. target supplies
// the server address shown on the landing page.
func New(src Source, metricsPath string, target func() string) http.Handler {
	h := &Handler{src: src, metricsPath: metricsPath, target: target, mux: http.NewServeMux()}

	h.mux.HandleFunc(metricsPath, h.metrics)
	h.mux.HandleFunc("/healthz", h.health)
	h.mux.HandleFunc("/", h.index)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// metrics returns GET <metricsPath>, the exposition text.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out, err := h.src.Metrics(r.Context())
	if err != nil {
		slog.Error("api: render metrics", "err", err)
		http.Error(w, "failed to render metrics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(out) //nolint:errcheck
}

// health returns GET /healthz.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.src.Health())
}

// index returns GET /, the landing page. Every other unmatched path is 404.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := landing.Execute(w, struct{ Target, MetricsPath string }{h.target(), h.metricsPath})
	if err != nil {
		slog.Error("api: render landing page", "err", err)
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
