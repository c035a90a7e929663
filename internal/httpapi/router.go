package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// RouterOptions configures SetupRouter
type RouterOptions struct {
	APIKey string
	// Metrics is served at MetricsPath without auth when set
	Metrics     http.Handler
	MetricsPath string
}

// SetupRouter sets up HTTP routes. /version and the metrics path are open;
// everything under /api requires the API key.
func SetupRouter(h *Handler, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger(h.log))

	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, opts.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(AuthMiddleware(opts.APIKey))

	api.HandleFunc("/upload-excel", h.UploadExcel).Methods(http.MethodPost)
	api.HandleFunc("/upload-path", h.UploadPath).Methods(http.MethodPost)

	api.HandleFunc("/staging/{id}", h.GetStaging).Methods(http.MethodGet)
	api.HandleFunc("/staging/{id}/logs", h.GetStagingLogs).Methods(http.MethodGet)

	api.HandleFunc("/logs", h.ListLogs).Methods(http.MethodGet)
	api.HandleFunc("/logs/all", h.ListAllLogs).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)

	api.HandleFunc("/templates", h.ListTemplates).Methods(http.MethodGet)
	api.HandleFunc("/template/{module}", h.GetTemplate).Methods(http.MethodGet)

	api.HandleFunc("/health/erpnext", h.ERPNextHealth).Methods(http.MethodGet)
	api.HandleFunc("/health/database", h.DatabaseHealth).Methods(http.MethodGet)

	api.HandleFunc("/config/erpnext", h.GetERPNextConfig).Methods(http.MethodGet)
	api.HandleFunc("/config/erpnext", h.SaveERPNextConfig).Methods(http.MethodPost)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Debug("request")
		})
	}
}
