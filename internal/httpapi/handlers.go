package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/batch"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/client"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/entity"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/importer"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/ingest"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/logging"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/settings"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/version"
)

const (
	defaultLogLimit = 50
	allLogsLimit    = 100
	// multipart framing allowance on top of the file size limit
	multipartOverhead = 1 << 20
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Uploader stages uploads
type Uploader interface {
	Upload(ctx context.Context, req importer.UploadRequest) (*importer.UploadResult, error)
	UploadFromPath(ctx context.Context, req importer.PathRequest) (*importer.UploadResult, error)
}

// CredentialStore reads and writes the stored ERPNext credentials
type CredentialStore interface {
	Stored(ctx context.Context) (client.Credentials, error)
	Save(ctx context.Context, c client.Credentials) error
}

// Remote is the part of the ERPNext client the API uses
type Remote interface {
	CheckHealth(ctx context.Context) client.Result
	ForceReinit()
}

// Deps are the collaborators of a Handler
type Deps struct {
	Uploader       Uploader
	Store          batch.Store
	Credentials    CredentialStore
	Remote         Remote
	MaxUploadBytes int64
	Logger         logrus.FieldLogger
}

// Handler handles HTTP requests
type Handler struct {
	uploader       Uploader
	store          batch.Store
	credentials    CredentialStore
	remote         Remote
	maxUploadBytes int64
	log            logrus.FieldLogger
}

// NewHandler creates a new handler
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	return &Handler{
		uploader:       d.Uploader,
		store:          d.Store,
		credentials:    d.Credentials,
		remote:         d.Remote,
		maxUploadBytes: d.MaxUploadBytes,
		log:            d.Logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// GetVersion handles GET /version
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Info())
}

// UploadExcel handles POST /api/upload-excel
func (h *Handler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeMessage(w, http.StatusRequestEntityTooLarge, ingest.ErrTooLarge.Error())
			return
		}
		writeMessage(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	module := strings.TrimSpace(r.FormValue("module"))
	if module == "" {
		writeMessage(w, http.StatusBadRequest, "Module is required")
		return
	}

	var reader io.Reader = file
	if h.maxUploadBytes > 0 {
		reader = io.LimitReader(file, h.maxUploadBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Failed to read file: %v", err))
		return
	}
	if h.maxUploadBytes > 0 && int64(len(content)) > h.maxUploadBytes {
		writeMessage(w, http.StatusRequestEntityTooLarge, ingest.ErrTooLarge.Error())
		return
	}

	res, err := h.uploader.Upload(r.Context(), importer.UploadRequest{
		Filename:    header.Filename,
		EntityType:  moduleType(module),
		Content:     content,
		Encoding:    r.FormValue("encoding"),
		Delimiter:   r.FormValue("delimiter"),
		SkipMapping: r.FormValue("mapFields") == "false",
	})
	h.writeUploadResult(w, res, err)
}

// UploadPath handles POST /api/upload-path
func (h *Handler) UploadPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InputPath string `json:"inputPath"`
		Module    string `json:"module"`
		Encoding  string `json:"encoding"`
		Delimiter string `json:"delimiter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if req.InputPath == "" {
		writeMessage(w, http.StatusBadRequest, "inputPath is required")
		return
	}
	if strings.TrimSpace(req.Module) == "" {
		writeMessage(w, http.StatusBadRequest, "Module is required")
		return
	}

	res, err := h.uploader.UploadFromPath(r.Context(), importer.PathRequest{
		InputPath:  req.InputPath,
		EntityType: moduleType(req.Module),
		Encoding:   req.Encoding,
		Delimiter:  req.Delimiter,
	})
	h.writeUploadResult(w, res, err)
}

func (h *Handler) writeUploadResult(w http.ResponseWriter, res *importer.UploadResult, err error) {
	if err == nil {
		warnings := res.Warnings
		if warnings == nil {
			warnings = []ingest.Issue{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":     "File uploaded successfully",
			"stagingId":   res.StagingID,
			"recordCount": res.RecordCount,
			"checksum":    res.Checksum,
			"warnings":    warnings,
		})
		return
	}

	var verr *importer.ValidationError
	var perr *ingest.ParseError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message":  "Validation failed",
			"errors":   verr.Result.Errors,
			"warnings": verr.Result.Warnings,
		})
	case errors.As(err, &perr):
		writeMessage(w, http.StatusBadRequest, perr.Error())
	case errors.Is(err, ingest.ErrTooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, importer.ErrQueueFull):
		writeMessage(w, http.StatusTooManyRequests, "Queue is full, please try again later")
	case errors.Is(err, ingest.ErrOutsideBaseDir):
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid input path: %v", err))
	default:
		h.log.WithError(err).Error("upload failed")
		writeMessage(w, http.StatusInternalServerError, err.Error())
	}
}

// GetStaging handles GET /api/staging/{id}
func (h *Handler) GetStaging(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.GetBatch(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, batch.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Import not found")
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GetStagingLogs handles GET /api/staging/{id}/logs
func (h *Handler) GetStagingLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.store.GetBatch(r.Context(), id); err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Import not found")
			return
		}
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	logs, err := h.store.LogsForBatch(r.Context(), id)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []*batch.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// ListLogs handles GET /api/logs?status=&limit=
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var (
		logs []*batch.LogEntry
		err  error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		s := batch.LogStatus(status)
		if s != batch.LogSuccess && s != batch.LogFailed && s != batch.LogProcessing {
			writeMessage(w, http.StatusBadRequest, "status must be 'success', 'failed' or 'processing'")
			return
		}
		logs, err = h.store.ListLogsByStatus(r.Context(), s, limit)
	} else {
		logs, err = h.store.ListLogs(r.Context(), limit)
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// ListAllLogs handles GET /api/logs/all
func (h *Handler) ListAllLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.store.ListLogs(r.Context(), allLogsLimit)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// GetStats handles GET /api/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := batch.ComputeStats(r.Context(), h.store)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetTemplate handles GET /api/template/{module}
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := entity.Parse(mux.Vars(r)["module"])
	if err != nil {
		writeMessage(w, http.StatusNotFound, "Template not found")
		return
	}
	tpl, ok := ingest.TemplateFor(t)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Template not found")
		return
	}
	content, err := tpl.Build()
	if err != nil {
		h.log.WithError(err).WithField("module", string(t)).Error("template generation failed")
		writeMessage(w, http.StatusInternalServerError, "Failed to generate template")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tpl.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	_, _ = w.Write(content)
}

// ListTemplates handles GET /api/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]interface{}, 0, len(ingest.Templates()))
	for _, tpl := range ingest.Templates() {
		out = append(out, map[string]interface{}{
			"module":   string(tpl.Entity),
			"slug":     tpl.Entity.Slug(),
			"fileName": tpl.FileName,
			"columns":  tpl.Columns,
			"required": ingest.RequiredFields(tpl.Entity),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ERPNextHealth handles GET /api/health/erpnext. The probe result is the
// body; an unreachable ERPNext is still a 200 with success false.
func (h *Handler) ERPNextHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.remote.CheckHealth(r.Context()))
}

// DatabaseHealth handles GET /api/health/database
func (h *Handler) DatabaseHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":       "unhealthy",
			"message":      err.Error(),
			"responseTime": time.Since(start).Milliseconds(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"responseTime": time.Since(start).Milliseconds(),
	})
}

type erpnextConfig struct {
	BaseURL   string `json:"baseUrl"`
	APIKey    string `json:"apiKey"`
	APISecret string `json:"apiSecret"`
}

// GetERPNextConfig handles GET /api/config/erpnext. The secret is masked.
func (h *Handler) GetERPNextConfig(w http.ResponseWriter, r *http.Request) {
	c, err := h.credentials.Stored(r.Context())
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, erpnextConfig{
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		APISecret: settings.Mask(c.APISecret),
	})
}

// SaveERPNextConfig handles POST /api/config/erpnext
func (h *Handler) SaveERPNextConfig(w http.ResponseWriter, r *http.Request) {
	var req erpnextConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	err := h.credentials.Save(r.Context(), client.Credentials{
		BaseURL:   req.BaseURL,
		APIKey:    req.APIKey,
		APISecret: req.APISecret,
	})
	if errors.Is(err, settings.ErrIncomplete) {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.remote.ForceReinit()
	h.log.Info("ERPNext configuration updated")
	writeMessage(w, http.StatusOK, "Configuration saved successfully")
}

// moduleType accepts doctype names and slugs. Unknown names pass through so
// validation reports them.
func moduleType(module string) entity.Type {
	t, err := entity.Parse(module)
	if err != nil {
		return entity.Type(strings.TrimSpace(module))
	}
	return t
}
