package orchestrator

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "mime"
    "net/http"
    "net/url"
    "os"
    "path/filepath"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/pdfdeck/internal/filetype"
    "github.com/local/pdfdeck/internal/metrics"
    "github.com/local/pdfdeck/internal/pipeline"
    "github.com/local/pdfdeck/internal/queue"
    "github.com/local/pdfdeck/internal/statuscheck"
    "github.com/local/pdfdeck/internal/store"
)

type Queue interface {
    Enqueue(ctx context.Context, job queue.ConvertJob) error
    CancelJob(ctx context.Context, jobID string) error
}

type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
    Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

type Converter interface {
    Convert(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
    Formats() []string
}

// Fetcher reads inputs and stored results back by reference.
type Fetcher interface {
    Fetch(ctx context.Context, ref string) ([]byte, string, error)
}

type Health interface {
    Summary(ctx context.Context) statuscheck.Summary
}

// Dependencies wires the HTTP layer. Queue and Status are nil when Redis is
// not configured; the async endpoints then answer 503.
type Dependencies struct {
    Converter      Converter
    Queue          Queue
    Status         StatusStore
    Fetcher        Fetcher
    Health         Health
    UploadDir      string
    MaxUploadBytes int64
    DefaultFormat  string
}

type Orchestrator struct {
    deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
    if deps.MaxUploadBytes <= 0 { deps.MaxUploadBytes = filetype.DefaultMaxBytes }
    if deps.UploadDir == "" { deps.UploadDir = filepath.Join("data", "uploads") }
    return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.Handle("/metrics", metrics.Handler())
    mux.HandleFunc("/status", o.handleStatus)
    mux.HandleFunc("/convert", o.handleConvert)
    mux.HandleFunc("/convert_async", o.handleConvertAsync)
    mux.HandleFunc("/progress/", o.handleProgress)
    mux.HandleFunc("/download/", o.handleDownload)
    mux.HandleFunc("/cancel", o.handleCancel)
}

type errorResp struct {
    Success bool   `json:"success"`
    Error   string `json:"error"`
    Hint    string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg, hint string) {
    writeJSON(w, code, errorResp{Success: false, Error: msg, Hint: hint})
}

// writeConvertError maps pipeline errors onto status codes.
func writeConvertError(w http.ResponseWriter, err error) {
    var verr *filetype.ValidationError
    var cerr *pipeline.ConversionError
    switch {
    case errors.As(err, &verr):
        writeError(w, http.StatusBadRequest, verr.Error(), "")
    case errors.As(err, &cerr):
        writeError(w, http.StatusUnprocessableEntity, cerr.Error(), cerr.Hint)
    default:
        writeError(w, http.StatusInternalServerError, err.Error(), pipeline.HintFor(err))
    }
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
    resp := map[string]any{
        "formats": o.deps.Converter.Formats(),
        "async":   o.deps.Queue != nil && o.deps.Status != nil,
    }
    if o.deps.Health != nil {
        resp["services"] = o.deps.Health.Summary(r.Context())
    }
    writeJSON(w, http.StatusOK, resp)
}

// readUpload pulls the "file" part of a multipart request into memory.
func (o *Orchestrator) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, error) {
    // the form carries a little overhead on top of the file itself
    r.Body = http.MaxBytesReader(w, r.Body, o.deps.MaxUploadBytes+1<<20)
    if err := r.ParseMultipartForm(32 << 20); err != nil {
        var tooLarge *http.MaxBytesError
        if errors.As(err, &tooLarge) {
            return nil, "", "", &filetype.ValidationError{Field: "file", Reason: fmt.Sprintf("upload exceeds limit of %d bytes", o.deps.MaxUploadBytes)}
        }
        return nil, "", "", &filetype.ValidationError{Field: "form", Reason: "invalid multipart form"}
    }
    file, hdr, err := r.FormFile("file")
    if err != nil { return nil, "", "", &filetype.ValidationError{Field: "file", Reason: "missing file"} }
    defer file.Close()
    data, err := io.ReadAll(file)
    if err != nil { return nil, "", "", err }
    return data, hdr.Filename, hdr.Header.Get("Content-Type"), nil
}

func (o *Orchestrator) formatFrom(r *http.Request) string {
    f := r.FormValue("format")
    if f == "" { f = r.URL.Query().Get("format") }
    if f == "" { f = o.deps.DefaultFormat }
    return f
}

func (o *Orchestrator) handleConvert(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed); return
    }
    data, name, ctype, err := o.readUpload(w, r)
    if err != nil { writeConvertError(w, err); return }

    res, err := o.deps.Converter.Convert(r.Context(), pipeline.Input{Data: data, Name: name, ContentType: ctype, Format: o.formatFrom(r)})
    if err != nil {
        log.Warn().Err(err).Str("file", name).Msg("conversion rejected")
        writeConvertError(w, err)
        return
    }
    w.Header().Set("Content-Type", res.ContentType)
    w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.FileName}))
    w.Header().Set("Content-Length", strconv.Itoa(len(res.Output)))
    w.Header().Set("X-Extraction-Stage", string(res.Content.Source))
    w.Header().Set("X-Page-Count", strconv.Itoa(res.Pages))
    if res.Diagnostics.ImageBased() {
        w.Header().Set("X-Warning", "document looks image-based")
    }
    w.WriteHeader(http.StatusOK)
    _, _ = w.Write(res.Output)
}

type asyncReq struct {
    FileURL string `json:"file_url"`
    Format  string `json:"format"`
    Name    string `json:"name"`
}

type asyncResp struct {
    Success bool   `json:"success"`
    JobID   string `json:"job_id"`
    Status  string `json:"status"`
    Message string `json:"message"`
}

func (o *Orchestrator) asyncEnabled(w http.ResponseWriter) bool {
    if o.deps.Queue == nil || o.deps.Status == nil {
        writeError(w, http.StatusServiceUnavailable, "async conversion is not configured", "Set REDIS_URL to enable queued jobs.")
        return false
    }
    return true
}

func (o *Orchestrator) supportedFormat(format string) bool {
    f := strings.ToLower(strings.TrimSpace(format))
    if f == "" { return true }
    for _, s := range o.deps.Converter.Formats() {
        if s == f { return true }
    }
    return false
}

func (o *Orchestrator) handleConvertAsync(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed); return
    }
    if !o.asyncEnabled(w) { return }

    jobID := uuid.NewString()
    job := queue.ConvertJob{JobID: jobID, IdempotencyKey: "convert:" + jobID}

    ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
    if ct == "multipart/form-data" {
        data, name, ctype, err := o.readUpload(w, r)
        if err != nil { writeConvertError(w, err); return }
        if err := filetype.New(o.deps.MaxUploadBytes).Validate(data, ctype); err != nil { writeConvertError(w, err); return }
        path, err := o.saveUpload(jobID, name, data)
        if err != nil {
            log.Error().Err(err).Msg("cannot save upload")
            writeError(w, http.StatusInternalServerError, "cannot save upload", "")
            return
        }
        job.InputRef, job.Name, job.Format = "file://"+path, name, o.formatFrom(r)
    } else {
        var req asyncReq
        if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
            writeError(w, http.StatusBadRequest, "invalid json", ""); return
        }
        if strings.TrimSpace(req.FileURL) == "" {
            writeError(w, http.StatusBadRequest, "missing file_url", ""); return
        }
        if !remoteInput(req.FileURL) {
            writeError(w, http.StatusBadRequest, "file_url must be an s3:// or http(s):// URL", ""); return
        }
        job.InputRef, job.Name, job.Format = req.FileURL, req.Name, req.Format
        if job.Format == "" { job.Format = o.deps.DefaultFormat }
    }
    if !o.supportedFormat(job.Format) {
        writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported output format %q", job.Format), ""); return
    }

    start := time.Now().UTC()
    _ = o.deps.Status.Set(r.Context(), jobID, store.Status{Status: store.StateQueued, Message: "queued", Start: &start,
        Metadata: map[string]interface{}{"input": job.InputRef, "format": job.Format}})
    if err := o.deps.Queue.Enqueue(r.Context(), job); err != nil {
        log.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed")
        writeError(w, http.StatusServiceUnavailable, "queue unavailable", "")
        return
    }
    log.Info().Str("job_id", jobID).Str("input", job.InputRef).Str("format", job.Format).Msg("job created")
    writeJSON(w, http.StatusAccepted, asyncResp{Success: true, JobID: jobID, Status: store.StateQueued, Message: "Conversion job created"})
}

// remoteInput reports whether a client-supplied reference names an S3 object
// or an http(s) URL. Local files are reachable only through uploads.
func remoteInput(ref string) bool {
    u, err := url.Parse(strings.TrimSpace(ref))
    if err != nil || u.Host == "" { return false }
    switch strings.ToLower(u.Scheme) {
    case "s3", "http", "https":
        return true
    }
    return false
}

func (o *Orchestrator) saveUpload(jobID, name string, data []byte) (string, error) {
    if err := os.MkdirAll(o.deps.UploadDir, 0o755); err != nil { return "", err }
    name = filepath.Base(name)
    if name == "." || name == string(filepath.Separator) || name == "" { name = "upload.pdf" }
    p := filepath.Join(o.deps.UploadDir, fmt.Sprintf("%s_%s", jobID, name))
    if err := os.WriteFile(p, data, 0o644); err != nil { return "", err }
    return p, nil
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
    if !o.asyncEnabled(w) { return }
    id := strings.TrimPrefix(r.URL.Path, "/progress/")
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil { writeError(w, http.StatusInternalServerError, "status unavailable", ""); return }
    if !ok { writeError(w, http.StatusNotFound, "job not found", ""); return }
    resp := map[string]any{
        "success":    st.Status != store.StateFailed,
        "job_id":     id,
        "status":     st.Status,
        "progress":   st.Progress,
        "message":    st.Message,
        "start_time": st.Start,
        "end_time":   st.End,
        "metadata":   st.Metadata,
    }
    if hint, _ := st.Metadata["hint"].(string); hint != "" { resp["hint"] = hint }
    writeJSON(w, http.StatusOK, resp)
}

func (o *Orchestrator) handleDownload(w http.ResponseWriter, r *http.Request) {
    if !o.asyncEnabled(w) { return }
    id := strings.TrimPrefix(r.URL.Path, "/download/")
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil || !ok { writeError(w, http.StatusNotFound, "job not found", ""); return }
    if st.Status != store.StateCompleted {
        writeJSON(w, http.StatusAccepted, map[string]any{"success": false, "job_id": id, "status": st.Status, "progress": st.Progress}); return
    }
    loc, _ := st.Metadata["result"].(string)
    if loc == "" || o.deps.Fetcher == nil { writeError(w, http.StatusNotFound, "result not available", ""); return }
    b, _, err := o.deps.Fetcher.Fetch(r.Context(), loc)
    if err != nil {
        log.Error().Err(err).Str("job_id", id).Str("result", loc).Msg("result read failed")
        writeError(w, http.StatusInternalServerError, "failed to read result", ""); return
    }
    ctype, _ := st.Metadata["content_type"].(string)
    if ctype == "" { ctype = "application/octet-stream" }
    name, _ := st.Metadata["file_name"].(string)
    if name == "" { name = filepath.Base(loc) }
    w.Header().Set("Content-Type", ctype)
    w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
    _, _ = w.Write(b)
}

type cancelReq struct {
    JobID  string `json:"job_id"`
    Reason string `json:"reason,omitempty"`
}

func (o *Orchestrator) handleCancel(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if !o.asyncEnabled(w) { return }
    var req cancelReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil { writeError(w, http.StatusBadRequest, "invalid json", ""); return }
    if req.JobID == "" { writeError(w, http.StatusBadRequest, "missing job_id", ""); return }
    st, ok, _ := o.deps.Status.Get(r.Context(), req.JobID)
    if ok && st.Terminal() {
        writeError(w, http.StatusConflict, fmt.Sprintf("job already %s", st.Status), ""); return
    }
    // mark cancelled in queue store
    if err := o.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
        writeError(w, http.StatusInternalServerError, "cancel failed", ""); return
    }
    st.Status = store.StateCancelled
    st.Progress = 0
    if req.Reason != "" { st.Message = fmt.Sprintf("Cancelled: %s", req.Reason) } else { st.Message = "Cancelled" }
    now := time.Now().UTC(); st.End = &now
    _ = o.deps.Status.Set(r.Context(), req.JobID, st)
    writeJSON(w, http.StatusOK, map[string]any{"success": true, "job_id": req.JobID, "status": store.StateCancelled})
}
