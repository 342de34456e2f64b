// Package platforms adapts handlers to concrete transports.
package platforms

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"mediarelay/shared/handler"
	"mediarelay/shared/observability"
	"mediarelay/shared/observability/types"

	"github.com/google/uuid"
)

const (
	codeInvalidRequest  = "INVALID_REQUEST"
	codePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	codeNotFound        = "NOT_FOUND"
	codeMethodNotAllow  = "METHOD_NOT_ALLOWED"

	defaultMaxRequestSize = 1 << 20
)

var defaultStatusCodes = map[string]int{
	handler.CodeValidation:     http.StatusBadRequest,
	codeInvalidRequest:         http.StatusBadRequest,
	handler.CodeInvalidPayload: http.StatusUnprocessableEntity,
	codePayloadTooLarge:        http.StatusRequestEntityTooLarge,
	codeNotFound:               http.StatusNotFound,
	codeMethodNotAllow:         http.StatusMethodNotAllowed,
	"UNAUTHORIZED":             http.StatusUnauthorized,
	"FORBIDDEN":                http.StatusForbidden,
	handler.CodeRateLimited:    http.StatusTooManyRequests,
	handler.CodeTimeout:        http.StatusGatewayTimeout,
	handler.CodeUnavailable:    http.StatusServiceUnavailable,
	handler.CodeInternal:       http.StatusInternalServerError,
}

// healthPaths answer with the aggregated health of every routed worker.
var healthPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/ready":   true,
	"/readyz":  true,
	"/live":    true,
	"/livez":   true,
}

type route struct {
	handler *handler.Handler
	methods map[string]bool
}

// HTTPAdapter serves a set of handlers over HTTP.
// Each route maps one path to one handler. Besides the routes it answers
// "/" (service banner), the health paths, CORS preflight, and any raw
// http.Handler mounted with Mount (such as /metrics).
type HTTPAdapter struct {
	serviceName string
	routes      map[string]route
	mounts      map[string]http.Handler
	statusCodes map[string]int
	logger      observability.Logger
}

// NewHTTPAdapter creates an adapter with no routes.
func NewHTTPAdapter(serviceName string, provider observability.Provider) *HTTPAdapter {
	codes := make(map[string]int, len(defaultStatusCodes))
	for k, v := range defaultStatusCodes {
		codes[k] = v
	}
	return &HTTPAdapter{
		serviceName: serviceName,
		routes:      make(map[string]route),
		mounts:      make(map[string]http.Handler),
		statusCodes: codes,
		logger:      provider.Logger("http"),
	}
}

// Route registers h for path. With no methods, POST is accepted.
func (a *HTTPAdapter) Route(path string, h *handler.Handler, methods ...string) *HTTPAdapter {
	if len(methods) == 0 {
		methods = []string{http.MethodPost}
	}
	allowed := make(map[string]bool, len(methods))
	for _, m := range methods {
		allowed[strings.ToUpper(m)] = true
	}
	a.routes[path] = route{handler: h, methods: allowed}
	return a
}

// Mount serves path with a plain http.Handler, bypassing the worker pipeline.
func (a *HTTPAdapter) Mount(path string, h http.Handler) *HTTPAdapter {
	a.mounts[path] = h
	return a
}

// WithStatusCodes adds or overrides error-code to HTTP status mappings.
func (a *HTTPAdapter) WithStatusCodes(codes map[string]int) *HTTPAdapter {
	for k, v := range codes {
		a.statusCodes[k] = v
	}
	return a
}

// ServeHTTP implements the http.Handler interface.
func (a *HTTPAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := a.extractRequestID(r)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set("X-Request-ID", requestID)

	a.applyCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path := r.URL.Path

	if mounted, ok := a.mounts[path]; ok {
		mounted.ServeHTTP(w, r)
		return
	}

	if healthPaths[path] {
		a.handleHealth(w, r)
		return
	}

	if path == "/" {
		a.handleRoot(w, r, requestID)
		return
	}

	rt, ok := a.routes[path]
	if !ok {
		a.writeErrorResponse(w, handler.NewErrorResponse(requestID, codeNotFound, "Not Found", path))
		return
	}
	if !rt.methods[r.Method] {
		a.writeErrorResponse(w, handler.NewErrorResponse(requestID, codeMethodNotAllow, "Method Not Allowed", r.Method))
		return
	}

	body, err := a.readBody(w, r, rt.handler)
	if err != nil {
		code := codeInvalidRequest
		msg := "Failed to read request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = codePayloadTooLarge
			msg = "Request body too large"
		}
		a.writeErrorResponse(w, handler.NewErrorResponse(requestID, code, msg, err.Error()))
		return
	}

	req := a.buildRequest(r, requestID, body)

	resp, err := rt.handler.Handle(r.Context(), req)
	a.writeResponse(w, r, req, resp, err)
}

// applyCORS allows every origin, method and header. A concrete origin is
// echoed so that credentialed browser requests are accepted.
func (a *HTTPAdapter) applyCORS(w http.ResponseWriter, r *http.Request) {
	h := w.Header()

	if origin := r.Header.Get("Origin"); origin != "" {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	} else {
		h.Set("Access-Control-Allow-Origin", "*")
	}

	if method := r.Header.Get("Access-Control-Request-Method"); method != "" {
		h.Set("Access-Control-Allow-Methods", method)
	} else {
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	}

	if headers := r.Header.Get("Access-Control-Request-Headers"); headers != "" {
		h.Set("Access-Control-Allow-Headers", headers)
	} else {
		h.Set("Access-Control-Allow-Headers", "*")
	}

	h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-Trace-ID")
}

func (a *HTTPAdapter) handleRoot(w http.ResponseWriter, r *http.Request, requestID string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		a.writeErrorResponse(w, handler.NewErrorResponse(requestID, codeMethodNotAllow, "Method Not Allowed", r.Method))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": a.serviceName,
	})
}

// handleHealth reports unhealthy as soon as any routed worker fails its check.
func (a *HTTPAdapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workers := make([]string, 0, len(a.routes))
	seen := make(map[string]bool, len(a.routes))
	for _, rt := range a.routes {
		name := rt.handler.Worker().Name()
		if seen[name] {
			continue
		}
		seen[name] = true
		workers = append(workers, name)

		if err := rt.handler.Health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"worker": name,
				"error":  err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": a.serviceName,
		"workers": workers,
		"time":    time.Now().UTC(),
	})
}

// readBody reads the request body bounded by the handler's MaxRequestSize.
func (a *HTTPAdapter) readBody(w http.ResponseWriter, r *http.Request, h *handler.Handler) ([]byte, error) {
	maxSize := h.Config().MaxRequestSize
	if maxSize <= 0 {
		maxSize = defaultMaxRequestSize
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	defer r.Body.Close()

	return io.ReadAll(r.Body)
}

// buildRequest creates a platform-agnostic request from an HTTP request.
// A bodiless GET becomes a JSON object of its query parameters, so
// GET /download?url=... reaches the worker like the equivalent POST.
func (a *HTTPAdapter) buildRequest(r *http.Request, requestID string, body []byte) handler.Request {
	payload := body
	if len(bytes.TrimSpace(body)) == 0 && r.Method == http.MethodGet {
		payload = queryPayload(r)
	}

	return handler.Request{
		ID:        requestID,
		Source:    "http",
		Type:      a.extractRequestType(r),
		Payload:   json.RawMessage(payload),
		Metadata:  a.extractMetadata(r),
		Timestamp: time.Now().UTC(),
	}
}

func queryPayload(r *http.Request) []byte {
	fields := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	data, _ := json.Marshal(fields)
	return data
}

// extractRequestID attempts to extract request ID from headers
func (a *HTTPAdapter) extractRequestID(r *http.Request) string {
	for _, header := range []string{"X-Request-ID", "X-Correlation-ID", "Request-ID"} {
		if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
			return id
		}
	}
	return ""
}

// extractRequestType takes the first path segment ("/download" → "download").
func (a *HTTPAdapter) extractRequestType(r *http.Request) string {
	if reqType := r.Header.Get("X-Request-Type"); reqType != "" {
		return reqType
	}

	path := strings.Trim(r.URL.Path, "/")
	if path != "" {
		if idx := strings.Index(path, "/"); idx > 0 {
			return path[:idx]
		}
		return path
	}

	return strings.ToLower(r.Method)
}

// extractMetadata builds metadata from HTTP request
func (a *HTTPAdapter) extractMetadata(r *http.Request) map[string]string {
	metadata := make(map[string]string)

	metadata["http_method"] = r.Method
	metadata["http_path"] = r.URL.Path
	metadata["http_host"] = r.Host

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			metadata["query_"+key] = values[0]
		}
	}

	relevantHeaders := []string{
		"Content-Type",
		"Accept",
		"Origin",
		"User-Agent",
		"X-Forwarded-For",
		"X-Real-IP",
		"Authorization",
	}

	for _, header := range relevantHeaders {
		if value := r.Header.Get(header); value != "" {
			if header == "Authorization" {
				if strings.HasPrefix(value, "Bearer ") {
					value = "Bearer [REDACTED]"
				} else {
					value = "[REDACTED]"
				}
			}
			metadata["header_"+strings.ToLower(strings.ReplaceAll(header, "-", "_"))] = value
		}
	}

	if traceID := r.Header.Get("X-Trace-ID"); traceID != "" {
		metadata["trace_id"] = traceID
	}

	return metadata
}

// writeResponse writes the handler response as HTTP response
func (a *HTTPAdapter) writeResponse(w http.ResponseWriter, r *http.Request, req handler.Request, resp handler.Response, err error) {
	a.setMetadataHeaders(w, resp.Metadata)

	if err != nil || !resp.Success {
		if resp.Stream != nil {
			_ = resp.Stream.Close()
		}
		if resp.Error == nil {
			details := ""
			if err != nil {
				details = err.Error()
			}
			resp = handler.NewErrorResponse(req.ID, handler.CodeInternal, "Request processing failed", details)
		}
		a.writeErrorResponse(w, resp)
		return
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	if resp.Stream != nil {
		a.writeStream(w, r, resp)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	data := resp.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if _, err := w.Write(data); err != nil {
		a.logger.Warn(r.Context(), "Failed to write response body", types.Fields{
			"request_id": req.ID,
			"error":      err.Error(),
		})
	}
}

// writeStream commits a 200 and copies the stream into w, flushing after
// every write. Close runs no matter how the copy ends.
func (a *HTTPAdapter) writeStream(w http.ResponseWriter, r *http.Request, resp handler.Response) {
	defer func() {
		if err := resp.Stream.Close(); err != nil {
			a.logger.Warn(r.Context(), "Stream close reported an error", types.Fields{
				"request_id": resp.ID,
				"error":      err.Error(),
			})
		}
	}()

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(http.StatusOK)

	fw := &flushWriter{w: w, rc: http.NewResponseController(w)}
	_ = fw.rc.Flush()

	n, err := resp.Stream.WriteTo(fw)
	if err != nil {
		// Status is already committed; the client sees a truncated body.
		a.logger.Warn(r.Context(), "Stream ended early", types.Fields{
			"request_id":    resp.ID,
			"bytes_written": n,
			"error":         err.Error(),
		})
		return
	}

	a.logger.Debug(r.Context(), "Stream completed", types.Fields{
		"request_id":    resp.ID,
		"bytes_written": n,
	})
}

// setMetadataHeaders exposes trace metadata as response headers.
func (a *HTTPAdapter) setMetadataHeaders(w http.ResponseWriter, metadata map[string]string) {
	if traceID := metadata["trace_id"]; traceID != "" {
		w.Header().Set("X-Trace-ID", traceID)
	}
	if spanID := metadata["span_id"]; spanID != "" {
		w.Header().Set("X-Span-ID", spanID)
	}
}

// writeErrorResponse writes the {"detail": message} error body.
// Details stay server-side.
func (a *HTTPAdapter) writeErrorResponse(w http.ResponseWriter, resp handler.Response) {
	status := a.determineStatusCode(resp)

	message := http.StatusText(status)
	if resp.Error != nil && resp.Error.Message != "" {
		message = resp.Error.Message
	}

	writeJSON(w, status, map[string]string{"detail": message})
}

// determineStatusCode maps response to HTTP status code
func (a *HTTPAdapter) determineStatusCode(resp handler.Response) int {
	if resp.Success {
		return http.StatusOK
	}

	if resp.Error == nil {
		return http.StatusInternalServerError
	}

	if status, ok := a.statusCodes[resp.Error.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// flushWriter pushes every write to the client immediately.
type flushWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	if err := f.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}
