package chi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/voicegate/internal/domain/batch"
	"github.com/kailas-cloud/voicegate/internal/logger"
	verificationuc "github.com/kailas-cloud/voicegate/internal/usecase/verification"
	"github.com/kailas-cloud/voicegate/internal/version"
)

const defaultMaxBodyBytes = 32 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server implements ServerInterface on top of the verification use cases.
type Server struct {
	verification  VerificationService
	extraction    ExtractionService
	health        HealthService
	logger        *zap.Logger
	maxBodyBytes  int64
	errorHandlers []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server. extraction may be nil, which disables the audio endpoints.
func NewServer(
	verification VerificationService,
	extraction ExtractionService,
	health HealthService,
	logger *zap.Logger,
) *Server {
	s := &Server{
		verification: verification,
		extraction:   extraction,
		health:       health,
		logger:       logger,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, m := range errorMappings {
		s.errorHandlers = append(s.errorHandlers, sentinelHandler(m.sentinel, m.status, m.code))
	}
	return s
}

// WithMaxBodyBytes limits request body size.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBodyBytes = n
	}
	return s
}

// EnrollUser handles POST /v1/users/{user_id}/enroll.
func (s *Server) EnrollUser(w http.ResponseWriter, r *http.Request, userID string) {
	var req EnrollRequest
	if !s.decode(w, r, &req) {
		return
	}
	model := ""
	if req.Model != nil {
		model = *req.Model
	}
	s.enroll(w, r, userID, req.Embeddings, model)
}

// EnrollUserAudio handles POST /v1/users/{user_id}/enroll/audio.
func (s *Server) EnrollUserAudio(w http.ResponseWriter, r *http.Request, userID string) {
	if !s.audioEnabled(w) {
		return
	}
	var req EnrollAudioRequest
	if !s.decode(w, r, &req) {
		return
	}
	clips := make([][]byte, len(req.Clips))
	for i, c := range req.Clips {
		b, err := base64.StdEncoding.DecodeString(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, fmt.Sprintf("clips[%d] is not valid base64", i))
			return
		}
		clips[i] = b
	}

	samples, err := s.extraction.EmbedAll(r.Context(), clips, derefBool(req.Encrypted))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.enroll(w, r, userID, samples, "")
}

func (s *Server) enroll(w http.ResponseWriter, r *http.Request, userID string, samples [][]float32, model string) {
	ctx := logger.With(r.Context(), zap.String("user_id", userID))
	vp, err := s.verification.Enroll(ctx, userID, samples, model)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, EnrollResponse{
		VoiceprintID: vp.ID(),
		UserID:       vp.UserID(),
		NumSamples:   vp.NumSamples(),
		Model:        vp.Model(),
		CreatedAt:    vp.CreatedAt().UTC(),
	})
}

// VerifyUser handles POST /v1/users/{user_id}/verify.
func (s *Server) VerifyUser(w http.ResponseWriter, r *http.Request, userID string) {
	var req VerifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.verify(w, r, userID, req.Embedding)
}

// VerifyUserAudio handles POST /v1/users/{user_id}/verify/audio.
func (s *Server) VerifyUserAudio(w http.ResponseWriter, r *http.Request, userID string) {
	if !s.audioEnabled(w) {
		return
	}
	var req VerifyAudioRequest
	if !s.decode(w, r, &req) {
		return
	}
	clip, err := base64.StdEncoding.DecodeString(req.Clip)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "clip is not valid base64")
		return
	}

	probe, err := s.extraction.Embed(r.Context(), clip, derefBool(req.Encrypted))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.verify(w, r, userID, probe)
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request, userID string, probe []float32) {
	ctx := logger.With(r.Context(), zap.String("user_id", userID))
	res, err := s.verification.Verify(ctx, userID, probe)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultToAPI(res))
}

// VerifyUserBatch handles POST /v1/users/{user_id}/verify/batch.
func (s *Server) VerifyUserBatch(w http.ResponseWriter, r *http.Request, userID string) {
	var req BatchVerifyRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := logger.With(r.Context(), zap.String("user_id", userID))
	res, err := s.verification.VerifyBatch(ctx, userID, req.Embeddings)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]BatchResultItem, len(res.Results))
	for i, item := range res.Results {
		items[i] = s.batchItemToAPI(item)
	}
	writeJSON(w, http.StatusOK, BatchVerifyResponse{Results: items, VerifiedCount: res.VerifiedCount})
}

// ListVoiceprints handles GET /v1/users/{user_id}/voiceprints.
func (s *Server) ListVoiceprints(w http.ResponseWriter, r *http.Request, userID string) {
	vps, err := s.verification.ListVoiceprints(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]Voiceprint, len(vps))
	for i := range vps {
		items[i] = voiceprintToAPI(&vps[i])
	}
	writeJSON(w, http.StatusOK, items)
}

// DeleteUser handles DELETE /v1/users/{user_id}/voiceprints.
func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := logger.With(r.Context(), zap.String("user_id", userID))
	if _, err := s.verification.DeleteUser(ctx, userID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles GET /v1/users/{user_id}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request, userID string, params HistoryParams) {
	attempts, err := s.verification.History(r.Context(), userID, derefInt(params.Limit))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]Attempt, len(attempts))
	for i := range attempts {
		items[i] = attemptToAPI(&attempts[i])
	}
	writeJSON(w, http.StatusOK, items)
}

// UpdateVoiceprint handles PATCH /v1/voiceprints/{voiceprint_id}.
func (s *Server) UpdateVoiceprint(w http.ResponseWriter, r *http.Request, voiceprintID string) {
	var req PatchVoiceprintRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "is_active is required")
		return
	}

	ctx := logger.With(r.Context(), zap.String("voiceprint_id", voiceprintID))
	vp, err := s.verification.SetActive(ctx, voiceprintID, *req.IsActive)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, voiceprintToAPI(&vp))
}

// DeleteVoiceprint handles DELETE /v1/voiceprints/{voiceprint_id}.
func (s *Server) DeleteVoiceprint(w http.ResponseWriter, r *http.Request, voiceprintID string) {
	ctx := logger.With(r.Context(), zap.String("voiceprint_id", voiceprintID))
	if err := s.verification.DeleteVoiceprint(ctx, voiceprintID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	collections := report.Collections
	if collections == nil {
		collections = []string{}
	}

	httpStatus := http.StatusOK
	if !report.Serving() {
		httpStatus = http.StatusServiceUnavailable
	}

	info := report.Version
	if info.Version == "" {
		info = version.Get()
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status:      string(report.Status),
		Checks:      checks,
		Collections: collections,
		Version:     info.Version,
		Commit:      info.Commit,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) audioEnabled(w http.ResponseWriter) bool {
	if s.extraction != nil {
		return true
	}
	writeError(w, http.StatusServiceUnavailable, ErrorCodeServiceUnavailable, "audio extraction is not configured")
	return false
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) batchItemToAPI(item dombatch.Result[verificationuc.Result]) BatchResultItem {
	out := BatchResultItem{Index: item.Index(), Status: string(item.Status())}
	if item.Status() == dombatch.StatusOK {
		res := resultToAPI(item.Value())
		out.Result = &res
		return out
	}
	code, _ := classify(item.Err())
	out.Error = &ErrorResponse{Code: code, Message: safeDomainMessage(item.Err())}
	return out
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		log.Info("request cancelled", zap.Error(err))
		return
	}
	s.logger.Error("internal error",
		zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
