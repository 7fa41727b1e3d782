package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface lists every API operation with its bound parameters.
type ServerInterface interface {
	// (POST /v1/users/{user_id}/enroll)
	EnrollUser(w http.ResponseWriter, r *http.Request, userID string)
	// (POST /v1/users/{user_id}/enroll/audio)
	EnrollUserAudio(w http.ResponseWriter, r *http.Request, userID string)
	// (POST /v1/users/{user_id}/verify)
	VerifyUser(w http.ResponseWriter, r *http.Request, userID string)
	// (POST /v1/users/{user_id}/verify/audio)
	VerifyUserAudio(w http.ResponseWriter, r *http.Request, userID string)
	// (POST /v1/users/{user_id}/verify/batch)
	VerifyUserBatch(w http.ResponseWriter, r *http.Request, userID string)
	// (GET /v1/users/{user_id}/voiceprints)
	ListVoiceprints(w http.ResponseWriter, r *http.Request, userID string)
	// (DELETE /v1/users/{user_id}/voiceprints)
	DeleteUser(w http.ResponseWriter, r *http.Request, userID string)
	// (GET /v1/users/{user_id}/history)
	GetHistory(w http.ResponseWriter, r *http.Request, userID string, params HistoryParams)
	// (PATCH /v1/voiceprints/{voiceprint_id})
	UpdateVoiceprint(w http.ResponseWriter, r *http.Request, voiceprintID string)
	// (DELETE /v1/voiceprints/{voiceprint_id})
	DeleteVoiceprint(w http.ResponseWriter, r *http.Request, voiceprintID string)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// InvalidParamFormatError reports a path or query parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerOptions configures Handler.
type ServerOptions struct {
	BaseRouter       chi.Router
	Middlewares      []func(http.Handler) http.Handler
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler mounts si on a chi router, binding parameters before each call.
func Handler(si ServerInterface, options ServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		}
	}
	wrapper := &serverInterfaceWrapper{
		handler:          si,
		middlewares:      options.Middlewares,
		errorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post("/v1/users/{user_id}/enroll", wrapper.userOp(si.EnrollUser))
		r.Post("/v1/users/{user_id}/enroll/audio", wrapper.userOp(si.EnrollUserAudio))
		r.Post("/v1/users/{user_id}/verify", wrapper.userOp(si.VerifyUser))
		r.Post("/v1/users/{user_id}/verify/audio", wrapper.userOp(si.VerifyUserAudio))
		r.Post("/v1/users/{user_id}/verify/batch", wrapper.userOp(si.VerifyUserBatch))
		r.Get("/v1/users/{user_id}/voiceprints", wrapper.userOp(si.ListVoiceprints))
		r.Delete("/v1/users/{user_id}/voiceprints", wrapper.userOp(si.DeleteUser))
		r.Get("/v1/users/{user_id}/history", wrapper.GetHistory)
		r.Patch("/v1/voiceprints/{voiceprint_id}", wrapper.voiceprintOp(si.UpdateVoiceprint))
		r.Delete("/v1/voiceprints/{voiceprint_id}", wrapper.voiceprintOp(si.DeleteVoiceprint))
		r.Get("/health", wrapper.plain(si.HealthCheck))
		r.Get("/metrics", wrapper.plain(si.Metrics))
	})
	return r
}

type serverInterfaceWrapper struct {
	handler          ServerInterface
	middlewares      []func(http.Handler) http.Handler
	errorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *serverInterfaceWrapper) wrap(h http.Handler) http.HandlerFunc {
	for _, middleware := range siw.middlewares {
		h = middleware(h)
	}
	return h.ServeHTTP
}

func (siw *serverInterfaceWrapper) plain(op http.HandlerFunc) http.HandlerFunc {
	return siw.wrap(op)
}

func (siw *serverInterfaceWrapper) userOp(op func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := siw.pathParam(w, r, "user_id")
		if !ok {
			return
		}
		siw.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op(w, r, userID)
		}))(w, r)
	}
}

func (siw *serverInterfaceWrapper) voiceprintOp(op func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := siw.pathParam(w, r, "voiceprint_id")
		if !ok {
			return
		}
		siw.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op(w, r, id)
		}))(w, r)
	}
}

// GetHistory binds the user_id path parameter and the limit query parameter.
func (siw *serverInterfaceWrapper) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := siw.pathParam(w, r, "user_id")
	if !ok {
		return
	}

	var params HistoryParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}

	siw.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.handler.GetHistory(w, r, userID, params)
	}))(w, r)
}

func (siw *serverInterfaceWrapper) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return "", false
	}
	return value, true
}
