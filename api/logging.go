package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"sglocations.io/ner/logger"
)

var defaultLogger = logger.NewLogger("API")

type endpointLoggerFields struct {
	Method string `json:"method"`
	Url    string `json:"url"`
}

const RequestInfoFieldsKey = "request_info"

// makeRequestLogger tags the request with a fresh tid.
func makeRequestLogger(request *http.Request) zerolog.Logger {
	fields := endpointLoggerFields{
		Method: request.Method,
		Url:    request.URL.String(),
	}
	return defaultLogger.
		With().
		Interface(RequestInfoFieldsKey, fields).
		Str("tid", uuid.NewString()).
		Logger()
}
