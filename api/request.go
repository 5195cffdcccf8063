package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"sglocations.io/ner/pipeline"
)

const maxBodyBytes = 1 << 20

type Request struct {
	Comparer *pipeline.Comparer
	// Default answers /find-locations-POST.
	Default *pipeline.Model
}

type findLocationsInput struct {
	Text string `json:"text"`
}

type foundEntity struct {
	Entity string `json:"entity"`
	Label  string `json:"label"`
}

type findLocationsOutput struct {
	Entities []foundEntity `json:"entities"`
}

type errorOutput struct {
	Error string `json:"error"`
}

func (req *Request) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/find-locations-POST", req.FindLocations)
	mux.HandleFunc("/compare", req.Compare)
	mux.HandleFunc("/models", req.Models)
}

func (req *Request) FindLocations(w http.ResponseWriter, r *http.Request) {
	logger := makeRequestLogger(r)
	if !requireMethod(w, r, http.MethodPost, &logger) {
		return
	}

	var input findLocationsInput
	if !decodeBody(w, r, &input, &logger) {
		return
	}

	entities, err := req.Default.Recognizer.Recognize(r.Context(), input.Text)
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadGateway).Str("model", req.Default.Config.Name).Msg("Model failed")
		writeJSON(w, http.StatusBadGateway, errorOutput{Error: err.Error()}, &logger)
		return
	}

	output := findLocationsOutput{Entities: make([]foundEntity, len(entities))}
	for i, entity := range entities {
		output.Entities[i] = foundEntity{Entity: entity.Text, Label: entity.Label}
	}
	writeJSON(w, http.StatusOK, output, &logger)
	logger.Info().Int("status", http.StatusOK).Int("entities", len(entities)).Msg("Finished processing request")
}

func (req *Request) Compare(w http.ResponseWriter, r *http.Request) {
	logger := makeRequestLogger(r)
	if !requireMethod(w, r, http.MethodPost, &logger) {
		return
	}

	var input pipeline.CompareRequest
	if !decodeBody(w, r, &input, &logger) {
		return
	}

	logger.Info().
		Strs("models", input.Models).
		Bool("all_models", input.AllModels).
		Bool("lengthen_abbreviations", input.LengthenAbbreviations).
		Msg("Comparing models")
	response, err := req.Comparer.Compare(r.Context(), input)
	var unknown *pipeline.UnknownModelError
	switch {
	case errors.Is(err, pipeline.ErrNoModels), errors.As(err, &unknown):
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Invalid model selection")
		writeJSON(w, http.StatusBadRequest, errorOutput{Error: err.Error()}, &logger)
		return
	case err != nil:
		logger.Err(err).Int("status", http.StatusInternalServerError).Msg("Comparison failed")
		writeJSON(w, http.StatusInternalServerError, errorOutput{Error: err.Error()}, &logger)
		return
	}

	writeJSON(w, http.StatusOK, response, &logger)
	logger.Info().Int("status", http.StatusOK).Msg("Finished processing request")
}

func (req *Request) Models(w http.ResponseWriter, r *http.Request) {
	logger := makeRequestLogger(r)
	if !requireMethod(w, r, http.MethodGet, &logger) {
		return
	}

	models := req.Comparer.Registry().Models()
	infos := make([]pipeline.ModelInfo, len(models))
	for i, model := range models {
		infos[i] = model.Info()
	}
	writeJSON(w, http.StatusOK, infos, &logger)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string, logger *zerolog.Logger) bool {
	if r.Method == method {
		return true
	}
	logger.Err(nil).Int("status", http.StatusMethodNotAllowed).Msgf("Only '%s' method is allowed here", method)
	w.Header().Set("Allow", method)
	http.Error(w, "", http.StatusMethodNotAllowed)
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, logger *zerolog.Logger) bool {
	msg, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not read request body")
		writeJSON(w, http.StatusBadRequest, errorOutput{Error: "could not read request body"}, logger)
		return false
	}
	if err := json.Unmarshal(msg, v); err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not parse request body")
		writeJSON(w, http.StatusBadRequest, errorOutput{Error: "request body must be a JSON object"}, logger)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *zerolog.Logger) {
	buf, err := json.Marshal(v)
	if err != nil {
		logger.Err(err).Msg("Failed to marshall response")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}
