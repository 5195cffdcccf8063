package pipeline

import (
	"context"
	"encoding/json"

	"sglocations.io/ner/logger"
	"sglocations.io/ner/types"
)

type Request struct {
	Text                  string `json:"text"`
	Tid                   string `json:"tid"`
	LengthenAbbreviations bool   `json:"lengthen_abbreviations"`
}

type DocumentResponse struct {
	DocId    string         `json:"doc_id"`
	Model    string         `json:"model"`
	Text     string         `json:"text"`
	Entities []types.Entity `json:"entities"`
}

// Pipeline runs one model over a document and sends its JSON response. The
// channel is closed without a value when recognition fails or ctx ends first.
type Pipeline func(ctx context.Context, request Request) <-chan string

func New(comparer *Comparer, model *Model) Pipeline {
	sglocLogger := logger.NewLogger("Location pipeline")

	return func(ctx context.Context, request Request) <-chan string {
		responseChan := make(chan string, 1)
		pplnLog := sglocLogger.With().Str("tid", request.Tid).Str("model", model.Config.Name).Logger()
		pplnLog.Info().Msg("Started location pipeline")

		go func() {
			defer close(responseChan)

			text := comparer.Prepare(request.Text, request.LengthenAbbreviations)
			result := comparer.run(ctx, model, text)
			if len(result.Error) > 0 {
				pplnLog.Error().Str("error", result.Error).Msg("Location pipeline failed")
				return
			}

			response := DocumentResponse{
				DocId:    request.Tid,
				Model:    result.Name,
				Text:     result.Text,
				Entities: result.Entities,
			}
			buf, err := json.Marshal(response)
			if err != nil {
				pplnLog.Err(err).Caller().Msg("Failed to marshall response")
				return
			}
			pplnLog.Info().Int("entities", len(result.Entities)).Msg("Finished location pipeline")
			responseChan <- string(buf)
		}()

		return responseChan
	}
}
