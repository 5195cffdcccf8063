package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"sglocations.io/ner/logger"
	"sglocations.io/ner/types"
	"sglocations.io/ner/utils"
)

const defaultTimeoutSeconds = 30

var ErrUnexpectedStatus = errors.New("unexpected status from model server")

type request struct {
	Text string `json:"text"`
}

type responseEntity struct {
	Entity string `json:"entity"`
	Label  string `json:"label"`
	Start  *int32 `json:"start,omitempty"`
	End    *int32 `json:"end,omitempty"`
}

type response struct {
	Entities []responseEntity `json:"entities"`
}

// Client runs a pretrained pipeline served over HTTP. The server takes
// {"text": ...} and answers {"entities": [{"entity", "label", "start", "end"}]};
// offsets are optional.
type Client struct {
	name       string
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	sglocLog   zerolog.Logger
}

func New(name string, params types.RemoteParams) *Client {
	timeout := params.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}

	client := &Client{
		name:       name,
		url:        params.URL,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		sglocLog:   logger.NewLogger("Remote model").With().Str("model", name).Logger(),
	}
	if params.MaxRequestsPerSecond > 0 {
		burst := int(params.MaxRequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(params.MaxRequestsPerSecond), burst)
	}
	return client
}

func (client *Client) Name() string {
	return client.name
}

func (client *Client) Recognize(ctx context.Context, text string) ([]types.Entity, error) {
	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(request{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client.sglocLog.Debug().Str("url", client.url).Msg("Sending text to model server")
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", client.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("model %s: %w: %d", client.name, ErrUnexpectedStatus, resp.StatusCode)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("model %s: failed to decode response: %w", client.name, err)
	}

	return toEntities(text, parsed.Entities, client.sglocLog), nil
}

// toEntities trusts server offsets when they span the entity text. Otherwise
// each entity is searched for after the end of the previous one.
func toEntities(text string, received []responseEntity, sglocLog zerolog.Logger) []types.Entity {
	runes := []rune(text)
	entities := make([]types.Entity, 0, len(received))

	var cursor int32
	for _, ent := range received {
		entity := types.Entity{Text: ent.Entity, Label: ent.Label}
		if spansEntity(text, ent) {
			entity.Begin, entity.End = *ent.Start, *ent.End
		} else {
			begin := indexRunes(runes, []rune(ent.Entity), cursor)
			if begin < 0 {
				sglocLog.Warn().Str("entity", ent.Entity).Msg("Entity text not found in input, dropping it")
				continue
			}
			entity.Begin = begin
			entity.End = begin + int32(len([]rune(ent.Entity)))
		}
		if entity.End > cursor {
			cursor = entity.End
		}
		entities = append(entities, entity)
	}

	return entities
}

func spansEntity(text string, ent responseEntity) bool {
	if ent.Start == nil || ent.End == nil {
		return false
	}
	spanned, ok := utils.RuneSlice(text, *ent.Start, *ent.End)
	return ok && spanned == ent.Entity
}

func indexRunes(source []rune, target []rune, from int32) int32 {
	if len(target) == 0 || int(from) > len(source) {
		return -1
	}
	idx := strings.Index(string(source[from:]), string(target))
	if idx < 0 {
		return -1
	}
	return from + int32(len([]rune(string(source[from:])[:idx])))
}
