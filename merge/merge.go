package merge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sglocations.io/ner/logger"
	"sglocations.io/ner/utils"
)

var errNull = errors.New("got null")

type Options struct {
	// Dedupe drops elements whose compacted JSON was already written.
	Dedupe bool
}

type NotAnArrayError struct {
	Source string
	Err    error
}

func (e *NotAnArrayError) Error() string {
	return fmt.Sprintf("source %q is not a JSON array: %v", e.Source, e.Err)
}

func (e *NotAnArrayError) Unwrap() error {
	return e.Err
}

// Merge concatenates the JSON arrays in sources, in order, into a single
// array written to dest with 4-space indentation. It returns the number of
// elements written.
func Merge(ctx context.Context, storage Storage, sources []string, dest string, opts Options) (int, error) {
	sglocLogger := logger.NewLogger("Location merger")

	var merged []json.RawMessage
	seen := make(map[uint64][][]byte)
	for _, source := range sources {
		buf, err := storage.Read(ctx, source)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", source, err)
		}
		var elements []json.RawMessage
		if err = json.Unmarshal(buf, &elements); err != nil {
			return 0, &NotAnArrayError{Source: source, Err: err}
		}
		if elements == nil {
			return 0, &NotAnArrayError{Source: source, Err: errNull}
		}

		kept := 0
		for _, element := range elements {
			if opts.Dedupe {
				compacted, err := compact(element)
				if err != nil {
					return 0, fmt.Errorf("%s: %w", source, err)
				}
				if isDuplicate(seen, compacted) {
					continue
				}
			}
			merged = append(merged, element)
			kept++
		}
		sglocLogger.Info().Str("source", source).Int("elements", len(elements)).Int("kept", kept).Msg("Merged source")
	}

	if merged == nil {
		merged = []json.RawMessage{}
	}
	out, err := encode(merged)
	if err != nil {
		return 0, err
	}
	if err = storage.Write(ctx, dest, out); err != nil {
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	sglocLogger.Info().Str("dest", dest).Int("elements", len(merged)).Msg("Wrote merged locations")
	return len(merged), nil
}

func encode(elements []json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(elements); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func compact(element json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, element); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// isDuplicate records compacted in seen and reports whether it was already there.
func isDuplicate(seen map[uint64][][]byte, compacted []byte) bool {
	hash := utils.HashBytes(compacted)
	for _, other := range seen[hash] {
		if bytes.Equal(other, compacted) {
			return true
		}
	}
	seen[hash] = append(seen[hash], compacted)
	return false
}
