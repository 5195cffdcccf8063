package worker

import (
	"fmt"
	"path"
	"time"

	"sglocations.io/ner/tasks"
)

// resultsFileKey is where the locations found in a chunk are stored.
func resultsFileKey(chunkTask *tasks.ChunkTask, redisKey string) string {
	return path.Join(
		"processed",
		"documents",
		chunkTask.DocID,
		"chunks",
		redisKey,
		fmt.Sprintf("%s.%s.json", redisKey, tasks.LocationsTask),
	)
}

const RFC3339Micro = "2006-01-02T15:04:05.000000-07:00"

func formattedNow() *string {
	now := time.Now().UTC().Format(RFC3339Micro)
	return &now
}
