package tasks

import (
	"context"

	"sglocations.io/ner/redis"
)

const DocumentsDB redis.DB = 0

type DocumentTask struct {
	FailedTasks  []string            `json:"failed_tasks"`
	FailedChunks map[string][]string `json:"failed_chunks"`
}

// MarkFailed records that chunk failed in task.
func (doc *DocumentTask) MarkFailed(task string, chunk string) {
	doc.FailedTasks = append(doc.FailedTasks, task)
	if doc.FailedChunks == nil {
		doc.FailedChunks = make(map[string][]string)
	}
	doc.FailedChunks[chunk] = append(doc.FailedChunks[chunk], task)
}

type DocumentTaskCached struct {
	DocInfo     map[string]interface{} `json:"document_info"`
	FailedTasks []string               `json:"failed_tasks"`
	JobID       string                 `json:"job_id"`
	WorkType    string                 `json:"work_type"`
}

type DocumentTasks struct {
	client redis.Client
}

func (tasks DocumentTasks) Get(ctx context.Context, redisKey string) (*DocumentTask, error) {
	var task DocumentTask
	if err := tasks.client.GetDocument(ctx, redisKey, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (tasks DocumentTasks) GetCached(ctx context.Context, redisKey string) (*DocumentTaskCached, error) {
	var task DocumentTaskCached
	if err := tasks.client.GetDocument(ctx, cachedPropertiesKey(redisKey), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update changes the document under its lock and mirrors failed_tasks into
// the cached properties document.
func (tasks DocumentTasks) Update(ctx context.Context, redisKey string, updateFunc func(task *DocumentTask)) (err error) {
	releaseLock, err := tasks.client.Lock(ctx, redisKey)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = releaseLock()
			return
		}
		err = releaseLock()
	}()

	var task DocumentTask
	merged, err := tasks.client.Patch(ctx, redisKey, &task, func() {
		updateFunc(&task)
	})
	if err != nil {
		return err
	}
	var cached DocumentTaskCached
	cachedKey := cachedPropertiesKey(redisKey)
	mergedCached, err := tasks.client.Patch(ctx, cachedKey, &cached, func() {
		cached.FailedTasks = task.FailedTasks
	})
	if err != nil {
		return err
	}
	return tasks.client.SaveAll(ctx, map[string][]byte{
		redisKey:  merged,
		cachedKey: mergedCached,
	})
}
