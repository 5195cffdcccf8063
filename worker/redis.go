package worker

import (
	"context"
	"fmt"

	"sglocations.io/ner/tasks"
)

type redisTransactions interface {
	getChunkTask(ctx context.Context, redisKey string) (*tasks.ChunkTask, error)
	getJobTask(task *Task) (*tasks.JobTask, error)
	getDocTask(task *Task) (*tasks.DocumentTaskCached, error)
	onTaskStarted(task *Task) error
	onTaskCancelled(task *Task, errorMessages ...string) error
	onTaskExceededRetries(task *Task, maxRetries int) error
	onTaskFailedWithError(task *Task, err error) error
	onTaskComplete(task *Task) error
	close()
}

type redisClientWrapper struct {
	tasksClient *tasks.Client
}

func (wrapper *redisClientWrapper) close() {
	wrapper.tasksClient.Close()
}

func (wrapper *redisClientWrapper) updateLocations(task *Task, update func(info *tasks.ChunkTaskInfo)) error {
	return wrapper.tasksClient.Chunks.Update(task.ctx, task.redisKey, func(chunkTask *tasks.ChunkTask) {
		update(&chunkTask.TaskStatuses.Locations)
	})
}

func (wrapper *redisClientWrapper) onTaskStarted(task *Task) error {
	return wrapper.updateLocations(task, func(info *tasks.ChunkTaskInfo) {
		info.Status = tasks.TaskStatusStarted
		info.Attempts += 1
		info.StartedAt = formattedNow()
		info.CompletedAt = nil
	})
}

func (wrapper *redisClientWrapper) onTaskCancelled(task *Task, errorMessages ...string) error {
	return wrapper.updateLocations(task, func(info *tasks.ChunkTaskInfo) {
		info.Status = tasks.TaskStatusCanceled
		info.StartedAt = formattedNow()
		info.CompletedAt = formattedNow()
		info.Attempts += 1
		info.ErrorMessages = append(info.ErrorMessages, errorMessages...)
	})
}

func (wrapper *redisClientWrapper) onTaskExceededRetries(task *Task, maxRetries int) error {
	err := wrapper.tasksClient.Documents.Update(task.ctx, task.chunkTask.DocID, func(docTask *tasks.DocumentTask) {
		docTask.MarkFailed(tasks.LocationsTask, task.redisKey)
	})
	if err != nil {
		return err
	}
	return wrapper.updateLocations(task, func(info *tasks.ChunkTaskInfo) {
		info.Status = tasks.TaskStatusCompletedFailure
		info.StartedAt = formattedNow()
		info.CompletedAt = formattedNow()
		info.Attempts += 1
		info.ErrorMessages = append(info.ErrorMessages, fmt.Sprintf(
			"Task has exceeded retries. (Attempts: %d, max retries: %d )",
			info.Attempts,
			maxRetries,
		))
	})
}

func (wrapper *redisClientWrapper) onTaskFailedWithError(task *Task, err error) error {
	return wrapper.updateLocations(task, func(info *tasks.ChunkTaskInfo) {
		info.Status = tasks.TaskStatusFailed
		info.CompletedAt = formattedNow()
		info.ErrorMessages = append(info.ErrorMessages, err.Error())
	})
}

func (wrapper *redisClientWrapper) onTaskComplete(task *Task) error {
	return wrapper.updateLocations(task, func(info *tasks.ChunkTaskInfo) {
		if !info.Status.Complete() {
			info.Status = tasks.TaskStatusCompletedSuccess
		}
		info.CompletedAt = formattedNow()
		info.ResultsFileKey = task.resultsFileKey()
	})
}

func (wrapper *redisClientWrapper) getChunkTask(ctx context.Context, redisKey string) (*tasks.ChunkTask, error) {
	return wrapper.tasksClient.Chunks.Get(ctx, redisKey)
}

func (wrapper *redisClientWrapper) getJobTask(task *Task) (*tasks.JobTask, error) {
	return wrapper.tasksClient.Jobs.GetCached(task.ctx, task.chunkTask.JobID)
}

func (wrapper *redisClientWrapper) getDocTask(task *Task) (*tasks.DocumentTaskCached, error) {
	return wrapper.tasksClient.Documents.GetCached(task.ctx, task.chunkTask.DocID)
}
