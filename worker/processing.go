package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"sglocations.io/ner/pipeline"
	"sglocations.io/ner/tasks"
	"sglocations.io/ner/utils"
)

var errPipelineClosed = errors.New("pipeline channel was closed before returning anything")

type Message struct {
	WorkType string `json:"work_type"`
	RedisKey string `json:"redis_key"`
	Sender   string `json:"sender"`
	Version  string `json:"version"`
}

// Task is one chunk of a document waiting for location extraction.
type Task struct {
	ctx       context.Context
	delivery  *amqp.Delivery
	chunkTask *tasks.ChunkTask
	message   *Message
	redisKey  string
	sglocLog  *zerolog.Logger
}

func (task *Task) resultsFileKey() string {
	return resultsFileKey(task.chunkTask, task.redisKey)
}

// processMessage answers delivery on rmqClient, the client it was consumed
// from, even if the worker has since refreshed its own.
func (worker *Worker) processMessage(delivery *amqp.Delivery, rmqClient rmqTransactions) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(worker.config.TaskTimeoutSeconds)*time.Second)
	defer cancel()

	rejectLogger := worker.sglocLog.With().Str("message_id", delivery.MessageId).Logger()
	task, err := worker.createTask(ctx, delivery)
	if err != nil {
		rejectLogger.Err(err).
			Str("tid", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		rmqClient.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.processTask(task); err != nil {
		rmqClient.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = rmqClient.pingSequencer(task, *task.message); err != nil {
		task.sglocLog.Err(err).Msg("Got error while sending message to sequencer queue")
		rmqClient.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = rmqClient.acknowledgeDelivery(delivery); err != nil {
		task.sglocLog.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.sglocLog.Info().Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(ctx context.Context, delivery *amqp.Delivery) (*Task, error) {
	var message Message
	if err := json.Unmarshal(delivery.Body, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	chunkTask, err := worker.redis.getChunkTask(ctx, message.RedisKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk task for message, got error %w", err)
	}
	taskLogger := worker.sglocLog.With().
		Str("tid", message.RedisKey).
		Str("document_id", chunkTask.DocID).
		Logger()
	return &Task{
		ctx:       ctx,
		delivery:  delivery,
		chunkTask: chunkTask,
		redisKey:  message.RedisKey,
		message:   &message,
		sglocLog:  &taskLogger,
	}, nil
}

func (worker *Worker) processTask(task *Task) error {
	shouldPerform, err := worker.shouldPerformTask(task)
	if err != nil {
		task.sglocLog.Err(err).Msg("Got error while trying to decide whether to run task")
		return err
	}
	if !shouldPerform {
		return nil
	}
	if err = worker.redis.onTaskStarted(task); err != nil {
		task.sglocLog.Err(err).Msg("Failed to update task info")
		return fmt.Errorf("failed to update TaskInfo: %w", err)
	}
	if err = worker.runPipeline(task); err != nil {
		task.sglocLog.Err(err).Msg("Got error while running pipeline")
		return worker.redis.onTaskFailedWithError(task, err)
	}
	task.sglocLog.Info().Msg("Saved results, marking task as complete")
	if err = worker.redis.onTaskComplete(task); err != nil {
		task.sglocLog.Err(err).Msg("Got error while trying to mark task as complete")
		return err
	}
	return nil
}

func (worker *Worker) runPipeline(task *Task) (err error) {
	defer utils.RecoverWithError(&err)
	task.sglocLog.Info().Msgf("Processing message from RMQ, attempt # %d", task.chunkTask.TaskStatuses.Locations.Attempts)
	data, err := worker.s3.getProcessedData(task)
	if err != nil {
		task.sglocLog.Err(err).Caller().Msg("Could not fetch text data from s3")
		return fmt.Errorf("failed fetch data from s3: %w", err)
	}
	request := pipeline.Request{
		Tid:                   task.redisKey,
		Text:                  string(data),
		LengthenAbbreviations: worker.config.LengthenAbbreviations,
	}

	var result string
	var ok bool
	select {
	case result, ok = <-worker.ppln(task.ctx, request):
	case <-task.ctx.Done():
		return fmt.Errorf("pipeline did not finish: %w", task.ctx.Err())
	}
	if !ok {
		task.sglocLog.Error().Msg("Pipeline channel was closed before returning anything")
		return errPipelineClosed
	}
	task.sglocLog.Info().Msg("Finished pipeline, saving results to s3")
	if err = worker.s3.saveResultsFile(task, result); err != nil {
		task.sglocLog.Err(err).Msg("Got error while trying to save results")
		return err
	}
	return nil
}

func (worker *Worker) shouldPerformTask(task *Task) (bool, error) {
	taskInfo := task.chunkTask.TaskStatuses.Locations
	taskLogger := task.sglocLog

	if taskInfo.Status.Complete() {
		taskLogger.Info().Msg("Task is already done. (might indicate issue acking message with RMQ). Sending back to Sequencer.")
		return false, nil
	}
	taskJob, err := worker.redis.getJobTask(task)
	if err != nil {
		taskLogger.Err(err).Msg("Failed to query job task for chunk task")
		return false, err
	}
	if taskJob.UserCanceled {
		taskLogger.Info().Msg("Job was canceled, no need to perform this task. Sending back to Sequencer.")
		return false, worker.redis.onTaskCancelled(task)
	}
	if taskJob.StopDocumentsOnFailure {
		docTask, err := worker.redis.getDocTask(task)
		if err != nil {
			return false, err
		}
		if docTask == nil {
			return false, fmt.Errorf("document task not found")
		}
		if len(docTask.FailedTasks) > 0 {
			failedTask := docTask.FailedTasks[0]
			taskLogger.Info().Msgf("Task is not required because the \"%s\" already completed failure "+
				"and document won't be processed successfully. Sending back to Sequencer.", failedTask)
			return false, worker.redis.onTaskCancelled(
				task,
				fmt.Sprintf(
					"Task was marked as \"%s\" because of the current document has failed "+
						"in the \"%s\" worker and won't be processed successfully.",
					tasks.TaskStatusCanceled,
					failedTask,
				),
			)
		}
	}
	if taskInfo.Attempts >= worker.config.TaskMaxRetries {
		taskLogger.Info().Msg("Locations task has exceeded retries. Sending back to Sequencer.")
		return false, worker.redis.onTaskExceededRetries(task, worker.config.TaskMaxRetries)
	}
	return true, nil
}
