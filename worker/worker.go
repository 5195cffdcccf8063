package worker

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"sglocations.io/ner/logger"
	"sglocations.io/ner/pipeline"
	"sglocations.io/ner/rmq"
	"sglocations.io/ner/s3client"
	"sglocations.io/ner/tasks"
)

type Config struct {
	TaskMaxRetries        int  `envconfig:"MDL_COMN_RETRY_TASK_COUNT_MAX" default:"3"`
	TaskTimeoutSeconds    int  `envconfig:"SGLOC_TASK_TIMEOUT" default:"300"`
	LengthenAbbreviations bool `envconfig:"SGLOC_WORKER_LENGTHEN_ABBREVIATIONS" default:"true"`
}

// Worker extracts locations from document chunks announced on the task queue.
type Worker struct {
	config   Config
	redis    redisTransactions
	s3       s3Transactions
	rmq      rmqTransactions
	sglocLog *zerolog.Logger
	ppln     pipeline.Pipeline
}

func New(ppln pipeline.Pipeline) (*Worker, error) {
	sglocLog := logger.NewLogger("Worker")

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		sglocLog.Error().Err(err).Msg("Could not read config")
		return nil, err
	}

	worker := Worker{
		config:   config,
		sglocLog: &sglocLog,
		ppln:     ppln,
	}
	if err := worker.refreshRMQClient(); err != nil {
		sglocLog.Error().Err(err).Msg("Could not create RMQ client")
		return nil, err
	}
	if err := worker.refreshS3Client(); err != nil {
		sglocLog.Error().Err(err).Msg("Could not create S3 client")
		worker.rmq.close()
		return nil, err
	}
	if err := worker.refreshRedisClients(); err != nil {
		sglocLog.Error().Err(err).Msg("Could not create Redis client")
		worker.rmq.close()
		worker.s3.close()
		return nil, err
	}
	return &worker, nil
}

// StartWorker consumes deliveries until the RMQ connection cannot be
// re-established.
func (worker *Worker) StartWorker() error {
	defer worker.Close()
	for {
		select {
		case delivery, ok := <-worker.rmq.getDeliveriesCh():
			if ok {
				go worker.processMessage(&delivery, worker.rmq)
				continue
			}
			worker.sglocLog.Error().Msg("Deliveries channel closed, trying to refresh RMQ client")
			if err := worker.refreshRMQClient(); err != nil {
				return fmt.Errorf("rmq deliveries channel has been closed and refresh returned error: %w", err)
			}
		case rmqErr := <-worker.rmq.getRespChanErrorsCh():
			if err := worker.recoverFrom("Response", rmqErr); err != nil {
				return err
			}
		case rmqErr := <-worker.rmq.getReqChanErrorsCh():
			if err := worker.recoverFrom("Request", rmqErr); err != nil {
				return err
			}
		}
	}
}

func (worker *Worker) recoverFrom(connection string, rmqErr *amqp.Error) error {
	if rmqErr == nil {
		return nil
	}
	worker.sglocLog.Err(rmqErr).Msgf("%s connection received error, trying to refresh RMQ client", connection)
	if err := worker.refreshRMQClient(); err != nil {
		return fmt.Errorf("%s connection received error and refresh failed with: %w", connection, err)
	}
	return nil
}

func (worker *Worker) Close() {
	worker.redis.close()
	worker.s3.close()
	worker.rmq.close()
}

func (worker *Worker) refreshRedisClients() error {
	worker.sglocLog.Info().Msg("Refreshing Redis client")
	if oldClient := worker.redis; oldClient != nil {
		defer oldClient.close()
	}
	tasksClient, err := tasks.NewClient()
	if err != nil {
		worker.sglocLog.Err(err).Msg("Failed to refresh Redis client")
		return err
	}
	worker.redis = &redisClientWrapper{&tasksClient}
	worker.sglocLog.Info().Msg("Refreshed Redis client")
	return nil
}

func (worker *Worker) refreshRMQClient() error {
	worker.sglocLog.Info().Msg("Refreshing RMQ client")
	if oldClient := worker.rmq; oldClient != nil {
		defer oldClient.close()
	}
	rmqClient, err := rmq.NewClient()
	if err != nil {
		worker.sglocLog.Err(err).Msg("Failed to refresh RMQ client")
		return err
	}
	worker.rmq = &rmqClientWrapper{rmqClient}
	worker.sglocLog.Info().Msg("Refreshed RMQ client")
	return nil
}

func (worker *Worker) refreshS3Client() error {
	worker.sglocLog.Info().Msg("Refreshing S3 client")
	if oldClient := worker.s3; oldClient != nil {
		defer oldClient.close()
	}
	s3Client, err := s3client.New()
	if err != nil {
		worker.sglocLog.Err(err).Msg("Failed to refresh S3 client")
		return err
	}
	worker.s3 = &s3ClientWrapper{s3Client}
	worker.sglocLog.Info().Msg("Refreshed S3 client")
	return nil
}
