package rmq

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"sglocations.io/ner/logger"
)

type Config struct {
	Host                    string `envconfig:"MDL_COMN_RMQ_HOST" required:"true"`
	Port                    string `envconfig:"MDL_COMN_RMQ_PORT" required:"true"`
	Username                string `envconfig:"MDL_COMN_RMQ_USERNAME" required:"true"`
	Password                string `envconfig:"MDL_COMN_RMQ_PASSWORD" required:"true"`
	VHost                   string `envconfig:"MDL_COMN_RMQ_VHOST" default:""`
	Exchange                string `envconfig:"MDL_COMN_RMQ_DEFAULT_EXCHANGE" default:"sglocations-default-exchange"`
	MaxParallelRequestCount int    `envconfig:"SGLOC_MQ_MAX_PARALLEL_REQUESTS" default:"5"`
	TaskQueue               string `envconfig:"SGLOC_TASK_QUEUE" default:"locations_tasks"`
	SequencerTaskQueue      string `envconfig:"MDL_COMN_SEQUENCER_TASK_QUEUE" required:"true"`
}

// URL is the AMQP address the client dials.
func (config Config) URL() string {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/", config.Username, config.Password, config.Host, config.Port)
	return url + config.VHost
}

// Client consumes the locations task queue on one connection and publishes
// to the sequencer on another.
type Client struct {
	Deliveries     <-chan amqp.Delivery
	ReqChanErrors  <-chan *amqp.Error
	RespChanErrors <-chan *amqp.Error
	config         Config
	reqConn        *amqp.Connection
	respConn       *amqp.Connection
	respChannel    *amqp.Channel
	sglocLogger    *zerolog.Logger
}

func NewClient() (*Client, error) {
	sglocLogger := logger.NewLogger("RMQ client")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		sglocLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	url := config.URL()
	respConn, respChannel, err := setup(url)
	if err != nil {
		return nil, fmt.Errorf("failed connection: %w", err)
	}
	reqConn, reqChannel, err := setup(url)
	if err != nil {
		_ = respConn.Close()
		return nil, fmt.Errorf("failed connection: %w", err)
	}

	deliveries, err := consume(reqChannel, config)
	if err != nil {
		_ = respConn.Close()
		_ = reqConn.Close()
		return nil, err
	}
	reqChanErrors := reqChannel.NotifyClose(make(chan *amqp.Error))
	respChanErrors := respChannel.NotifyClose(make(chan *amqp.Error))
	sglocLogger.Info().Str("queue", config.TaskQueue).Int("prefetch", config.MaxParallelRequestCount).Msg("Consuming task queue")

	return &Client{
		Deliveries:     deliveries,
		ReqChanErrors:  reqChanErrors,
		RespChanErrors: respChanErrors,
		config:         config,
		reqConn:        reqConn,
		respConn:       respConn,
		respChannel:    respChannel,
		sglocLogger:    &sglocLogger,
	}, nil
}

func consume(channel *amqp.Channel, config Config) (<-chan amqp.Delivery, error) {
	q, err := channel.QueueDeclarePassive(
		config.TaskQueue, // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare %s: %w", config.TaskQueue, err)
	}
	if err := channel.QueueBind(q.Name, q.Name, config.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind %s: %w", q.Name, err)
	}
	if err := channel.Qos(config.MaxParallelRequestCount, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %w", err)
	}
	deliveries, err := channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume deliveries: %w", err)
	}
	return deliveries, nil
}

func (c *Client) SendMessageToSequencer(msg amqp.Publishing) error {
	c.sglocLogger.Debug().Str("queue", c.config.SequencerTaskQueue).Msg("Publishing to sequencer")
	return c.respChannel.Publish(
		c.config.Exchange,
		c.config.SequencerTaskQueue,
		false,
		false,
		msg)
}

func (c *Client) Close() {
	_ = c.reqConn.Close()
	_ = c.respConn.Close()
}

func setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
