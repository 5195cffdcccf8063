package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"sglocations.io/ner/logger"
)

// URIScheme prefixes object keys given on the command line.
const URIScheme = "s3://"

// ParseURI returns the object key of an s3:// URI.
func ParseURI(uri string) (string, bool) {
	if !strings.HasPrefix(uri, URIScheme) {
		return "", false
	}
	key := strings.TrimPrefix(uri, URIScheme)
	return key, len(key) > 0
}

type Client struct {
	holder     *sessionHolder
	bucketName string
	region     string
	env        EnvironmentConfig
}

type sessionHolder struct {
	curr      *session.Session
	requestCh <-chan *session.Session
	errorCh   chan<- error
	closeCh   chan<- struct{}
}

var clientLogger = logger.NewLogger("S3Client")
var sdkLogger = logger.NewLogger("S3-SDK")

func New() (*Client, error) {
	errLogger := clientLogger.With().Caller().Logger()
	env, err := readEnvironment(&errLogger)
	if err != nil {
		clientLogger.Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	client := Client{
		bucketName: env.BucketName,
		region:     env.Region,
		env:        env,
	}
	sessionCh := make(chan *session.Session)
	errorCh := make(chan error)
	closeCh := make(chan struct{}, 1)

	client.holder = &sessionHolder{
		requestCh: sessionCh,
		errorCh:   errorCh,
		closeCh:   closeCh,
	}
	if err := client.acquireNewSession(); err != nil {
		return nil, err
	}
	go keepSessionRefreshed(&client, sessionCh, errorCh, closeCh)
	return &client, nil
}

func (client Client) Bucket() string {
	return client.bucketName
}

// Upload stores data under key, retrying once on a fresh session.
func (client Client) Upload(ctx context.Context, data []byte, key string) (*s3manager.UploadOutput, error) {
	params := &s3manager.UploadInput{
		Bucket: aws.String(client.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	sess, err := client.session()
	if err != nil {
		return nil, err
	}
	output, err := client.upload(ctx, sess, params)
	if err == nil {
		return output, nil
	}
	sess, err = client.tryRefreshingSession(err)
	if err != nil {
		return nil, err
	}
	params.Body = bytes.NewReader(data)
	return client.upload(ctx, sess, params)
}

// Download fetches the object at key, retrying once on a fresh session.
func (client Client) Download(ctx context.Context, key string) ([]byte, error) {
	params := &s3.GetObjectInput{
		Bucket: aws.String(client.bucketName),
		Key:    aws.String(key),
	}
	sess, err := client.session()
	if err != nil {
		return nil, err
	}
	res, err := client.download(ctx, sess, params)
	if err == nil {
		return res, nil
	}
	sess, err = client.tryRefreshingSession(err)
	if err != nil {
		return nil, err
	}
	return client.download(ctx, sess, params)
}

func (client Client) Close() {
	client.holder.closeCh <- struct{}{}
}

func (client Client) objectLoggers(key string) (zerolog.Logger, zerolog.Logger) {
	return clientLogger.With().Str("key", key).Str("bucket", client.bucketName).Logger(),
		sdkLogger.With().Str("key", key).Str("bucket", client.bucketName).Logger()
}

func (client Client) upload(ctx context.Context, sess *session.Session, params *s3manager.UploadInput) (*s3manager.UploadOutput, error) {
	sglocLog, sdkLog := client.objectLoggers(*params.Key)
	uploader := s3manager.NewUploader(sess.Copy(&aws.Config{Logger: getLogger(sdkLog)}))
	sglocLog.Debug().Msg("Uploading the file")
	output, err := uploader.UploadWithContext(ctx, params)
	if err != nil {
		sglocLog.Error().Err(err).Msg("Failed to upload file")
		return nil, err
	}
	return output, nil
}

func (client Client) download(ctx context.Context, sess *session.Session, params *s3.GetObjectInput) ([]byte, error) {
	sglocLog, sdkLog := client.objectLoggers(*params.Key)
	downloader := s3manager.NewDownloader(sess.Copy(&aws.Config{Logger: getLogger(sdkLog)}))
	buf := aws.NewWriteAtBuffer([]byte{})

	sglocLog.Debug().Msg("Downloading file")
	size, err := downloader.DownloadWithContext(ctx, buf, params)
	if err != nil {
		sglocLog.Error().Err(err).Msg("Failed to download file")
		return nil, err
	}
	sglocLog.Debug().Int64("bytes", size).Msg("Downloaded file")
	return buf.Bytes(), nil
}

func keepSessionRefreshed(client *Client, sessionCh chan<- *session.Session, errorCh <-chan error, closeCh <-chan struct{}) {
	for {
		select {
		case sessionCh <- client.holder.curr:
			continue
		default:
		}
		select {
		case sessionCh <- client.holder.curr:
		case err := <-errorCh:
			clientLogger.Error().Err(err).Msg("Caught error while using S3 session, trying to refresh it")
			if err = client.acquireNewSession(); err != nil {
				clientLogger.Error().Err(err).Msg("Caught error while refreshing S3 session")
				continue
			}
			clientLogger.Info().Msg("Successfully refreshed session")
		case <-closeCh:
			clientLogger.Info().Msg("Closing client")
			return
		}
	}
}

func (client Client) tryRefreshingSession(err error) (*session.Session, error) {
	var sess *session.Session
	select {
	case client.holder.errorCh <- err:
		sess = <-client.holder.requestCh
	case sess = <-client.holder.requestCh:
	}
	if sess == nil {
		return nil, errors.New("failed to refresh session")
	}
	return sess, nil
}

func (client Client) session() (*session.Session, error) {
	sess := <-client.holder.requestCh
	if sess == nil {
		return nil, errors.New("could not get session")
	}
	return sess, nil
}

func (client Client) instanceConfig() *aws.Config {
	return &aws.Config{
		Region:     aws.String(client.region),
		MaxRetries: aws.Int(4),
		LogLevel:   aws.LogLevel(aws.LogDebug),
	}
}

func (client Client) envConfig() (*aws.Config, error) {
	creds := credentials.NewStaticCredentials(client.env.AccessKeyID, client.env.AccessKey, "")
	if _, err := creds.Get(); err != nil {
		return nil, fmt.Errorf("credentials from environment: %w", err)
	}
	cfg := aws.NewConfig().
		WithRegion(client.region).
		WithMaxRetries(4).
		WithCredentials(creds).
		WithLogLevel(aws.LogDebug)

	if client.env.Environment == "dev" && len(client.env.AwsEndpoint) > 0 {
		cfg = cfg.WithEndpoint(client.env.AwsEndpoint).WithS3ForcePathStyle(true)
	}
	return cfg, nil
}

func (client *Client) acquireNewSession() error {
	sess, err := session.NewSession(client.instanceConfig())
	if err == nil {
		if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err == nil {
			client.holder.curr = sess
			clientLogger.Info().Msg("S3 session successfully initialized using instance role")
			return nil
		}
	}
	clientLogger.Info().Msg("Could not initialize S3 session using instance role, trying env credentials")

	cfg, err := client.envConfig()
	if err != nil {
		client.holder.curr = nil
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return err
	}
	sess, err = session.NewSession(cfg)
	if err != nil {
		client.holder.curr = nil
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return err
	}
	if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err != nil {
		client.holder.curr = nil
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return errors.New("could not initialize S3 session")
	}
	client.holder.curr = sess
	clientLogger.Info().Msg("S3 session successfully initialized using env credentials")
	return nil
}

type EnvironmentConfig struct {
	BucketName  string `envconfig:"MDL_COMN_STORAGE_CONTAINER_NAME" required:"true"`
	Environment string `envconfig:"SGLOC_ENV" default:"prod"`
	Region      string `envconfig:"MDL_COMN_AWS_REGION_NAME" required:"true"`
	AwsEndpoint string `envconfig:"MDL_COMN_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"MDL_COMN_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"MDL_COMN_AWS_ACCESS_KEY" default:""`
}

func readEnvironment(errLogger *zerolog.Logger) (EnvironmentConfig, error) {
	var config EnvironmentConfig
	err := envconfig.Process("", &config)
	if err != nil {
		errLogger.Err(err).Msg("Got error while processing environment")
		return config, err
	}
	return config, nil
}

type s3Logger struct {
	sglocLogger zerolog.Logger
}

func getLogger(sglocLogger zerolog.Logger) *s3Logger {
	return &s3Logger{sglocLogger}
}

func (logger *s3Logger) Log(v ...interface{}) {
	logger.sglocLogger.Debug().Msg(fmt.Sprint(v...))
}
