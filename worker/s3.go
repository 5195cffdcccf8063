package worker

import (
	"sglocations.io/ner/s3client"
)

type s3Transactions interface {
	saveResultsFile(task *Task, result string) error
	getProcessedData(task *Task) ([]byte, error)
	close()
}

type s3ClientWrapper struct {
	s3Client *s3client.Client
}

func (wrapper *s3ClientWrapper) close() {
	wrapper.s3Client.Close()
}

func (wrapper *s3ClientWrapper) saveResultsFile(task *Task, result string) error {
	_, err := wrapper.s3Client.Upload(task.ctx, []byte(result), task.resultsFileKey())
	return err
}

func (wrapper *s3ClientWrapper) getProcessedData(task *Task) ([]byte, error) {
	return wrapper.s3Client.Download(task.ctx, task.chunkTask.TextFileKey)
}
