package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSClient is the part of the SQS API the journal uses.
type SQSClient interface {
	SendMessage(ctx context.Context, params *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
}

// SQSJournal sends each entry as a base64 protobuf message.
type SQSJournal struct {
	Client   SQSClient
	QueueURL string
}

// NewSQSJournal builds a journal for queueURL. A nil client is created from
// the default AWS configuration.
func NewSQSJournal(ctx context.Context, queueURL string, client SQSClient) (*SQSJournal, error) {
	if queueURL == "" {
		return nil, errors.New("journal: sqs queue url is empty")
	}
	if client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("journal: load aws config: %w", err)
		}
		client = awssqs.NewFromConfig(cfg)
	}
	return &SQSJournal{Client: client, QueueURL: queueURL}, nil
}

// Record sends e as one message.
func (j *SQSJournal) Record(ctx context.Context, e *Entry) error {
	body, err := EncodeBody(e)
	if err != nil {
		return err
	}
	input := &awssqs.SendMessageInput{
		QueueUrl:    aws.String(j.QueueURL),
		MessageBody: aws.String(body),
	}
	if e.RequestID != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"RequestId": {DataType: aws.String("String"), StringValue: aws.String(e.RequestID)},
		}
	}
	_, err = j.Client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("journal: send %s: %w", e.RequestID, err)
	}
	return nil
}
