package announcers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// sqsClient defines the minimal subset of the SQS client used by sqsAnnouncer.
type sqsClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// sqsAnnouncer implements the Announcer interface for AWS SQS.
type sqsAnnouncer struct {
	id       string
	queueURL string
	typ      string
	client   sqsClient
	log      Logger
}

// newSQSAnnouncer creates a new SQS announcer with the given configuration.
func newSQSAnnouncer(ctx context.Context, cfg AnnouncerConfig, log Logger) (Announcer, error) {
	if cfg.SQS == nil {
		return nil, fmt.Errorf("announcer %q missing sqs configuration", cfg.ID)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.SQS.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &sqsAnnouncer{
		id:       cfg.ID,
		typ:      TypeSQS,
		queueURL: cfg.SQS.QueueURL,
		client:   sqs.NewFromConfig(awsCfg),
		log:      ensureLogger(log),
	}, nil
}

func (s *sqsAnnouncer) ID() string   { return s.id }
func (s *sqsAnnouncer) Type() string { return s.typ }

// Announce sends the event to the configured SQS queue.
func (s *sqsAnnouncer) Announce(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"episode": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(evt.Episode)),
			},
		},
	}

	if _, err := s.client.SendMessage(ctx, input); err != nil {
		s.log.ErrorObj("sqs announcer send failed", "announcer_sqs_error", map[string]any{
			"announcer_id": s.id,
			"error":        err.Error(),
		})
		return fmt.Errorf("send message to sqs: %w", err)
	}
	s.log.DebugObj("sqs announcer delivered event", "announcer_sqs_delivery", map[string]any{
		"announcer_id": s.id,
	})
	return nil
}
