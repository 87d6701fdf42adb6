package awstest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Message is a message captured by SQS.
type Message struct {
	QueueURL   string
	Body       string
	Attributes map[string]sqstypes.MessageAttributeValue
}

// SQS records sent messages.
type SQS struct {
	mu       sync.Mutex
	Messages []Message
	Err      error
}

// SendMessage implements aws.SQSAPI.
func (q *SQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return nil, q.Err
	}
	q.Messages = append(q.Messages, Message{QueueURL: deref(in.QueueUrl), Body: deref(in.MessageBody), Attributes: in.MessageAttributes})
	return &sqs.SendMessageOutput{MessageId: strPtr(fmt.Sprintf("msg-%d", len(q.Messages)))}, nil
}

// Sent returns a copy of the captured messages.
func (q *SQS) Sent() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.Messages...)
}

// CloudWatch records metric data.
type CloudWatch struct {
	mu    sync.Mutex
	Data  []cwtypes.MetricDatum
	Err   error
	Space string
}

// PutMetricData implements aws.CloudWatchAPI.
func (c *CloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.Space = deref(in.Namespace)
	c.Data = append(c.Data, in.MetricData...)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// Sum adds up every recorded value for a metric name.
func (c *CloudWatch) Sum(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for _, d := range c.Data {
		if deref(d.MetricName) == name && d.Value != nil {
			total += *d.Value
		}
	}
	return total
}

// Object is an object stored in S3.
type Object struct {
	Body        []byte
	ContentType string
}

// S3 stores objects in memory.
type S3 struct {
	mu      sync.Mutex
	Objects map[string]Object
	Err     error
}

// PutObject implements aws.S3API.
func (s *S3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if in.Body == nil {
		return nil, errors.New("nil body")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, in.Body); err != nil {
		return nil, err
	}
	if s.Objects == nil {
		s.Objects = map[string]Object{}
	}
	s.Objects[deref(in.Bucket)+"/"+deref(in.Key)] = Object{Body: buf.Bytes(), ContentType: deref(in.ContentType)}
	return &s3.PutObjectOutput{}, nil
}

// DeleteObject implements aws.S3API. Deleting a missing key succeeds, as in S3.
func (s *S3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	delete(s.Objects, deref(in.Bucket)+"/"+deref(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
