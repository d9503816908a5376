package notifiers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

func TestAWSSQSSenderSend(t *testing.T) {
	client := &fakeSQSClient{}
	sender := &awsSQSSender{queueURL: "https://example.com/queue", client: client, log: noopLogger{}}

	if err := sender.Send(context.Background(), Event{Channel: "xw30f", URL: "https://tv.cctv.com/b"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["channel"]
	if !ok || aws.ToString(attr.StringValue) != "xw30f" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("channel attribute missing or wrong: %#v", attr)
	}
	if !strings.Contains(aws.ToString(client.input.MessageBody), `"url":"https://tv.cctv.com/b"`) {
		t.Fatalf("MessageBody missing url: %s", aws.ToString(client.input.MessageBody))
	}
}

func TestAWSSQSSenderSendError(t *testing.T) {
	sender := &awsSQSSender{queueURL: "q", client: &fakeSQSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := sender.Send(context.Background(), Event{Channel: "xwlb"}); err == nil {
		t.Fatalf("expected error from Send")
	}
}

func TestQueueNotifierWrapsSenderError(t *testing.T) {
	n := &queueNotifier{
		id:       "q1",
		provider: QueueProviderAWSSQS,
		sender:   &awsSQSSender{queueURL: "q", client: &fakeSQSClient{err: errors.New("boom")}, log: noopLogger{}},
	}
	err := n.Notify(context.Background(), Event{})
	if err == nil || !strings.Contains(err.Error(), QueueProviderAWSSQS) {
		t.Fatalf("expected provider in error, got %v", err)
	}
}
