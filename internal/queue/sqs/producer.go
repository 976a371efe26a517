package sqsqueue

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"chatcampaigns/internal/domain"
)

type Producer struct {
	SQS      *sqs.Client
	QueueURL string
}

// EnqueueInbound publishes one inbound chat event. The queue is FIFO with
// MessageGroupId = sender, so every event for one user is handled in
// arrival order by a single worker slot. This is what closes the
// dedup-check race between near-simultaneous messages from one user.
func (p *Producer) EnqueueInbound(ctx context.Context, ev domain.InboundMessage) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	groupID := inboundGroupID(ev.SenderID)
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               &p.QueueURL,
		MessageBody:            str(string(body)),
		MessageGroupId:         str(groupID),
		MessageDeduplicationId: str(ev.EventID),
	})
	return err
}

func inboundGroupID(senderID string) string {
	if senderID == "" {
		return "unknown"
	}
	return "sender:" + senderID
}

func str(s string) *string { return &s }
