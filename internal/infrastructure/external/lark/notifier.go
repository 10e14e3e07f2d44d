package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
)

// messageCreator is the slice of the IM API the notifier needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Notifier implements port.Notifier by posting text messages to one Lark receiver
type Notifier struct {
	messages      messageCreator
	receiveIDType string
	receiveID     string
	logger        *zap.Logger
}

var _ port.Notifier = (*Notifier)(nil)

// NewNotifier creates a notifier that posts to cfg.ReceiveID
func NewNotifier(sdk *SDKClient, cfg Config, logger *zap.Logger) (*Notifier, error) {
	return newNotifier(sdk.GetClient().Im.Message, cfg, logger)
}

func newNotifier(messages messageCreator, cfg Config, logger *zap.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.ReceiveID) == "" {
		return nil, fmt.Errorf("lark receive id cannot be empty")
	}
	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = "chat_id"
	}

	return &Notifier{
		messages:      messages,
		receiveIDType: idType,
		receiveID:     cfg.ReceiveID,
		logger:        logger,
	}, nil
}

// Notify sends msg as a text message
func (n *Notifier) Notify(ctx context.Context, msg port.Message) error {
	text := msg.Body
	if msg.Title != "" {
		text = msg.Title + "\n" + msg.Body
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(n.receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(n.receiveID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := n.messages.Create(ctx, req)
	if err != nil {
		n.logger.Error("Failed to send message",
			zap.String("receive_id", n.receiveID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		n.logger.Error("API returned failure",
			zap.String("receive_id", n.receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	n.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", n.receiveID))
	return nil
}
