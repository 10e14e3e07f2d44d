package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
)

type fakeMessages struct {
	reqs []*larkim.CreateMessageReq
	resp *larkim.CreateMessageResp
	err  error
}

func (f *fakeMessages) Create(_ context.Context, req *larkim.CreateMessageReq, _ ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	f.reqs = append(f.reqs, req)
	return f.resp, f.err
}

func okResponse(id string) *larkim.CreateMessageResp {
	return &larkim.CreateMessageResp{Data: &larkim.CreateMessageRespData{MessageId: &id}}
}

func TestNotifier_Notify(t *testing.T) {
	fake := &fakeMessages{resp: okResponse("om_1")}
	n, err := newNotifier(fake, Config{ReceiveID: "oc_finance"}, zap.NewNop())
	require.NoError(t, err)

	err = n.Notify(context.Background(), port.Message{Title: "QUOTE:7 CANCELLED", Body: `moved by "admin"`})
	require.NoError(t, err)

	require.Len(t, fake.reqs, 1)
	body := fake.reqs[0].Body
	require.NotNil(t, body)
	assert.Equal(t, "oc_finance", *body.ReceiveId)
	assert.Equal(t, larkim.MsgTypeText, *body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	assert.Equal(t, "QUOTE:7 CANCELLED\nmoved by \"admin\"", content["text"])
}

func TestNotifier_Failures(t *testing.T) {
	_, err := newNotifier(&fakeMessages{}, Config{ReceiveID: " "}, zap.NewNop())
	assert.Error(t, err)

	n, err := newNotifier(&fakeMessages{err: errors.New("timeout")}, Config{ReceiveID: "oc_1"}, zap.NewNop())
	require.NoError(t, err)
	assert.ErrorContains(t, n.Notify(context.Background(), port.Message{Body: "x"}), "timeout")
	assert.Error(t, n.Notify(context.Background(), port.Message{}))

	rejected := &larkim.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230002, Msg: "bot not in chat"}}
	n, err = newNotifier(&fakeMessages{resp: rejected}, Config{ReceiveID: "oc_1"}, zap.NewNop())
	require.NoError(t, err)
	assert.ErrorContains(t, n.Notify(context.Background(), port.Message{Body: "x"}), "bot not in chat")
}
