package service

import (
	"context"
	"testing"

	"ilpotaxi/internal/modules/support/domain/entity"
	"ilpotaxi/internal/modules/support/domain/gateway"
	"ilpotaxi/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openConversation(t *testing.T, env *testEnv, sessionID string) string {
	t.Helper()
	item, err := env.handoff.Transfer(context.Background(), sessionID, "Иван", "")
	require.NoError(t, err)
	return item.Uuid
}

func TestRelayOperatorToClient(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(supportOperator("op-a", 5))
	convUuid := openConversation(t, env, "sess-1")

	res, err := env.relay.Relay(ctx, convUuid, DirectionToClient, "op-a", "Здравствуйте, чем помочь?")
	require.NoError(t, err)
	assert.True(t, res.Delivered)

	msgs, err := env.msgRepo.ListByConversation(convUuid, 0)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, entity.SenderOperator, last.SenderKind)

	pushed := env.clients.byType(gateway.NotifyMessage)
	require.Len(t, pushed, 1)
	assert.Equal(t, "Здравствуйте, чем помочь?", pushed[0].Text)
	assert.Equal(t, "operator", pushed[0].Sender)
}

func TestRelayClientToOperator(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(supportOperator("op-a", 5))
	convUuid := openConversation(t, env, "sess-1")

	res, err := env.relay.Relay(ctx, convUuid, DirectionToOperator, "Иван", "Какие документы нужны?")
	require.NoError(t, err)
	assert.True(t, res.Delivered)

	env.opGW.mu.Lock()
	defer env.opGW.mu.Unlock()
	var texts []string
	for _, n := range env.opGW.received {
		if n.Type == gateway.NotifyMessage {
			texts = append(texts, n.Text)
		}
	}
	require.Len(t, texts, 1)
	assert.Equal(t, "Какие документы нужны?", texts[0])
}

func TestRelayTransportFailureKeepsMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(supportOperator("op-a", 5))
	convUuid := openConversation(t, env, "sess-1")

	env.opGW.fail = true
	res, err := env.relay.Relay(ctx, convUuid, DirectionToOperator, "Иван", "Алло?")
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.TransportUnavailable))
	require.NotNil(t, res)
	assert.False(t, res.Delivered)

	msgs, err := env.msgRepo.ListByConversation(convUuid, 0)
	require.NoError(t, err)
	found := false
	for _, m := range msgs {
		if m.Uuid == res.MessageUuid {
			found = true
		}
	}
	assert.True(t, found, "the message survives a failed forward")

	conv, err := env.convRepo.GetByUuid(convUuid)
	require.NoError(t, err)
	assert.True(t, conv.IsActive, "a transport fault never closes the conversation")
}

func TestRelayRejectsClosedConversation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(supportOperator("op-a", 5))
	convUuid := openConversation(t, env, "sess-1")

	require.NoError(t, env.relay.Close(ctx, convUuid, "op-a"))
	_, err := env.relay.Relay(ctx, convUuid, DirectionToClient, "op-a", "ещё одно")
	assert.True(t, xerr.Is(err, xerr.ConversationClosed))
}

func TestRelayRejectsEmptyText(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(supportOperator("op-a", 5))
	convUuid := openConversation(t, env, "sess-1")

	_, err := env.relay.Relay(ctx, convUuid, DirectionToClient, "op-a", "")
	assert.True(t, xerr.Is(err, xerr.BadRequest))
}

func TestFirstOperatorReplyRecordsResponseTime(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(supportOperator("op-a", 5))
	convUuid := openConversation(t, env, "sess-1")

	_, err := env.relay.Relay(ctx, convUuid, DirectionToOperator, "Иван", "Где забрать машину?")
	require.NoError(t, err)
	assert.Empty(t, env.ops.recordedResponses(), "client messages carry no response sample")

	_, err = env.relay.Relay(ctx, convUuid, DirectionToClient, "op-a", "Добрый день, сейчас расскажу")
	require.NoError(t, err)
	_, err = env.relay.Relay(ctx, convUuid, DirectionToClient, "op-a", "Машина на стоянке у офиса")
	require.NoError(t, err)

	recorded := env.ops.recordedResponses()
	require.Len(t, recorded, 1, "only the first reply carries a sample")
	assert.Equal(t, "op-a", recorded[0].operatorUuid)
	assert.GreaterOrEqual(t, recorded[0].seconds, 0)
}

func TestCloseReleasesSlotExactlyOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(supportOperator("op-a", 5))
	convUuid := openConversation(t, env, "sess-1")

	count, err := env.counter.ActiveCount(ctx, "op-a")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, env.relay.Close(ctx, convUuid, "op-a"))
	count, err = env.counter.ActiveCount(ctx, "op-a")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.False(t, env.store.IsHandedOver("sess-1"), "session returns to the assistant")

	// a second close is a no-op, not an error
	require.NoError(t, env.relay.Close(ctx, convUuid, "op-a"))
	count, err = env.counter.ActiveCount(ctx, "op-a")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	notices := env.clients.byType(gateway.NotifyClosed)
	assert.Len(t, notices, 1, "the client hears about the close once")
}

func TestCloseBelongsToAnotherOperator(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(supportOperator("op-a", 5))
	convUuid := openConversation(t, env, "sess-1")

	err := env.relay.Close(ctx, convUuid, "op-b")
	assert.True(t, xerr.Is(err, xerr.Forbidden))

	conv, gErr := env.convRepo.GetByUuid(convUuid)
	require.NoError(t, gErr)
	assert.True(t, conv.IsActive)
}

func TestHistoryMarksClientMessagesRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(supportOperator("op-a", 5))
	convUuid := openConversation(t, env, "sess-1")

	_, err := env.relay.Relay(ctx, convUuid, DirectionToOperator, "Иван", "вопрос раз")
	require.NoError(t, err)
	_, err = env.relay.Relay(ctx, convUuid, DirectionToOperator, "Иван", "вопрос два")
	require.NoError(t, err)

	items, err := env.relay.History(convUuid, 0, true)
	require.NoError(t, err)
	require.Len(t, items, 2)

	items, err = env.relay.History(convUuid, 0, false)
	require.NoError(t, err)
	for _, it := range items {
		assert.True(t, it.IsRead)
	}
}

func TestActiveConversationBySession(t *testing.T) {
	env := newTestEnv(supportOperator("op-a", 5))
	convUuid := openConversation(t, env, "sess-1")

	item, err := env.relay.ActiveConversation("sess-1")
	require.NoError(t, err)
	assert.Equal(t, convUuid, item.Uuid)

	_, err = env.relay.ActiveConversation("sess-unknown")
	assert.True(t, xerr.Is(err, xerr.NotFound))
}
