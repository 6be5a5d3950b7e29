package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relaydesk/courier/modstore"
	"github.com/relaydesk/courier/telegram"
)

func TestConsumerDispatch(t *testing.T) {
	assert := assert.New(t)
	fx := ServiceTestFixture()

	fx.Transport.QueueUpdates(
		telegram.Update{UpdateID: 6}, // no message payload
		telegram.Update{UpdateID: 7, Message: privateText(42, "привет")},
		telegram.Update{UpdateID: 8, Message: staffReply(groupForward(42), "/ban спам")},
		telegram.Update{UpdateID: 9, Message: &telegram.Message{
			MessageID: 5,
			From:      &telegram.User{ID: 77, FirstName: "Кто-то"},
			Chat:      telegram.Chat{ID: 555, Type: telegram.ChatTypeGroup, Title: "другая группа"},
			Text:      "мимо",
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fx.Service.RunConsumer(ctx) }()

	// the second poll only starts once the whole batch is handled
	deadline := time.After(2 * time.Second)
	for fx.Transport.Polls() < 2 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("consumer never finished the batch")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}

	// the user text was forwarded and the admin command executed
	group := fx.Transport.SentTo(testGroupChatID)
	if assert.Len(group, 2) {
		assert.Contains(group[0].Text, "tg://user?id=42")
		assert.Equal(msgBanConfirmed, group[1].Text)
	}
	sent := fx.Transport.SentTo(42)
	if assert.Len(sent, 1) {
		assert.Contains(sent[0].Text, "⚠️ Вы были заблокированы администратором.")
	}
	ban, err := fx.Store.BanStatus(context.Background(), 42)
	assert.NoError(err)
	assert.NotNil(ban)

	// messages from unrelated chats are dropped
	assert.Empty(fx.Transport.SentTo(555))

	// offset advanced past the highest handled update
	if assert.GreaterOrEqual(len(fx.Transport.Offsets), 2) {
		assert.Equal(int64(0), fx.Transport.Offsets[0])
		assert.Equal(int64(10), fx.Transport.Offsets[1])
	}
}

func TestConsumerPollErrorContinues(t *testing.T) {
	assert := assert.New(t)
	fx := ServiceTestFixture()
	fx.Service.pollRetryWait = time.Millisecond

	fx.Transport.QueueUpdateError(errors.New("telegram: 502 bad gateway"))
	fx.Transport.QueueUpdates(telegram.Update{UpdateID: 7, Message: privateText(42, "привет")})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fx.Service.RunConsumer(ctx) }()

	// the third poll only starts once the retried batch is handled
	deadline := time.After(2 * time.Second)
	for fx.Transport.Polls() < 3 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("consumer never recovered from the failed poll")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancel")
	}

	assert.Len(fx.Transport.SentTo(testGroupChatID), 1)

	// the failed poll neither advances nor rewinds the offset
	if assert.GreaterOrEqual(len(fx.Transport.Offsets), 3) {
		assert.Equal(int64(0), fx.Transport.Offsets[0])
		assert.Equal(int64(0), fx.Transport.Offsets[1])
		assert.Equal(int64(8), fx.Transport.Offsets[2])
	}
}

// panicBanStore simulates a registry read blowing up mid-dispatch.
type panicBanStore struct {
	modstore.ModStore
}

func (s *panicBanStore) BanStatus(ctx context.Context, userID int64) (*modstore.BanRecord, error) {
	panic("ban index corrupted")
}

func TestHandleUpdatePanicRecovered(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := ServiceTestFixture()
	fx.Service.store = &panicBanStore{ModStore: fx.Store}

	upd := &telegram.Update{UpdateID: 12, Message: privateText(42, "привет")}
	assert.NotPanics(func() { fx.Service.handleUpdate(ctx, upd) })
	assert.Empty(fx.Transport.Sent)

	// dispatch keeps working once the store behaves again
	fx.Service.store = fx.Store
	fx.Service.handleUpdate(ctx, &telegram.Update{UpdateID: 13, Message: privateText(42, "привет")})
	assert.Len(fx.Transport.SentTo(testGroupChatID), 1)
}

func TestConsumerIgnoresGroupChatter(t *testing.T) {
	assert := assert.New(t)
	fx := ServiceTestFixture()
	ctx := context.Background()

	// a staff message that replies to nothing is plain chatter
	fx.Service.handleUpdate(ctx, &telegram.Update{UpdateID: 3, Message: &telegram.Message{
		MessageID: 9,
		From:      &telegram.User{ID: testAdminID, FirstName: "Админ"},
		Chat:      telegram.Chat{ID: testGroupChatID, Type: telegram.ChatTypeSupergroup},
		Text:      "коллеги, кто дежурит?",
	}})

	assert.Empty(fx.Transport.Sent)
	assert.Empty(fx.Transport.Copied)
}

func TestCursorWithoutRedis(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fx := ServiceTestFixture()

	cursor, err := fx.Service.ReadLastCursor(ctx)
	assert.NoError(err)
	assert.EqualValues(0, cursor)
	assert.NoError(fx.Service.PersistCursor(ctx))
	assert.NoError(fx.Service.RunPersistCursor(ctx))
}
