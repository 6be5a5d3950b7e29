package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relaydesk/courier/modstore"
	"github.com/relaydesk/courier/telegram"
)

const (
	testGroupChatID = -100200300
	testAdminID     = 500
)

type SentMessage struct {
	ChatID int64
	Text   string
	// message id the send quoted, zero for plain sends
	ReplyTo int
}

type CopiedMessage struct {
	ToChatID   int64
	FromChatID int64
	MessageID  int
	Caption    *string
}

// queuedPoll is one scripted getUpdates result: a batch, or a failure.
type queuedPoll struct {
	updates []telegram.Update
	err     error
}

// RecordingTransport is an in-memory Transport for tests. Sends and copies
// are recorded in order; error maps simulate per-chat delivery failures.
type RecordingTransport struct {
	mu      sync.Mutex
	Sent    []SentMessage
	Copied  []CopiedMessage
	Offsets []int64
	Chats   map[int64]*telegram.Chat
	SendErr map[int64]error
	CopyErr map[int64]error
	ChatErr error

	polls []queuedPoll
}

var _ Transport = (*RecordingTransport)(nil)

func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{
		Chats:   make(map[int64]*telegram.Chat),
		SendErr: make(map[int64]error),
		CopyErr: make(map[int64]error),
	}
}

// QueueUpdates enqueues one getUpdates batch. Scripted polls are consumed in
// FIFO order; when the queue is empty GetUpdates blocks until ctx is
// cancelled, like a long poll with no traffic.
func (t *RecordingTransport) QueueUpdates(batch ...telegram.Update) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.polls = append(t.polls, queuedPoll{updates: batch})
}

// QueueUpdateError makes one getUpdates call fail with err.
func (t *RecordingTransport) QueueUpdateError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.polls = append(t.polls, queuedPoll{err: err})
}

func (t *RecordingTransport) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error) {
	t.mu.Lock()
	t.Offsets = append(t.Offsets, offset)
	if len(t.polls) > 0 {
		next := t.polls[0]
		t.polls = t.polls[1:]
		t.mu.Unlock()
		return next.updates, next.err
	}
	t.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (t *RecordingTransport) SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error) {
	return t.recordSend(chatID, text, 0)
}

func (t *RecordingTransport) SendReply(ctx context.Context, chatID int64, replyToMessageID int, text string) (*telegram.Message, error) {
	return t.recordSend(chatID, text, replyToMessageID)
}

func (t *RecordingTransport) recordSend(chatID int64, text string, replyTo int) (*telegram.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.SendErr[chatID]; err != nil {
		return nil, err
	}
	t.Sent = append(t.Sent, SentMessage{ChatID: chatID, Text: text, ReplyTo: replyTo})
	return &telegram.Message{
		MessageID: len(t.Sent),
		Chat:      telegram.Chat{ID: chatID},
		Text:      text,
	}, nil
}

func (t *RecordingTransport) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int, caption *string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.CopyErr[toChatID]; err != nil {
		return err
	}
	rec := CopiedMessage{ToChatID: toChatID, FromChatID: fromChatID, MessageID: messageID}
	if caption != nil {
		c := *caption
		rec.Caption = &c
	}
	t.Copied = append(t.Copied, rec)
	return nil
}

func (t *RecordingTransport) GetChat(ctx context.Context, chatID int64) (*telegram.Chat, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ChatErr != nil {
		return nil, t.ChatErr
	}
	if chat, ok := t.Chats[chatID]; ok {
		return chat, nil
	}
	return nil, &telegram.Error{
		StatusCode: 400,
		Wrapped:    &telegram.APIError{Code: 400, Description: "Bad Request: chat not found"},
	}
}

// Polls reports how many getUpdates calls have been made.
func (t *RecordingTransport) Polls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Offsets)
}

// SentTo returns the messages delivered to one chat, in order.
func (t *RecordingTransport) SentTo(chatID int64) []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []SentMessage
	for _, m := range t.Sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

type Fixture struct {
	Service   *Service
	Store     *modstore.MemModStore
	Transport *RecordingTransport
}

func ServiceTestFixture() Fixture {
	tr := NewRecordingTransport()
	store := modstore.NewMemModStore()
	svc, err := NewService(tr, store, Config{
		GroupChatID:   testGroupChatID,
		GroupChatType: telegram.ChatTypeSupergroup,
		Logger:        slog.Default(),
	})
	if err != nil {
		panic(err)
	}
	return Fixture{
		Service:   svc,
		Store:     store,
		Transport: tr,
	}
}

// privateText is the shape of a direct text message from a user.
func privateText(userID int64, text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 1,
		From:      &telegram.User{ID: userID, FirstName: "Тест"},
		Chat:      telegram.Chat{ID: userID, Type: telegram.ChatTypePrivate, FirstName: "Тест"},
		Text:      text,
	}
}

func privateMedia(userID int64, caption string) *telegram.Message {
	msg := privateText(userID, "")
	msg.Caption = caption
	msg.Photo = []telegram.PhotoSize{
		{FileID: "file123", FileUniqueID: "uniq123", Width: 90, Height: 90},
	}
	return msg
}

// groupForward is a user message already relayed into the staff chat,
// carrying the profile token admins reply to.
func groupForward(userID int64) *telegram.Message {
	return &telegram.Message{
		MessageID: 40,
		Chat:      telegram.Chat{ID: testGroupChatID, Type: telegram.ChatTypeSupergroup, Title: "Поддержка"},
		Text:      textForward("Тест", userID, "привет"),
	}
}

// staffReply is an admin message sent as a reply inside the staff chat.
func staffReply(replyTo *telegram.Message, text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 41,
		From:      &telegram.User{ID: testAdminID, FirstName: "Админ"},
		Chat:      telegram.Chat{ID: testGroupChatID, Type: telegram.ChatTypeSupergroup, Title: "Поддержка"},
		ReplyTo:   replyTo,
		Text:      text,
	}
}
