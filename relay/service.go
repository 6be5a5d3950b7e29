package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/relaydesk/courier/modstore"
	"github.com/relaydesk/courier/telegram"
)

// Transport is the slice of the Bot API the relay needs. *telegram.Client
// satisfies it; tests substitute a recording fake.
type Transport interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
	SendReply(ctx context.Context, chatID int64, replyToMessageID int, text string) (*telegram.Message, error)
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int, caption *string) error
	GetChat(ctx context.Context, chatID int64) (*telegram.Chat, error)
}

var _ Transport = (*telegram.Client)(nil)

type Service struct {
	logger   *slog.Logger
	tg       Transport
	store    modstore.ModStore
	rdb      *redis.Client
	profiles *expirable.LRU[int64, *telegram.Chat]

	groupChatID   int64
	groupChatType string
	pollTimeout   time.Duration
	pollRetryWait time.Duration
	sweepInterval time.Duration
	handleTimeout time.Duration

	// highest update id fully handled; read by the cursor persister
	lastUpdate int64
}

type Config struct {
	GroupChatID   int64
	GroupChatType string
	RedisURL      string
	PollTimeout   time.Duration
	SweepInterval time.Duration
	HandleTimeout time.Duration
	Logger        *slog.Logger
}

func NewService(tg Transport, store modstore.ModStore, config Config) (*Service, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if config.GroupChatID == 0 {
		return nil, fmt.Errorf("group chat id is required")
	}
	switch config.GroupChatType {
	case telegram.ChatTypeGroup, telegram.ChatTypeSupergroup:
	default:
		return nil, fmt.Errorf("unsupported group chat type: %q", config.GroupChatType)
	}

	var rdb *redis.Client
	if config.RedisURL != "" {
		// generic client, for cursor state
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}
	}

	pollTimeout := config.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	sweepInterval := config.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 60 * time.Second
	}
	handleTimeout := config.HandleTimeout
	if handleTimeout <= 0 {
		handleTimeout = 90 * time.Second
	}

	return &Service{
		logger:        logger,
		tg:            tg,
		store:         store,
		rdb:           rdb,
		profiles:      expirable.NewLRU[int64, *telegram.Chat](1000, nil, 10*time.Minute),
		groupChatID:   config.GroupChatID,
		groupChatType: config.GroupChatType,
		pollTimeout:   pollTimeout,
		pollRetryWait: 5 * time.Second,
		sweepInterval: sweepInterval,
		handleTimeout: handleTimeout,
	}, nil
}

func (s *Service) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// reply sends text into the chat msg came from, quoting msg so the response
// stays attached to the message it answers when several conversations run in
// the staff chat at once. Delivery failures are logged, not propagated.
func (s *Service) reply(ctx context.Context, msg *telegram.Message, text string) {
	if _, err := s.tg.SendReply(ctx, msg.Chat.ID, msg.MessageID, text); err != nil {
		notifyErrorCount.Inc()
		s.logger.Warn("failed to send reply", "err", err, "chatID", msg.Chat.ID)
	}
}

// answer is reply without the quote, for the greeting path where quoting a
// one-message chat is noise.
func (s *Service) answer(ctx context.Context, msg *telegram.Message, text string) {
	if _, err := s.tg.SendMessage(ctx, msg.Chat.ID, text); err != nil {
		notifyErrorCount.Inc()
		s.logger.Warn("failed to send reply", "err", err, "chatID", msg.Chat.ID)
	}
}

// notify sends a direct message to a user. Unlike reply, the error is
// returned so command handlers can report delivery failures to the invoker.
func (s *Service) notify(ctx context.Context, userID int64, text string) error {
	_, err := s.tg.SendMessage(ctx, userID, text)
	if err != nil {
		notifyErrorCount.Inc()
	}
	return err
}

// lookupUser resolves user profile metadata through a small TTL cache, so
// repeated /info calls on the same user skip the API round trip.
func (s *Service) lookupUser(ctx context.Context, userID int64) (*telegram.Chat, error) {
	if chat, ok := s.profiles.Get(userID); ok {
		return chat, nil
	}
	chat, err := s.tg.GetChat(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.profiles.Add(userID, chat)
	return chat, nil
}
