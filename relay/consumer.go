package relay

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaydesk/courier/telegram"
)

var cursorKey = "courier/update_id"

func (s *Service) ReadLastCursor(ctx context.Context) (int64, error) {
	// if redis isn't configured, just skip
	if s.rdb == nil {
		s.logger.Info("redis not configured, skipping cursor read")
		return 0, nil
	}

	val, err := s.rdb.Get(ctx, cursorKey).Int64()
	if err == redis.Nil {
		s.logger.Info("no pre-existing cursor in redis")
		return 0, nil
	}
	s.logger.Info("found prior update cursor in redis", "updateID", val)
	return val, err
}

func (s *Service) PersistCursor(ctx context.Context) error {
	// if redis isn't configured, just skip
	if s.rdb == nil {
		return nil
	}
	last := atomic.LoadInt64(&s.lastUpdate)
	if last <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, cursorKey, last, 14*24*time.Hour).Err()
}

// this method runs in a loop, persisting the current cursor state every 5 seconds
func (s *Service) RunPersistCursor(ctx context.Context) error {
	// if redis isn't configured, just skip
	if s.rdb == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if last := atomic.LoadInt64(&s.lastUpdate); last >= 1 {
				s.logger.Info("persisting final update cursor", "updateID", last)
				// the loop context is already canceled
				persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.PersistCursor(persistCtx); err != nil {
					s.logger.Error("failed to persist cursor", "err", err, "updateID", last)
				}
			}
			return nil
		case <-ticker.C:
			if err := s.PersistCursor(ctx); err != nil {
				s.logger.Error("failed to persist cursor", "err", err, "updateID", atomic.LoadInt64(&s.lastUpdate))
			}
		}
	}
}

// RunConsumer long-polls the Bot API for updates and dispatches them, one at
// a time, in arrival order. Poll failures are logged and retried after a
// short pause; the loop only returns once ctx is canceled.
func (s *Service) RunConsumer(ctx context.Context) error {
	cursor, err := s.ReadLastCursor(ctx)
	if err != nil {
		return err
	}

	var offset int64
	if cursor > 0 {
		atomic.StoreInt64(&s.lastUpdate, cursor)
		offset = cursor + 1
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := s.tg.GetUpdates(ctx, offset, s.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			pollErrorCount.Inc()
			s.logger.Error("failed to fetch updates", "err", err)
			select {
			case <-time.After(s.pollRetryWait):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		for _, upd := range updates {
			// advance past the update before handling it, so a poisoned one
			// is never redelivered
			offset = upd.UpdateID + 1
			s.handleUpdate(ctx, &upd)
			atomic.StoreInt64(&s.lastUpdate, upd.UpdateID)
		}
	}
}

// handleUpdate routes one update to at most one handler. A panic inside a
// handler is recovered here so a poisoned update cannot take the consumer
// down.
func (s *Service) handleUpdate(ctx context.Context, upd *telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			updateErrorCount.Inc()
			s.logger.Error("update handling panic", "err", r, "updateID", upd.UpdateID)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, s.handleTimeout)
	defer cancel()

	updateReceivedCount.Inc()

	msg := upd.Message
	if msg == nil || msg.From == nil {
		updateHandledCount.WithLabelValues("ignored").Inc()
		return
	}

	switch {
	case msg.Chat.Type == telegram.ChatTypePrivate:
		s.handlePrivate(ctx, msg)
	case msg.Chat.ID == s.groupChatID && msg.Chat.Type == s.groupChatType:
		s.handleStaff(ctx, msg)
	default:
		updateHandledCount.WithLabelValues("ignored").Inc()
		s.logger.Debug("ignoring message from unrelated chat", "chatID", msg.Chat.ID, "chatType", msg.Chat.Type)
	}
}

func (s *Service) handlePrivate(ctx context.Context, msg *telegram.Message) {
	switch {
	case isCommand(msg.Text, "start"):
		updateHandledCount.WithLabelValues("start").Inc()
		s.handleStart(ctx, msg)
	case msg.Text != "":
		updateHandledCount.WithLabelValues("user_text").Inc()
		s.handleUserText(ctx, msg)
	case telegram.SupportedMedia(msg):
		updateHandledCount.WithLabelValues("user_media").Inc()
		s.handleUserMedia(ctx, msg)
	default:
		updateHandledCount.WithLabelValues("ignored").Inc()
		s.logger.Debug("ignoring unsupported private message", "userID", msg.From.ID)
	}
}

// handleStaff routes staff-chat traffic. Everything actionable there is a
// reply to a forwarded user message; bare chatter is ignored.
func (s *Service) handleStaff(ctx context.Context, msg *telegram.Message) {
	if msg.ReplyTo == nil {
		updateHandledCount.WithLabelValues("ignored").Inc()
		return
	}
	switch {
	case isCommand(msg.Text, "info"):
		updateHandledCount.WithLabelValues("info").Inc()
		s.handleInfo(ctx, msg)
	case strings.HasPrefix(msg.Text, "/"):
		updateHandledCount.WithLabelValues("admin_command").Inc()
		s.handleAdminCommand(ctx, msg)
	default:
		updateHandledCount.WithLabelValues("admin_reply").Inc()
		s.handleAdminReply(ctx, msg)
	}
}
