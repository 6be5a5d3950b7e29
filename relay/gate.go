package relay

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/relaydesk/courier/telegram"
)

const (
	maxTextRunes    = 4000
	maxCaptionRunes = 1000
)

// gateUser enforces ban and mute state before any relay action. It reports
// whether the message may proceed, sending the restriction notice when it may
// not; quote controls whether the notice quotes the blocked message. Bans win
// over mutes; reading mute state lazily evicts an expired record.
func (s *Service) gateUser(ctx context.Context, msg *telegram.Message, quote bool) bool {
	respond := s.answer
	if quote {
		respond = s.reply
	}
	userID := msg.From.ID

	ban, err := s.store.BanStatus(ctx, userID)
	if err != nil {
		s.logger.Error("failed to read ban state", "err", err, "userID", userID)
		return false
	}
	if ban != nil {
		rejectedCount.WithLabelValues("banned").Inc()
		respond(ctx, msg, banNotice(ban.Reason))
		return false
	}

	mute, err := s.store.MuteStatus(ctx, userID)
	if err != nil {
		s.logger.Error("failed to read mute state", "err", err, "userID", userID)
		return false
	}
	if mute != nil {
		rejectedCount.WithLabelValues("muted").Inc()
		respond(ctx, msg, muteNotice(mute, time.Now()))
		return false
	}
	return true
}

func (s *Service) handleStart(ctx context.Context, msg *telegram.Message) {
	if !s.gateUser(ctx, msg, false) {
		return
	}
	s.answer(ctx, msg, msgGreeting)
}

// handleUserText forwards a private text message into the staff chat with the
// sender's name and profile token prepended.
func (s *Service) handleUserText(ctx context.Context, msg *telegram.Message) {
	if !s.gateUser(ctx, msg, true) {
		return
	}
	if utf8.RuneCountInString(msg.Text) > maxTextRunes {
		rejectedCount.WithLabelValues("too_long").Inc()
		s.reply(ctx, msg, msgTextTooLong)
		return
	}

	from := msg.From
	if _, err := s.tg.SendMessage(ctx, s.groupChatID, textForward(from.FullName(), from.ID, msg.Text)); err != nil {
		relayErrorCount.Inc()
		s.logger.Error("failed to forward text message", "err", err, "userID", from.ID)
		return
	}
	relayedCount.WithLabelValues("text").Inc()
	s.logger.Info("relayed user message to group", "userID", from.ID)
}

// handleUserMedia copies a private media message into the staff chat, tagging
// the caption with the sender's name and profile token.
func (s *Service) handleUserMedia(ctx context.Context, msg *telegram.Message) {
	if !s.gateUser(ctx, msg, true) {
		return
	}
	if utf8.RuneCountInString(msg.Caption) > maxCaptionRunes {
		rejectedCount.WithLabelValues("too_long").Inc()
		s.reply(ctx, msg, msgCaptionTooLong)
		return
	}

	from := msg.From
	caption := mediaCaption(msg.Caption, from.FullName(), from.ID)
	if err := s.tg.CopyMessage(ctx, s.groupChatID, msg.Chat.ID, msg.MessageID, &caption); err != nil {
		relayErrorCount.Inc()
		s.logger.Error("failed to forward media message", "err", err, "userID", from.ID)
		s.reply(ctx, msg, deliveryError("отправке медиа", err))
		return
	}
	relayedCount.WithLabelValues("media").Inc()
	s.logger.Info("relayed user media to group", "userID", from.ID)
}

// handleAdminReply copies a staff reply (text or media, verbatim) back to the
// user referenced by the token in the replied-to forward. Failures go back to
// the staff chat, never silently dropped.
func (s *Service) handleAdminReply(ctx context.Context, msg *telegram.Message) {
	userID, err := ExtractUserID(msg.ReplyTo)
	if err != nil {
		s.reply(ctx, msg, fmt.Sprintf("Не могу извлечь Id. Возможно он некорректный. Текст ошибки:\n%v", err))
		return
	}

	if err := s.tg.CopyMessage(ctx, userID, msg.Chat.ID, msg.MessageID, nil); err != nil {
		relayErrorCount.Inc()
		s.logger.Error("failed to relay admin reply", "err", err, "userID", userID)
		s.reply(ctx, msg, fmt.Sprintf("Ошибка при отправке сообщения пользователю: %s", apiDesc(err)))
		return
	}
	adminReplyCount.Inc()
	s.logger.Info("relayed admin reply to user", "adminID", msg.From.ID, "userID", userID)
}
