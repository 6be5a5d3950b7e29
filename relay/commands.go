package relay

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/relaydesk/courier/telegram"
)

// splitCommand breaks text into its first whitespace-delimited token and the
// remainder, with leading whitespace stripped from both.
func splitCommand(text string) (string, string) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimLeftFunc(text[i:], unicode.IsSpace)
}

// isCommand reports whether text invokes the named command, tolerating the
// @botname suffix Telegram appends when a command is picked from the chat
// suggestion list.
func isCommand(text, name string) bool {
	token, _ := splitCommand(text)
	if i := strings.IndexByte(token, '@'); i >= 0 {
		token = token[:i]
	}
	return token == "/"+name
}

// handleAdminCommand dispatches a slash command sent as a reply to a
// forwarded user message. The target user is always the one referenced by
// the forward being replied to.
func (s *Service) handleAdminCommand(ctx context.Context, msg *telegram.Message) {
	userID, err := ExtractUserID(msg.ReplyTo)
	if err != nil {
		s.reply(ctx, msg, fmt.Sprintf("Ошибка: %v", err))
		return
	}

	cmd, args := splitCommand(msg.Text)
	cmd = strings.ToLower(cmd)
	s.logger.Info("admin command", "command", cmd, "adminID", msg.From.ID, "userID", userID)

	switch cmd {
	case "/ban":
		adminCommandCount.WithLabelValues("ban").Inc()
		s.cmdBan(ctx, msg, userID, args)
	case "/mute":
		adminCommandCount.WithLabelValues("mute").Inc()
		s.cmdMute(ctx, msg, userID, args)
	case "/unmute":
		adminCommandCount.WithLabelValues("unmute").Inc()
		s.cmdUnmute(ctx, msg, userID)
	case "/unban":
		adminCommandCount.WithLabelValues("unban").Inc()
		s.cmdUnban(ctx, msg, userID)
	default:
		adminCommandCount.WithLabelValues("unknown").Inc()
		s.reply(ctx, msg, msgHelp)
	}
}

func (s *Service) cmdBan(ctx context.Context, msg *telegram.Message, userID int64, args string) {
	reason := strings.TrimSpace(args)
	if reason == "" {
		reason = defaultBanReason
	}

	if err := s.store.Ban(ctx, userID, reason); err != nil {
		s.reply(ctx, msg, deliveryError("блокировке", err))
		return
	}
	if err := s.notify(ctx, userID, banAssigned(reason)); err != nil {
		s.reply(ctx, msg, deliveryError("блокировке", err))
		return
	}
	s.reply(ctx, msg, msgBanConfirmed)
}

func (s *Service) cmdMute(ctx context.Context, msg *telegram.Message, userID int64, args string) {
	ban, err := s.store.BanStatus(ctx, userID)
	if err != nil {
		s.reply(ctx, msg, deliveryError("муте", err))
		return
	}
	if ban != nil {
		s.reply(ctx, msg, msgMuteWhileBanned)
		return
	}

	durationStr := "1ч"
	reason := defaultMuteReason
	if args != "" {
		var rest string
		durationStr, rest = splitCommand(args)
		if rest != "" {
			reason = rest
		}
	}

	minutes, display := ParseDuration(durationStr)
	d := time.Duration(minutes) * time.Minute
	unmuteAt := time.Now().Add(d)

	if err := s.store.Mute(ctx, userID, d, reason); err != nil {
		s.reply(ctx, msg, deliveryError("муте", err))
		return
	}
	if err := s.notify(ctx, userID, muteAssigned(display, reason, unmuteAt)); err != nil {
		s.reply(ctx, msg, deliveryError("муте", err))
		return
	}
	s.reply(ctx, msg, muteConfirmed(display))
}

func (s *Service) cmdUnmute(ctx context.Context, msg *telegram.Message, userID int64) {
	existed, err := s.store.Unmute(ctx, userID)
	if err != nil {
		s.reply(ctx, msg, deliveryError("размуте", err))
		return
	}
	if !existed {
		s.reply(ctx, msg, msgNotMuted)
		return
	}
	if err := s.notify(ctx, userID, msgUnmuted); err != nil {
		s.reply(ctx, msg, deliveryError("размуте", err))
		return
	}
	s.reply(ctx, msg, msgUnmuteConfirmed)
}

func (s *Service) cmdUnban(ctx context.Context, msg *telegram.Message, userID int64) {
	existed, err := s.store.Unban(ctx, userID)
	if err != nil {
		s.reply(ctx, msg, deliveryError("разблокировке", err))
		return
	}
	if !existed {
		s.reply(ctx, msg, msgNotBanned)
		return
	}
	if err := s.notify(ctx, userID, msgUnbanned); err != nil {
		s.reply(ctx, msg, deliveryError("разблокировке", err))
		return
	}
	s.reply(ctx, msg, msgUnbanConfirmed)
}

// handleInfo reports who the replied-to forward belongs to and whether any
// restriction is currently in force. Bans shadow mutes in the report.
func (s *Service) handleInfo(ctx context.Context, msg *telegram.Message) {
	userID, err := ExtractUserID(msg.ReplyTo)
	if err != nil {
		s.reply(ctx, msg, err.Error())
		return
	}

	chat, err := s.lookupUser(ctx, userID)
	if err != nil {
		s.reply(ctx, msg, fmt.Sprintf("Невозможно найти пользователя с таким Id. Текст ошибки:\n%s", apiDesc(err)))
		return
	}

	status := "Нет"
	ban, err := s.store.BanStatus(ctx, userID)
	if err != nil {
		s.logger.Error("failed to read ban state", "err", err, "userID", userID)
	}
	mute, err := s.store.MuteStatus(ctx, userID)
	if err != nil {
		s.logger.Error("failed to read mute state", "err", err, "userID", userID)
	}
	switch {
	case ban != nil:
		status = fmt.Sprintf("Забанен: %s", ban.Reason)
	case mute != nil:
		status = fmt.Sprintf("Замучен (до %s, осталось %s)", mute.UnmuteAt.Format(endTimeLayout), FormatRemaining(time.Until(mute.UnmuteAt)))
	}

	s.reply(ctx, msg, infoReport(chat, status))
	s.logger.Info("handled info command", "adminID", msg.From.ID, "userID", userID)
}
