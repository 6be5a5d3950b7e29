package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/relaydesk/courier/modstore"
	"github.com/relaydesk/courier/telegram"
)

// The bot speaks Russian. Every literal it can say lives here, next to the
// helpers that assemble the composite ones.

// mute end times are shown as day.month.year hour:minute
const endTimeLayout = "02.01.2006 15:04"

const (
	defaultBanReason  = "Заблокирован администратором"
	defaultMuteReason = "Нарушение правил"

	msgGreeting = "Привет! Мы - команда поддержки. Если у вас есть вопрос, напишите нам, мы с радостью на него ответим."

	msgTextTooLong    = "Сообщение слишком длинное (максимум 4000 символов)"
	msgCaptionTooLong = "Слишком длинное описание. Описание не может быть больше 1000 символов"

	msgBanConfirmed    = "✅ Пользователь заблокирован."
	msgUnbanConfirmed  = "✅ Пользователь разблокирован."
	msgNotBanned       = "❌ Пользователь не забанен."
	msgUnmuteConfirmed = "✅ С пользователя сняты ограничения."
	msgNotMuted        = "❌ Пользователь не замучен."
	msgMuteWhileBanned = "❌ Пользователь забанен. Сначала разбаньте его."

	msgUnbanned    = "✅ Вы были разблокированы администратором."
	msgUnmuted     = "✅ С вас сняты ограничения. Вы можете снова писать в бота."
	msgAutoUnmuted = "✅ С вас автоматически сняты ограничения. Вы можете снова писать в бота."

	msgHelp = "❓ Неизвестная команда. Доступные команды:\n" +
		"/ban [причина] - заблокировать пользователя\n" +
		"/mute [время] [причина] - замутить пользователя (пример: 1ч, 30м, 1ч30м)\n" +
		"/unmute - размутить пользователя\n" +
		"/unban - разблокировать пользователя"
)

func banNotice(reason string) string {
	return fmt.Sprintf("❌ Вы были заблокированы администратором.\nПричина: %s\nВаши сообщения не будут обработаны.", reason)
}

func muteNotice(rec *modstore.MuteRecord, now time.Time) string {
	return fmt.Sprintf("❌ Вы были замучены администратором.\nПричина: %s\nОставшееся время: %s\nВаши сообщения не будут обработаны до размута.",
		rec.Reason, FormatRemaining(rec.UnmuteAt.Sub(now)))
}

func banAssigned(reason string) string {
	return fmt.Sprintf("⚠️ Вы были заблокированы администратором.\nПричина: %s", reason)
}

func muteAssigned(display, reason string, unmuteAt time.Time) string {
	return fmt.Sprintf("🔇 Вы были замучены администратором на %s.\nПричина: %s\nВаши сообщения больше не будут обработаны до %s.",
		display, reason, unmuteAt.Format(endTimeLayout))
}

func muteConfirmed(display string) string {
	return fmt.Sprintf("✅ Пользователь замучен на %s.", display)
}

func textForward(name string, userID int64, text string) string {
	return fmt.Sprintf("Имя: %s\nПрофиль: tg://user?id=%d\n\n%s", name, userID, text)
}

func mediaCaption(caption, name string, userID int64) string {
	return fmt.Sprintf("%s\n\nИмя: %s\ntg://user?id=%d", caption, name, userID)
}

func infoReport(chat *telegram.Chat, status string) string {
	username := "отсутствует"
	if chat.Username != "" {
		username = "@" + chat.Username
	}
	return fmt.Sprintf("Имя: %s\nId: %d\nusername: %s\nСтатус: %s", chat.FullName(), chat.ID, username, status)
}

// deliveryError formats the admin-facing report for a notification that could
// not be delivered; action is the noun in instrumental case ("блокировке").
func deliveryError(action string, err error) string {
	return fmt.Sprintf("❌ Ошибка при %s: %s", action, apiDesc(err))
}

// apiDesc digs the Bot API description out of err for user-facing replies,
// falling back to the plain error text.
func apiDesc(err error) string {
	var ae *telegram.APIError
	if errors.As(err, &ae) {
		return ae.Description
	}
	return err.Error()
}
