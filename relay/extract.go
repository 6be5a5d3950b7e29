package relay

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/relaydesk/courier/telegram"
)

// ErrNoUserID means the replied-to message carries no recognizable user
// token. The text is user-facing: admins see it verbatim in error replies.
var ErrNoUserID = errors.New("Не могу извлечь Id")

var userTokenRe = regexp.MustCompile(`tg://user\?id=(\d+)`)

// ExtractUserID recovers the original sender's id from the tg://user?id=N
// token the relay embeds into every forwarded message. The message text is
// searched when present, otherwise the media caption.
func ExtractUserID(msg *telegram.Message) (int64, error) {
	if msg == nil {
		return 0, ErrNoUserID
	}
	body := msg.Text
	if body == "" {
		body = msg.Caption
	}
	m := userTokenRe.FindStringSubmatch(body)
	if m == nil {
		return 0, ErrNoUserID
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, ErrNoUserID
	}
	return id, nil
}
