package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"

	"github.com/relaydesk/courier/pkg/robusthttp"
)

const DefaultHost = "https://api.telegram.org"

type Client struct {
	Host  string // defaults to DefaultHost
	Token string

	// Client is the underlying HTTP client to use for requests. If nil, a
	// default robusthttp client is constructed per call; long-running daemons
	// should set one explicitly so the connection pool is shared.
	Client *http.Client

	UserAgent *string

	// Limiter, when set, gates every outbound call. Telegram allows roughly
	// 30 messages per second bot-wide before flood control kicks in.
	Limiter *rate.Limiter
}

func (c *Client) getClient() *http.Client {
	if c.Client == nil {
		return robusthttp.NewClient()
	}
	return c.Client
}

// envelope is the uniform Bot API response wrapper.
type envelope struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
}

type responseParameters struct {
	MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
	RetryAfter      int   `json:"retry_after,omitempty"`
}

// do POSTs params as JSON to the named Bot API method and decodes the result
// into out (which may be nil for calls whose result the caller ignores).
func (c *Client) do(ctx context.Context, method string, params any, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body []byte
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		body = b
	}

	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	uri := host + "/bot" + c.Token + "/" + method

	req, err := http.NewRequestWithContext(ctx, "POST", uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != nil {
		req.Header.Set("User-Agent", *c.UserAgent)
	} else {
		req.Header.Set("User-Agent", "courier/"+versioninfo.Short())
	}

	resp, err := c.getClient().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &Error{StatusCode: resp.StatusCode, Wrapped: fmt.Errorf("failed to decode error response: %w", err)}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !env.OK {
		apiErr := &APIError{Code: env.ErrorCode, Description: env.Description}
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return &Error{StatusCode: resp.StatusCode, Wrapped: apiErr}
	}

	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return nil
}

// GetMe validates the token and returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, "getMe", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

type getUpdatesParams struct {
	Offset  int64 `json:"offset,omitempty"`
	Limit   int   `json:"limit,omitempty"`
	Timeout int   `json:"timeout,omitempty"`
}

// GetUpdates long-polls for new updates. The HTTP request is bounded at the
// poll window plus a grace period, so a configured client needs no global
// timeout of its own.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	var updates []Update
	params := getUpdatesParams{
		Offset:  offset,
		Timeout: int(timeout.Seconds()),
	}
	if err := c.do(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

type sendMessageParams struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ReplyToMessageID int    `json:"reply_to_message_id,omitempty"`
}

// SendMessage sends a plain-text message. For direct user notifications the
// chat id is the user id.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (*Message, error) {
	return c.sendMessage(ctx, sendMessageParams{ChatID: chatID, Text: text})
}

// SendReply sends a plain-text message quoting an earlier one in the same
// chat.
func (c *Client) SendReply(ctx context.Context, chatID int64, replyToMessageID int, text string) (*Message, error) {
	return c.sendMessage(ctx, sendMessageParams{
		ChatID:           chatID,
		Text:             text,
		ReplyToMessageID: replyToMessageID,
	})
}

func (c *Client) sendMessage(ctx context.Context, params sendMessageParams) (*Message, error) {
	var msg Message
	if err := c.do(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type copyMessageParams struct {
	ChatID     int64   `json:"chat_id"`
	FromChatID int64   `json:"from_chat_id"`
	MessageID  int     `json:"message_id"`
	Caption    *string `json:"caption,omitempty"`
}

// CopyMessage copies a message (any content type) into another chat without a
// forward header. A nil caption keeps the original caption; a non-nil one
// replaces it.
func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int, caption *string) error {
	params := copyMessageParams{
		ChatID:     toChatID,
		FromChatID: fromChatID,
		MessageID:  messageID,
		Caption:    caption,
	}
	var id MessageID
	return c.do(ctx, "copyMessage", params, &id)
}

type getChatParams struct {
	ChatID int64 `json:"chat_id"`
}

// GetChat fetches chat (or, for private chats, user profile) metadata.
func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	var chat Chat
	if err := c.do(ctx, "getChat", getChatParams{ChatID: chatID}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}
