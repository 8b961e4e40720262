// Package telegram implements transport.Bot on the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
)

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Result      json.RawMessage `json:"result"`
}

// Client talks to the Bot API. Retries are left to callers.
type Client struct {
	http   *resty.Client
	token  string
	logger *zap.Logger
}

// NewClient returns a client for token against baseURL, normally
// https://api.telegram.org.
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")

	return &Client{http: client, token: token, logger: logger}
}

var _ transport.Bot = (*Client)(nil)

func (c *Client) method(name string) string {
	return "/bot" + c.token + "/" + name
}

// call posts a JSON body to method and decodes the result into out, if
// non-nil.
func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	var envelope apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&envelope).
		SetError(&envelope).
		Post(c.method(method))
	return c.finish(method, resp, err, envelope, out)
}

func (c *Client) finish(method string, resp *resty.Response, err error, envelope apiResponse, out any) error {
	if err != nil {
		return fmt.Errorf("telegram %s: %w: %w", method, model.ErrTransport, c.redact(err))
	}
	if !envelope.OK {
		c.logger.Warn("telegram API returned error",
			zap.String("method", method),
			zap.Int("status_code", resp.StatusCode()),
			zap.Int("error_code", envelope.ErrorCode),
			zap.String("description", envelope.Description),
		)
		return fmt.Errorf("telegram %s: %w: %s (status %d)", method, model.ErrTransport, envelope.Description, resp.StatusCode())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// Send delivers msg to chat, as a photo when msg.Photo is set.
func (c *Client) Send(ctx context.Context, chat transport.ChatID, msg transport.Message) error {
	if len(msg.Photo) > 0 {
		return c.sendPhoto(ctx, chat, msg)
	}
	return c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:      int64(chat),
		Text:        msg.Text,
		ParseMode:   parseMode(msg),
		ReplyMarkup: replyMarkup(msg),
	}, nil)
}

func (c *Client) sendPhoto(ctx context.Context, chat transport.ChatID, msg transport.Message) error {
	form := map[string]string{
		"chat_id": strconv.FormatInt(int64(chat), 10),
	}
	if msg.Text != "" {
		form["caption"] = msg.Text
	}
	if mode := parseMode(msg); mode != "" {
		form["parse_mode"] = mode
	}
	if markup := replyMarkup(msg); markup != nil {
		raw, err := json.Marshal(markup)
		if err != nil {
			return fmt.Errorf("telegram sendPhoto: encode markup: %w", err)
		}
		form["reply_markup"] = string(raw)
	}

	var envelope apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetFileReader("photo", "credential.png", bytes.NewReader(msg.Photo)).
		SetResult(&envelope).
		SetError(&envelope).
		Post(c.method("sendPhoto"))
	return c.finish("sendPhoto", resp, err, envelope, nil)
}

// Edit replaces the text and inline keyboard of a sent message.
func (c *Client) Edit(ctx context.Context, chat transport.ChatID, messageID int64, msg transport.Message) error {
	req := editMessageRequest{
		ChatID:    int64(chat),
		MessageID: messageID,
		Text:      msg.Text,
		ParseMode: parseMode(msg),
	}
	if len(msg.Inline) > 0 {
		req.ReplyMarkup = inlineMarkup(msg.Inline)
	}
	return c.call(ctx, "editMessageText", req, nil)
}

// AnswerCallback acknowledges a button press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.call(ctx, "answerCallbackQuery", map[string]string{"callback_query_id": callbackID}, nil)
}

// DownloadPhoto fetches the bytes of an uploaded file.
func (c *Client) DownloadPhoto(ctx context.Context, fileID string) ([]byte, error) {
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := c.call(ctx, "getFile", map[string]string{"file_id": fileID}, &file); err != nil {
		return nil, err
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile: %w: no file path for %s", model.ErrTransport, fileID)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		Get("/file/bot" + c.token + "/" + file.FilePath)
	if err != nil {
		return nil, fmt.Errorf("telegram download: %w: %w", model.ErrTransport, c.redact(err))
	}
	if resp.IsError() {
		return nil, fmt.Errorf("telegram download: %w: status %d", model.ErrTransport, resp.StatusCode())
	}
	return resp.Body(), nil
}

// redact removes the token from err. Request URLs embed it, and transport
// errors end up in logs and operator alerts.
func (c *Client) redact(err error) error {
	if c.token == "" || !strings.Contains(err.Error(), c.token) {
		return err
	}
	if uerr, ok := err.(*url.Error); ok && uerr.Err != nil && !strings.Contains(uerr.Err.Error(), c.token) {
		// Keeps the cause (timeouts, cancellation) unwrappable.
		return &url.Error{Op: uerr.Op, URL: c.scrub(uerr.URL), Err: uerr.Err}
	}
	return errors.New(c.scrub(err.Error()))
}

func (c *Client) scrub(s string) string {
	return strings.ReplaceAll(s, c.token, "<redacted>")
}

func parseMode(msg transport.Message) string {
	if msg.Markdown {
		return "Markdown"
	}
	return ""
}
