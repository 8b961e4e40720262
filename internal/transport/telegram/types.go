package telegram

import (
	"strings"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
)

type sendMessageRequest struct {
	ChatID      int64  `json:"chat_id"`
	Text        string `json:"text"`
	ParseMode   string `json:"parse_mode,omitempty"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

type editMessageRequest struct {
	ChatID      int64  `json:"chat_id"`
	MessageID   int64  `json:"message_id"`
	Text        string `json:"text"`
	ParseMode   string `json:"parse_mode,omitempty"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

type keyboardButton struct {
	Text           string `json:"text"`
	RequestContact bool   `json:"request_contact,omitempty"`
}

type replyKeyboardMarkup struct {
	Keyboard        [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard"`
	OneTimeKeyboard bool               `json:"one_time_keyboard"`
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type replyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

func replyMarkup(msg transport.Message) any {
	switch {
	case len(msg.Keyboard) > 0:
		rows := make([][]keyboardButton, len(msg.Keyboard))
		for i, row := range msg.Keyboard {
			rows[i] = make([]keyboardButton, len(row))
			for j, text := range row {
				rows[i][j] = keyboardButton{Text: text, RequestContact: msg.RequestContact}
			}
		}
		return replyKeyboardMarkup{
			Keyboard:        rows,
			ResizeKeyboard:  true,
			OneTimeKeyboard: msg.RequestContact,
		}
	case len(msg.Inline) > 0:
		return inlineMarkup(msg.Inline)
	case msg.RemoveKeyboard:
		return replyKeyboardRemove{RemoveKeyboard: true}
	}
	return nil
}

func inlineMarkup(buttons [][]transport.Button) inlineKeyboardMarkup {
	rows := make([][]inlineKeyboardButton, len(buttons))
	for i, row := range buttons {
		rows[i] = make([]inlineKeyboardButton, len(row))
		for j, b := range row {
			rows[i][j] = inlineKeyboardButton{Text: b.Text, CallbackData: b.Data}
		}
	}
	return inlineKeyboardMarkup{InlineKeyboard: rows}
}

// Update is an inbound webhook payload. Only the fields the bot reads are
// declared.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type Contact struct {
	PhoneNumber string `json:"phone_number"`
	UserID      int64  `json:"user_id,omitempty"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size,omitempty"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from,omitempty"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text,omitempty"`
	Contact   *Contact    `json:"contact,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

// Normalize converts a webhook payload to a transport.Update. It reports
// false for payloads the bot does not handle.
func (u Update) Normalize() (transport.Update, bool) {
	if q := u.CallbackQuery; q != nil {
		out := transport.Update{
			UserID:   q.From.ID,
			ChatID:   transport.ChatID(q.From.ID),
			Username: q.From.Username,
			Callback: &transport.Callback{ID: q.ID, Data: q.Data},
		}
		if q.Message != nil {
			out.ChatID = transport.ChatID(q.Message.Chat.ID)
			out.Callback.MessageID = q.Message.MessageID
		}
		return out, true
	}

	m := u.Message
	if m == nil || m.From == nil {
		return transport.Update{}, false
	}
	out := transport.Update{
		UserID:   m.From.ID,
		ChatID:   transport.ChatID(m.Chat.ID),
		Username: m.From.Username,
	}
	switch {
	case m.Contact != nil:
		out.Contact = m.Contact.PhoneNumber
	case len(m.Photo) > 0:
		// Sizes are ordered smallest first.
		out.PhotoFileID = m.Photo[len(m.Photo)-1].FileID
	case strings.HasPrefix(m.Text, "/"):
		fields := strings.Fields(m.Text)
		cmd := strings.TrimPrefix(fields[0], "/")
		if at := strings.IndexByte(cmd, '@'); at >= 0 {
			cmd = cmd[:at]
		}
		out.Command = cmd
		out.CommandArgs = fields[1:]
	case m.Text != "":
		out.Text = m.Text
	default:
		return transport.Update{}, false
	}
	return out, true
}
