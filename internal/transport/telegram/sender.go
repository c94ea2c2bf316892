// Package telegram delivers operator messages through the Telegram Bot API.
//
// The bot is created offline: mediafetch only sends, it never polls for
// updates, so no getMe round trip happens at startup.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "mediafetch/pkg/logx"
)

// textLimit is Telegram's maximum message length in UTF-16 units. Splitting
// by runes stays under it for BMP text.
const textLimit = 4096

type Config struct {
	Token string
	// URL overrides the Bot API endpoint (tests, local bot API servers).
	URL     string
	Timeout time.Duration
}

// Sender implements logx.Sender and notifier.Sender.
type Sender struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	st := tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.URL,
		Offline: true,
	}
	if cfg.Timeout > 0 {
		st.Client = &http.Client{Timeout: cfg.Timeout}
	}
	b, err := tele.NewBot(st)
	if err != nil {
		return nil, err
	}
	return &Sender{bot: b, log: log.With(logx.String("comp", "telegram"))}, nil
}

// SendText sends text to chatID, splitting it into several messages when it
// exceeds the Bot API limit. threadID selects a forum topic (0 for none).
func (s *Sender) SendText(ctx context.Context, chatID int64, threadID int, text string) error {
	if chatID == 0 {
		return errors.New("telegram: chat id is not set")
	}
	chunks := splitText(text, textLimit)
	if len(chunks) == 0 {
		return nil
	}
	chat := &tele.Chat{ID: chatID}
	for _, chunk := range chunks {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		_, err := s.bot.Send(chat, chunk, &tele.SendOptions{
			DisableWebPagePreview: true,
			ThreadID:              threadID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// splitText cuts text into chunks of at most limit runes, preferring line
// breaks as cut points.
func splitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	rs := []rune(text)
	if len(rs) <= limit {
		return []string{text}
	}
	var out []string
	for start := 0; start < len(rs); {
		end := start + limit
		if end >= len(rs) {
			out = append(out, string(rs[start:]))
			break
		}
		cut := end
		for i := end - 1; i > start+limit/2; i-- {
			if rs[i] == '\n' {
				cut = i + 1
				break
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:cut]), "\n"))
		start = cut
	}
	return out
}
