package notify

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sink delivers a message to one channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// LogSink writes notifications to the log.
type LogSink struct {
	logger *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, msg Message) error {
	s.logger.Info().
		Str("notification_id", msg.ID).
		Str("kind", string(msg.Kind)).
		Int64("booking_id", msg.Booking.ID).
		Str("email", msg.Booking.CustomerEmail).
		Str("phone", msg.Booking.CustomerPhone).
		Msg(msg.Text())
	return nil
}

// TelegramSender is the subset of the bot API used for sending.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts notifications to the shop's admin chat.
type TelegramSink struct {
	bot    TelegramSender
	chatID int64
}

func NewTelegramSink(bot TelegramSender, chatID int64) *TelegramSink {
	return &TelegramSink{bot: bot, chatID: chatID}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := tgbotapi.NewMessage(s.chatID, msg.Text())
	_, err := s.bot.Send(out)
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &SinkError{
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second,
		}
	}
	return err
}
