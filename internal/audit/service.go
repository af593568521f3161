package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// DocumentSender delivers a finished workbook to staff.
type DocumentSender interface {
	SendDocument(ctx context.Context, filename string, data []byte, caption string) error
}

// TelegramBot is the subset of the bot API used for uploads.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDocuments uploads workbooks to the admin chat.
type TelegramDocuments struct {
	bot    TelegramBot
	chatID int64
}

func NewTelegramDocuments(bot TelegramBot, chatID int64) *TelegramDocuments {
	return &TelegramDocuments{bot: bot, chatID: chatID}
}

func (t *TelegramDocuments) SendDocument(ctx context.Context, filename string, data []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(t.chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	_, err := t.bot.Send(doc)
	return err
}

// Service exports the previous month's bookings shortly after each month starts.
type Service struct {
	src    BookingSource
	dir    string
	sender DocumentSender
	logger *zerolog.Logger
	now    func() time.Time
}

// NewService creates an exporter writing into dir. sender may be nil.
func NewService(src BookingSource, dir string, sender DocumentSender, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "audit").Logger()
	return &Service{src: src, dir: dir, sender: sender, logger: &l, now: time.Now}
}

// Start runs the monthly export until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	for {
		next := nextFirstOfMonth(s.now())
		s.logger.Info().Time("next_run", next).Msg("next bookings export scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		prev := s.now().AddDate(0, -1, 0)
		if _, err := s.ExportMonth(ctx, prev); err != nil {
			s.logger.Error().Err(err).Str("month", prev.Format("2006-01")).Msg("bookings export failed")
		}
	}
}

// ExportMonth writes the workbook for month to disk and hands it to the sender.
func (s *Service) ExportMonth(ctx context.Context, month time.Time) (string, error) {
	data, err := MonthlyReport(ctx, s.src, month)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	name := Filename(month)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	if s.sender != nil {
		caption := "Bookings " + month.Format("January 2006")
		if err := s.sender.SendDocument(ctx, name, data, caption); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("failed to send bookings export")
		}
	}

	s.logger.Info().Str("file", path).Int("bytes", len(data)).Msg("bookings export written")
	return path, nil
}

func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 5, 0, 0, now.Location())
}
