package audit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"giftwrap/internal/model"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	bookings []model.Booking
	from, to string
	err      error
}

func (f *fakeSource) BookingsBetween(_ context.Context, from, to string) ([]model.Booking, error) {
	f.from, f.to = from, to
	return f.bookings, f.err
}

type recordingSender struct {
	name    string
	caption string
	size    int
}

func (r *recordingSender) SendDocument(_ context.Context, filename string, data []byte, caption string) error {
	r.name, r.caption, r.size = filename, caption, len(data)
	return nil
}

func sampleBookings() []model.Booking {
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return []model.Booking{
		{ID: 1, Date: "2024-01-02", Time: "09:00", Category: model.CategoryDropoff, NumberOfGifts: 3, Status: model.StatusPickedUp, CustomerName: "Alice", CreatedAt: created},
		{ID: 2, Date: "2024-01-02", Time: "11:00", Category: model.CategoryDelivery, NumberOfGifts: 2, Status: model.StatusDelivered, CustomerName: "Bob", CreatedAt: created},
		{ID: 3, Date: "2024-01-05", Time: "10:00", Category: model.CategoryDropoff, NumberOfGifts: 1, Status: model.StatusCancelled, CustomerName: "Carol", CreatedAt: created},
	}
}

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(time.Date(2024, 2, 17, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02-01", from)
	assert.Equal(t, "2024-02-29", to)
	assert.Equal(t, "bookings_2024-02.xlsx", Filename(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestMonthlyReport(t *testing.T) {
	src := &fakeSource{bookings: sampleBookings()}
	data, err := MonthlyReport(context.Background(), src, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", src.from)
	assert.Equal(t, "2024-01-31", src.to)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Bookings", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Reference", rows[0][1])
	assert.Equal(t, "GW-2024-01-02-1", rows[1][1])
	assert.Equal(t, "Alice", rows[1][9])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	// statuses sorted: cancelled, delivered, picked_up
	assert.Equal(t, []string{"cancelled", "1", "1"}, summary[1])
	assert.Equal(t, []string{"picked_up", "1", "3"}, summary[3])

	// cancelled bookings are left out of the category tally
	assert.Equal(t, "Category (active)", summary[5][0])
	assert.Equal(t, []string{"delivery", "1", "2"}, summary[6])
	assert.Equal(t, []string{"dropoff", "1", "3"}, summary[7])
}

func TestMonthlyReport_SourceError(t *testing.T) {
	_, err := MonthlyReport(context.Background(), &fakeSource{err: errors.New("db down")}, time.Now())
	assert.ErrorContains(t, err, "db down")
}

func TestExportMonth(t *testing.T) {
	dir := t.TempDir()
	sender := &recordingSender{}
	svc := NewService(&fakeSource{bookings: sampleBookings()}, dir, sender, nil)

	path, err := svc.ExportMonth(context.Background(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bookings_2024-01.xlsx"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int(info.Size()), sender.size)
	assert.Equal(t, "bookings_2024-01.xlsx", sender.name)
	assert.Equal(t, "Bookings January 2024", sender.caption)
}

type fakeBot struct {
	sent []tgbotapi.Chattable
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func TestTelegramDocuments(t *testing.T) {
	bot := &fakeBot{}
	docs := NewTelegramDocuments(bot, 77)
	require.NoError(t, docs.SendDocument(context.Background(), "a.xlsx", []byte("x"), "caption"))
	require.Len(t, bot.sent, 1)

	doc, ok := bot.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, int64(77), doc.ChatID)
	assert.Equal(t, "caption", doc.Caption)
}

func TestNextFirstOfMonth(t *testing.T) {
	next := nextFirstOfMonth(time.Date(2024, 12, 15, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC), next)
}
