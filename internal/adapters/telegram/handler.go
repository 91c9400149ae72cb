package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/mitsuha/hoyo-qr-bot/internal/app/worker"
)

// Approver runs one QR confirmation flow for a decoded login payload.
type Approver interface {
	Approve(ctx context.Context, codeURL string, requester int64) worker.FlowResult
}

// Handler connects the bot to the QR flows: inbound photos are the only
// trigger, one text reply per flow outcome is the only output.
type Handler struct {
	bot      *tgbot.Bot
	log      zerolog.Logger
	approver Approver
	allowed  func(int64) bool
	download *http.Client
}

func NewHandler(token string, approver Approver, allowed func(int64) bool, log zerolog.Logger) (*Handler, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if allowed == nil {
		allowed = func(int64) bool { return true }
	}

	h := &Handler{
		log:      log,
		approver: approver,
		allowed:  allowed,
		download: &http.Client{Timeout: 60 * time.Second},
	}

	b, err := tgbot.New(token, tgbot.WithDefaultHandler(h.onUpdate))
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	h.bot = b
	return h, nil
}

// Start runs the update loop until ctx is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info().Msg("telegram bot started")
	h.bot.Start(ctx)
	h.log.Info().Msg("telegram bot stopped")
}

func (h *Handler) onUpdate(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || len(msg.Photo) == 0 {
		return
	}
	if msg.From == nil || !h.allowed(msg.From.ID) {
		h.log.Warn().Int64("user", userID(msg)).Msg("ignoring photo from unlisted user")
		return
	}

	imageBytes, err := h.downloadLargestPhoto(ctx, msg.Photo)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to download photo")
		return
	}

	codeURL, err := worker.DecodeLoginQR(imageBytes)
	if err != nil {
		if !errors.Is(err, worker.ErrNoLoginQR) {
			h.log.Error().Err(err).Msg("QR decode failed")
		}
		return
	}

	result := h.approver.Approve(ctx, codeURL, msg.Chat.ID)
	if result.Reply != "" {
		h.reply(ctx, msg.Chat.ID, result.Reply)
	}
}

// downloadLargestPhoto fetches the highest-resolution rendition; Telegram
// sorts PhotoSize entries smallest first.
func (h *Handler) downloadLargestPhoto(ctx context.Context, sizes []models.PhotoSize) ([]byte, error) {
	fileID := sizes[len(sizes)-1].FileID

	file, err := h.bot.GetFile(ctx, &tgbot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.bot.FileDownloadLink(file), nil)
	if err != nil {
		return nil, err
	}
	res, err := h.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned %s", res.Status)
	}
	return io.ReadAll(res.Body)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	_, err := h.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("failed to send reply")
	}
}

func userID(msg *models.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}
