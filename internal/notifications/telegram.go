package notifications

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mercadito-pesca/mercadito-backend/pkg/config"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

// TelegramNotifier talks to the Bot API directly. Users without a linked
// chat are not reachable.
type TelegramNotifier struct {
	baseURL string
	client  *http.Client
	logg    *logger.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, client *http.Client, logg *logger.Logger) (*TelegramNotifier, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("telegram bot token required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.APIBase, "/") + "/bot" + cfg.BotToken
	return &TelegramNotifier{baseURL: base, client: client, logg: logg}, nil
}

func (n *TelegramNotifier) Channel() enums.NotificationChannel {
	return enums.ChannelTelegram
}

func (n *TelegramNotifier) Reaches(user *models.User) bool {
	_, ok := user.TelegramChatID()
	return ok
}

func (n *TelegramNotifier) SendOrderUpdate(ctx context.Context, user *models.User, order *models.Order, action string) bool {
	chatID, ok := user.TelegramChatID()
	if !ok || order == nil {
		return false
	}
	text := orderSubject(order, action) + "\n\n" + orderText(user, order, action)
	return n.report(ctx, n.sendMessage(ctx, chatID, text))
}

func (n *TelegramNotifier) SendQuote(ctx context.Context, user *models.User, quote *models.Quote, pdf []byte) bool {
	chatID, ok := user.TelegramChatID()
	if !ok || quote == nil {
		return false
	}
	if len(pdf) == 0 {
		return n.report(ctx, n.sendMessage(ctx, chatID, quoteText(user, quote)))
	}
	return n.report(ctx, n.sendDocument(ctx, chatID, QuoteFilename(quote.ID), quoteSubject(quote), pdf))
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, chatID int64, text string) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("text", text)
	form.Set("disable_web_page_preview", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/sendMessage", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return n.do(req)
}

func (n *TelegramNotifier) sendDocument(ctx context.Context, chatID int64, filename, caption string, doc []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if err := writer.WriteField("caption", caption); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("document", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(doc); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/sendDocument", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return n.do(req)
}

func (n *TelegramNotifier) do(req *http.Request) error {
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (n *TelegramNotifier) report(ctx context.Context, err error) bool {
	if err != nil {
		n.logg.Error(ctx, "telegram.send_failed", err)
		return false
	}
	return true
}
