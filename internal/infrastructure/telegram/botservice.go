// Package telegram delivers user notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veil-vpn/veil/internal/application/notify"
	sharedConfig "github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// BotService provides Telegram Bot API operations
type BotService struct {
	httpClient *http.Client
	baseURL    string
	logger     logger.Interface
}

// NewBotService creates a new Telegram bot service. When no token is
// configured a no-op notifier is returned instead.
func NewBotService(cfg sharedConfig.TelegramConfig, log logger.Interface) notify.Notifier {
	if cfg.BotToken == "" {
		log.Infow("telegram bot token not configured, notifications disabled")
		return notify.NopNotifier{}
	}
	return &BotService{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: fmt.Sprintf("https://api.telegram.org/bot%s", cfg.BotToken),
		logger:  log.Named("telegram"),
	}
}

// sendMessage delivers one text message to a chat.
func (s *BotService) sendMessage(ctx context.Context, chatID int64, text string) error {
	body := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Warnw("telegram API error", "chat_id", chatID, "status", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *BotService) DeviceExpired(ctx context.Context, userExternalID int64, deviceType, accountName string) error {
	text := fmt.Sprintf("Your %s configuration %s expired and was disconnected. Top up your balance and provision a new one to continue.", deviceType, accountName)
	return s.sendMessage(ctx, userExternalID, text)
}

func (s *BotService) DeviceExpiringSoon(ctx context.Context, userExternalID int64, deviceType string, expiresAt time.Time) error {
	text := fmt.Sprintf("Your %s configuration expires on %s. Top up your balance to keep it running.", deviceType, expiresAt.Format("2006-01-02 15:04 MST"))
	return s.sendMessage(ctx, userExternalID, text)
}

func (s *BotService) DeviceDisconnected(ctx context.Context, userExternalID int64, deviceType, accountName string) error {
	text := fmt.Sprintf("Your %s configuration %s no longer exists on our servers and was deactivated. Provision a new one if this was unexpected.", deviceType, accountName)
	return s.sendMessage(ctx, userExternalID, text)
}

func (s *BotService) DevicesDeactivated(ctx context.Context, userExternalID int64, balance float64) error {
	text := fmt.Sprintf("Your balance (%.2f) no longer covers the daily charge, so all of your configurations were disconnected. Top up to restore service.", balance)
	return s.sendMessage(ctx, userExternalID, text)
}

func (s *BotService) LowBalance(ctx context.Context, userExternalID int64, balance float64, daysLeft float64) error {
	text := fmt.Sprintf("Your balance is running low: %.2f left, about %.1f days of service. Top up to avoid disconnection.", balance, daysLeft)
	return s.sendMessage(ctx, userExternalID, text)
}

func (s *BotService) ReferralBonus(ctx context.Context, referrerExternalID int64, amount float64) error {
	text := fmt.Sprintf("You earned a referral bonus of %.2f. It was added to your balance.", amount)
	return s.sendMessage(ctx, referrerExternalID, text)
}
