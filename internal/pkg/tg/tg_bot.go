package tg

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tush00nka/phonechat/internal/pkg/phone"
)

var ErrPhoneNotLinked = errors.New("phone is not linked to a telegram chat")

type TelegramAdapter struct {
	bot *tgbotapi.BotAPI

	mu      sync.RWMutex
	chatIDs map[string]int64
}

func NewTelegramAdapter(botToken string) (*TelegramAdapter, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}

	return &TelegramAdapter{bot: bot, chatIDs: make(map[string]int64)}, nil
}

// SendSMS delivers text to the chat linked with the phone number.
func (t *TelegramAdapter) SendSMS(ctx context.Context, number, text string) error {
	id := t.GetID(number)
	if id == 0 {
		return fmt.Errorf("%w: %s", ErrPhoneNotLinked, number)
	}
	return t.SendMessage(id, text)
}

func (t *TelegramAdapter) SendMessage(chatID int64, message string) error {
	_, err := t.bot.Send(tgbotapi.NewMessage(chatID, message))
	return err
}

func (t *TelegramAdapter) GetID(number string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.chatIDs[phone.Normalize(number)]
}

// Link remembers which chat belongs to a phone number.
func (t *TelegramAdapter) Link(number string, chatID int64) {
	t.mu.Lock()
	t.chatIDs[phone.Normalize(number)] = chatID
	t.mu.Unlock()
}

// Run reads bot updates until ctx is cancelled. Users share their contact
// with the bot to receive login codes.
func (t *TelegramAdapter) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := t.bot.GetUpdatesChan(updateConfig)
	defer t.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(update)
		}
	}
}

func (t *TelegramAdapter) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	id := update.Message.Chat.ID

	if contact := update.Message.Contact; contact != nil {
		if contact.UserID != 0 && contact.UserID != update.Message.From.ID {
			t.reply(id, "Please share your own phone number")
			return
		}
		t.Link(contact.PhoneNumber, id)
		log.Printf("Linked phone %s to telegram chat %d", phone.Format(phone.Normalize(contact.PhoneNumber)), id)
		t.reply(id, "Thanks! Login codes will arrive here.")
		return
	}

	switch update.Message.Command() {
	case "start":
		msg := tgbotapi.NewMessage(id, "Share your phone number to receive login codes")
		msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact("Share phone number")),
		)
		if _, err := t.bot.Send(msg); err != nil {
			log.Printf("Failed to send telegram keyboard: %v", err)
		}
	case "":
		t.reply(id, "Send /start to link your phone number")
	default:
		t.reply(id, "Unknown command")
	}
}

func (t *TelegramAdapter) reply(chatID int64, text string) {
	if err := t.SendMessage(chatID, text); err != nil {
		log.Printf("Failed to reply in telegram chat %d: %v", chatID, err)
	}
}
