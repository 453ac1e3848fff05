package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendButtons(ctx context.Context, chatID int64, text string, rows [][]InlineButton) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}
