package wa

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	isync "github.com/avilar/dealersync/internal/sync"
)

// ParseLiveMessage converts a live whatsmeow message event into the
// session-native shape the sync core consumes. Timestamps are epoch
// seconds at this boundary; the normalizer owns the store conversion.
func ParseLiveMessage(evt *events.Message) (chatID string, msg isync.NativeMessage) {
	return evt.Info.Chat.String(), isync.NativeMessage{
		ID:         evt.Info.ID,
		Body:       messageBody(evt.Message),
		FromMe:     evt.Info.IsFromMe,
		Timestamp:  evt.Info.Timestamp.Unix(),
		SenderName: evt.Info.PushName,
	}
}

// messageBody extracts displayable text, falling back to a media
// placeholder so the dashboard shows something for non-text messages.
func messageBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	switch {
	case msg.GetImageMessage() != nil:
		return "[image]"
	case msg.GetVideoMessage() != nil:
		return "[video]"
	case msg.GetAudioMessage() != nil:
		return "[audio]"
	case msg.GetDocumentMessage() != nil:
		return "[document]"
	case msg.GetStickerMessage() != nil:
		return "[sticker]"
	case msg.GetContactMessage() != nil:
		return "[contact]"
	case msg.GetLocationMessage() != nil:
		return "[location]"
	default:
		return ""
	}
}
