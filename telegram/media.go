package telegram

// SupportedMedia reports whether msg carries a media payload the relay knows
// how to copy: animation, audio, document, photo, sticker, video, video note
// or voice. Everything else (polls, locations, service messages) is out.
func SupportedMedia(msg *Message) bool {
	if msg == nil {
		return false
	}
	return msg.Animation != nil ||
		msg.Audio != nil ||
		msg.Document != nil ||
		len(msg.Photo) > 0 ||
		msg.Sticker != nil ||
		msg.Video != nil ||
		msg.VideoNote != nil ||
		msg.Voice != nil
}
