package hub

import "github.com/sumanthd032/collabhub/internal/wire"

func documentStateBody(state DocumentState) wire.DocumentStateBody {
	return wire.DocumentStateBody{
		Content:      state.Content,
		Version:      state.Version,
		LastModified: state.LastModified,
	}
}

func encodeDocumentState(body wire.DocumentStateBody) ([]byte, error) {
	return wire.EncodeDocumentState(body)
}

func userJoinedFrame(userID string) []byte {
	b, _ := wire.EncodeUserJoined(userID)
	return b
}

func userLeftFrame(userID string) []byte {
	b, _ := wire.EncodeUserLeft(userID)
	return b
}

func documentUpdatedFrame(content, userID string, timestamp int64) []byte {
	b, _ := wire.EncodeDocumentUpdated(wire.DocumentUpdatedBody{
		Content:   content,
		UserID:    userID,
		Timestamp: timestamp,
	})
	return b
}

func errorFrame(message string) ([]byte, error) {
	return wire.EncodeError(message)
}
