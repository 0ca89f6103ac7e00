package models

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Setting is one persisted key/value user setting
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
