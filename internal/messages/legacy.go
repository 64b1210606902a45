package messages

import "github.com/goccy/go-json"

// Legacy type discriminators
const (
	TypeTextMessage            = "TextMessage"
	TypeActionExecutionMessage = "ActionExecutionMessage"
	TypeResultMessage          = "ResultMessage"
)

// LegacyMessage is one of TextMessage, ActionExecutionMessage or ResultMessage.
type LegacyMessage interface {
	LegacyType() string
	MessageID() string
}

type TextMessage struct {
	ID              string `json:"id"`
	Role            Role   `json:"role"`
	Content         string `json:"content"`
	ParentMessageID string `json:"parentMessageId,omitempty"`
}

type ActionExecutionMessage struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Arguments       any    `json:"arguments"`
	ParentMessageID string `json:"parentMessageId"`
}

type ResultMessage struct {
	ID                string `json:"id"`
	Result            string `json:"result"`
	ActionExecutionID string `json:"actionExecutionId"`
	ActionName        string `json:"actionName"`
}

func (m TextMessage) LegacyType() string            { return TypeTextMessage }
func (m ActionExecutionMessage) LegacyType() string { return TypeActionExecutionMessage }
func (m ResultMessage) LegacyType() string          { return TypeResultMessage }

func (m TextMessage) MessageID() string            { return m.ID }
func (m ActionExecutionMessage) MessageID() string { return m.ID }
func (m ResultMessage) MessageID() string          { return m.ID }

func (m TextMessage) MarshalJSON() ([]byte, error) {
	type plain TextMessage
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeTextMessage, plain(m)})
}

func (m ActionExecutionMessage) MarshalJSON() ([]byte, error) {
	type plain ActionExecutionMessage
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeActionExecutionMessage, plain(m)})
}

func (m ResultMessage) MarshalJSON() ([]byte, error) {
	type plain ResultMessage
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeResultMessage, plain(m)})
}

// MarshalLegacy encodes msgs as a JSON array; nil encodes as [].
func MarshalLegacy(msgs []LegacyMessage) ([]byte, error) {
	if msgs == nil {
		msgs = []LegacyMessage{}
	}
	return json.Marshal(msgs)
}
