package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EditorType names the kind of document a room is about. Payload shapes are
// chosen by it.
type EditorType string

const (
	EditorScript   EditorType = "script"
	EditorFile     EditorType = "file"
	EditorLayout   EditorType = "layout"
	EditorTemplate EditorType = "template"
	EditorArticle  EditorType = "article"
)

var editorTypes = map[EditorType]bool{
	EditorScript:   true,
	EditorFile:     true,
	EditorLayout:   true,
	EditorTemplate: true,
	EditorArticle:  true,
}

func ParseEditorType(s string) (EditorType, error) {
	t := EditorType(strings.ToLower(strings.TrimSpace(s)))
	if !editorTypes[t] {
		return "", fmt.Errorf("unknown editor type %q", s)
	}
	return t, nil
}

// RoomKey is the broadcast group for one document, e.g. "article:12".
func RoomKey(t EditorType, id string) string {
	return string(t) + ":" + id
}

type Event string

const (
	EventConnected Event = "connected"
	EventLockState Event = "lockState"
	EventReload    Event = "reload"
	EventSaved     Event = "saved"
)

// Message is what travels through the hub and the bus.
type Message struct {
	Room  string          `json:"room"`
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewMessage(room string, event Event, payload any) (Message, error) {
	msg := Message{Room: room, Event: event}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	msg.Data = raw
	return msg, nil
}

type Connected struct {
	ConnectionID string `json:"connection_id"`
}

// LockState is broadcast after every lock transition. Locked is false and the
// holder fields are empty once the lock is cleared.
type LockState struct {
	EditorType   EditorType `json:"editor_type"`
	ArticleID    string     `json:"article_id"`
	Locked       bool       `json:"locked"`
	ActorEmail   string     `json:"actor_email,omitempty"`
	ConnectionID string     `json:"connection_id,omitempty"`
	AcquiredAt   *time.Time `json:"acquired_at,omitempty"`
}

// ReloadNotice tells editors in a room that the stored document changed.
type ReloadNotice struct {
	EditorType EditorType `json:"editor_type"`
	ArticleID  string     `json:"article_id"`
	VersionID  string     `json:"version_id,omitempty"`
	ActorEmail string     `json:"actor_email,omitempty"`
}

// ContentPayload is implemented only by the payload types in this file.
type ContentPayload interface {
	EditorType() EditorType
	isContentPayload()
}

type ScriptContent struct {
	HeaderScript string `json:"header_script"`
	FooterScript string `json:"footer_script"`
}

type FileContent struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type LayoutContent struct {
	Content string `json:"content"`
}

type TemplateContent struct {
	TemplateID string `json:"template_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

type ArticleContent struct {
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	Title         string `json:"title"`
	Content       string `json:"content"`
}

func (ScriptContent) EditorType() EditorType   { return EditorScript }
func (FileContent) EditorType() EditorType     { return EditorFile }
func (LayoutContent) EditorType() EditorType   { return EditorLayout }
func (TemplateContent) EditorType() EditorType { return EditorTemplate }
func (ArticleContent) EditorType() EditorType  { return EditorArticle }

func (ScriptContent) isContentPayload()   {}
func (FileContent) isContentPayload()     {}
func (LayoutContent) isContentPayload()   {}
func (TemplateContent) isContentPayload() {}
func (ArticleContent) isContentPayload()  {}

// SavedNotice carries the saved document to the other editors in the room.
type SavedNotice struct {
	ArticleID string
	Content   ContentPayload
}

type savedNoticeWire struct {
	EditorType EditorType      `json:"editor_type"`
	ArticleID  string          `json:"article_id"`
	Content    json.RawMessage `json:"content"`
}

func (n SavedNotice) MarshalJSON() ([]byte, error) {
	if n.Content == nil {
		return nil, fmt.Errorf("saved notice without content")
	}
	raw, err := json.Marshal(n.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(savedNoticeWire{
		EditorType: n.Content.EditorType(),
		ArticleID:  n.ArticleID,
		Content:    raw,
	})
}

func (n *SavedNotice) UnmarshalJSON(data []byte) error {
	var wire savedNoticeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	content, err := DecodeContent(wire.EditorType, wire.Content)
	if err != nil {
		return err
	}
	n.ArticleID = wire.ArticleID
	n.Content = content
	return nil
}

// DecodeContent decodes raw into the payload type registered for t.
func DecodeContent(t EditorType, raw json.RawMessage) (ContentPayload, error) {
	var target ContentPayload
	switch t {
	case EditorScript:
		var c ScriptContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		target = c
	case EditorFile:
		var c FileContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		target = c
	case EditorLayout:
		var c LayoutContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		target = c
	case EditorTemplate:
		var c TemplateContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		target = c
	case EditorArticle:
		var c ArticleContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		target = c
	default:
		return nil, fmt.Errorf("unknown editor type %q", t)
	}
	return target, nil
}
