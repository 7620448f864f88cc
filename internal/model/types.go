// Package model defines the session lifecycle and engine event types shared
// across the gateway.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// SessionState is the lifecycle state of one messaging session.
type SessionState string

const (
	StateLoading      SessionState = "loading"
	StatePairing      SessionState = "awaiting-pairing"
	StateConnected    SessionState = "connected"
	StateDisconnected SessionState = "disconnected"
	StateDestroyed    SessionState = "destroyed"
)

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == StateDestroyed
}

// DisconnectCause classifies why the engine closed a connection. Only
// CauseLoggedOut prevents reconnection.
type DisconnectCause string

const (
	CauseLoggedOut      DisconnectCause = "logged-out"
	CauseConnectionLost DisconnectCause = "connection-lost"
	CauseUnknown        DisconnectCause = "unknown"
)

// ConnectionPhase is the engine's view of the link, carried on connection
// events.
type ConnectionPhase string

const (
	PhasePairing ConnectionPhase = "pairing"
	PhaseOpen    ConnectionPhase = "open"
	PhaseClosed  ConnectionPhase = "closed"
)

// EventKind names the event categories relayed to webhooks and the live feed.
type EventKind string

const (
	EventConnection        EventKind = "connection"
	EventMessage           EventKind = "message"
	EventGroupParticipants EventKind = "group-participants"
)

// ConnectionUpdate carries a connection-state change from the engine.
// PairingCode is set only for PhasePairing, Cause only for PhaseClosed.
type ConnectionUpdate struct {
	Phase       ConnectionPhase `json:"phase"`
	PairingCode string          `json:"pairingCode,omitempty"`
	Cause       DisconnectCause `json:"cause,omitempty"`
}

// Message is one inbound or outbound protocol message. The payload is opaque
// to the gateway; it is archived verbatim and handed back to the engine when
// it asks for history.
type Message struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// MessageBatch is a group of messages emitted together by the engine.
type MessageBatch struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}

// GroupParticipantsUpdate describes a group-membership change.
type GroupParticipantsUpdate struct {
	GroupID      string   `json:"groupId"`
	Action       string   `json:"action"`
	Participants []string `json:"participants"`
}

// Event is the single stream type the engine emits. Exactly one of the
// payload fields matching Kind is set.
type Event struct {
	Kind              EventKind
	Connection        *ConnectionUpdate
	Messages          *MessageBatch
	GroupParticipants *GroupParticipantsUpdate
}

// SendResult is the engine's acknowledgment of an outbound send.
type SendResult struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}

// MediaKind classifies outbound media the way the wire protocol expects it.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
)

// ClassifyMIME maps a MIME type to a MediaKind, defaulting to document.
func ClassifyMIME(mimeType string) MediaKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MediaImage
	case strings.HasPrefix(mimeType, "video/"):
		return MediaVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return MediaAudio
	default:
		return MediaDocument
	}
}

// Media references an uploaded file staged on local disk for an outbound send.
type Media struct {
	Path     string
	Kind     MediaKind
	Caption  string
	FileName string
}
