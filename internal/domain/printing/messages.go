package printing

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MessageKind identifies a protocol message exchanged with the renderer
type MessageKind string

const (
	// KindPrintPreviewRequest flows from the host to the renderer
	KindPrintPreviewRequest MessageKind = "PrintPreviewRequest"
	// KindMetafileReadyForPrinting flows from the renderer to the host
	KindMetafileReadyForPrinting MessageKind = "MetafileReadyForPrinting"
	// KindPrintPreviewFailed flows from the renderer to the host
	KindPrintPreviewFailed MessageKind = "PrintPreviewFailed"
)

// Message is a protocol message scoped to a document-render session
type Message interface {
	Kind() MessageKind
	Session() uuid.UUID
}

// PrintPreviewRequest asks the renderer to produce a preview
type PrintPreviewRequest struct {
	SessionID uuid.UUID    `json:"session_id"`
	RequestID RequestID    `json:"request_id"`
	Options   PrintOptions `json:"options"`
}

func (m *PrintPreviewRequest) Kind() MessageKind  { return KindPrintPreviewRequest }
func (m *PrintPreviewRequest) Session() uuid.UUID { return m.SessionID }

// MetafileReadyForPrinting reports a rendered document waiting in shared memory
type MetafileReadyForPrinting struct {
	SessionID uuid.UUID     `json:"session_id"`
	Params    PreviewParams `json:"params"`
	Ids       PreviewIds    `json:"ids"`
}

func (m *MetafileReadyForPrinting) Kind() MessageKind  { return KindMetafileReadyForPrinting }
func (m *MetafileReadyForPrinting) Session() uuid.UUID { return m.SessionID }

// PrintPreviewFailed reports that the renderer could not produce a preview
type PrintPreviewFailed struct {
	SessionID      uuid.UUID      `json:"session_id"`
	DocumentCookie DocumentCookie `json:"document_cookie"`
	Ids            PreviewIds     `json:"ids"`
}

func (m *PrintPreviewFailed) Kind() MessageKind  { return KindPrintPreviewFailed }
func (m *PrintPreviewFailed) Session() uuid.UUID { return m.SessionID }

// Envelope is the wire form of a Message
type Envelope struct {
	Kind    MessageKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeMessage wraps msg into its JSON envelope
func EncodeMessage(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msg.Kind(), err)
	}
	return json.Marshal(Envelope{Kind: msg.Kind(), Payload: payload})
}

// DecodeMessage parses a JSON envelope back into its concrete Message
func DecodeMessage(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	var msg Message
	switch env.Kind {
	case KindPrintPreviewRequest:
		msg = &PrintPreviewRequest{}
	case KindMetafileReadyForPrinting:
		msg = &MetafileReadyForPrinting{}
	case KindPrintPreviewFailed:
		msg = &PrintPreviewFailed{}
	default:
		return nil, fmt.Errorf("unknown message kind: %q", env.Kind)
	}

	if err := json.Unmarshal(env.Payload, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", env.Kind, err)
	}
	return msg, nil
}
