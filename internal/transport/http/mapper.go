package http

import (
	"encoding/json"
	"strings"

	"github.com/vovakirdan/marketchat/internal/core"
	"github.com/vovakirdan/marketchat/internal/proto"
)

// bodyFromInbound extracts the chat body from a client frame.
// A non-nil *proto.Error is reported back to the client; the connection stays open.
func bodyFromInbound(inbound proto.Inbound) (string, *proto.Error) {
	if inbound.Type != proto.InboundTypeMsg {
		return "", &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}

	var msg proto.MsgData
	if err := json.Unmarshal(inbound.Data, &msg); err != nil {
		return "", &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed msg data"}
	}
	if strings.TrimSpace(msg.Body) == "" {
		return "", &proto.Error{Code: core.ErrCodeBadRequest, Msg: "body is required"}
	}
	return msg.Body, nil
}

func eventFromMessage(msg core.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:        msg.ID,
		RoomID:    msg.Room,
		Author:    msg.Author,
		Body:      msg.Body,
		Timestamp: msg.CreatedAt.UnixMilli(),
	}
}

func outboundFromMessage(msg core.Message) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventNameMessage,
		Data:  eventFromMessage(msg),
	}
}

func outboundFromError(e *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: e}
}
