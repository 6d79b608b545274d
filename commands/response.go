package commands

import (
	"time"

	"github.com/c360studio/semstreams/agentic"
	"github.com/google/uuid"
)

// resultResponse builds a successful response addressed back to the sender.
func resultResponse(msg agentic.UserMessage, content string) agentic.UserResponse {
	return agentic.UserResponse{
		ResponseID:  uuid.New().String(),
		ChannelType: msg.ChannelType,
		ChannelID:   msg.ChannelID,
		UserID:      msg.UserID,
		Type:        agentic.ResponseTypeResult,
		Content:     content,
		Timestamp:   time.Now(),
	}
}

// errorResponse builds an error response addressed back to the sender.
func errorResponse(msg agentic.UserMessage, content string) agentic.UserResponse {
	return agentic.UserResponse{
		ResponseID:  uuid.New().String(),
		ChannelType: msg.ChannelType,
		ChannelID:   msg.ChannelID,
		UserID:      msg.UserID,
		Type:        agentic.ResponseTypeError,
		Content:     content,
		Timestamp:   time.Now(),
	}
}
