// Package model defines the request model shared by the command line and the dispatcher.
package model

import (
	"github.com/google/uuid"
)

// Command names understood by the storage dispatcher.
const (
	CommandInfo       = "info"
	CommandFormat     = "format"
	CommandList       = "list"
	CommandTree       = "tree"
	CommandRead       = "read"
	CommandReadChunks = "read_chunks"
	CommandWrite      = "write"
	CommandWriteChunk = "write_chunk"
	CommandCopy       = "copy"
	CommandRemove     = "remove"
	CommandRename     = "rename"
	CommandMigrate    = "migrate"
	CommandMkdir      = "mkdir"
	CommandMD5        = "md5"
	CommandStat       = "stat"
	CommandTimestamp  = "timestamp"
)

// Request is one parsed storage command line.
// It is created per invocation and never modified after parsing.
type Request struct {
	ID      uuid.UUID `json:"id"`
	Command string    `json:"command"`
	Path    string    `json:"path"`
	// Args is the unconsumed remainder: a second path or a byte count.
	Args string `json:"args,omitempty"`
}

// NewRequest creates a request with a fresh ID.
func NewRequest(command, path, args string) Request {
	return Request{
		ID:      uuid.New(),
		Command: command,
		Path:    path,
		Args:    args,
	}
}
