// Package protocol encodes and decodes the vine race wire format.
//
// Every message is one tag byte followed by a payload whose length is fixed by
// the tag and the direction of travel (see payloadSizes). There is no length
// prefix, so the size table is the only framing authority. Numeric payload
// bytes are offset by Bias so they travel as printable ASCII digits.
package protocol

import (
	"fmt"

	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
)

// Tag is the leading byte of every message.
type Tag byte

const (
	TagHandshake Tag = 'H'
	TagGo        Tag = 'G'
	TagMove      Tag = 'M'
	TagPlaced    Tag = 'P'
	TagRestart   Tag = 'R'
	TagFinished  Tag = 'F'
	TagWaiting   Tag = 'W'
	TagRejected  Tag = 'X'
)

func (t Tag) String() string {
	return string(rune(t))
}

// Side names the receiving end of a stream.
type Side uint8

const (
	// ToServer is traffic written by a client and read by the server.
	ToServer Side = iota
	// ToClient is traffic written by the server and read by a client.
	ToClient
)

func (s Side) String() string {
	if s == ToServer {
		return "client->server"
	}
	return "server->client"
}

// Bias is added to every numeric payload byte: 0-4 encode as '0'-'4'.
const Bias byte = '0'

// noWinner is the Finished payload for a game that ended without a winner.
const noWinner byte = '-'

const targetsSize = 6

// payloadSizes is the framing table: payload length per tag per direction.
var payloadSizes = map[Side]map[Tag]int{
	ToServer: {
		TagMove:    1,
		TagRestart: 0,
	},
	ToClient: {
		TagHandshake: 1,
		TagGo:        targetsSize,
		TagPlaced:    1,
		TagRestart:   targetsSize,
		TagFinished:  1,
		TagWaiting:   0,
		TagRejected:  1,
	},
}

// PayloadSize returns the fixed payload length for tag travelling toward side.
func PayloadSize(side Side, tag Tag) (int, bool) {
	size, ok := payloadSizes[side][tag]
	return size, ok
}

// Message is the closed set of wire messages.
type Message interface {
	Tag() Tag
	Side() Side
	isMessage()
}

// Handshake assigns the receiving peer its role.
type Handshake struct{ Role match.Role }

// Go announces an active game and both targets.
type Go struct{ Targets match.Targets }

// MoveRequest asks the server to extend the vine.
type MoveRequest struct{ Direction grid.Direction }

// Placed confirms an accepted move to every peer.
type Placed struct{ Direction grid.Direction }

// RestartRequest asks the server for a new game.
type RestartRequest struct{}

// Restarted confirms a restart and carries the new targets.
type Restarted struct{ Targets match.Targets }

// Finished announces the end of a game.
type Finished struct {
	Winner    match.Role
	HasWinner bool
}

// Waiting tells the remaining peer its opponent left.
type Waiting struct{}

// Rejected tells the requesting peer its last request was refused.
type Rejected struct{ Reason Reason }

func (Handshake) Tag() Tag      { return TagHandshake }
func (Go) Tag() Tag             { return TagGo }
func (MoveRequest) Tag() Tag    { return TagMove }
func (Placed) Tag() Tag         { return TagPlaced }
func (RestartRequest) Tag() Tag { return TagRestart }
func (Restarted) Tag() Tag      { return TagRestart }
func (Finished) Tag() Tag       { return TagFinished }
func (Waiting) Tag() Tag        { return TagWaiting }
func (Rejected) Tag() Tag       { return TagRejected }

func (Handshake) Side() Side      { return ToClient }
func (Go) Side() Side             { return ToClient }
func (MoveRequest) Side() Side    { return ToServer }
func (Placed) Side() Side         { return ToClient }
func (RestartRequest) Side() Side { return ToServer }
func (Restarted) Side() Side      { return ToClient }
func (Finished) Side() Side       { return ToClient }
func (Waiting) Side() Side        { return ToClient }
func (Rejected) Side() Side       { return ToClient }

func (Handshake) isMessage()      {}
func (Go) isMessage()             {}
func (MoveRequest) isMessage()    {}
func (Placed) isMessage()         {}
func (RestartRequest) isMessage() {}
func (Restarted) isMessage()      {}
func (Finished) isMessage()       {}
func (Waiting) isMessage()        {}
func (Rejected) isMessage()       {}

// Reason is the payload of a Rejected message.
type Reason byte

const (
	ReasonOutOfBounds      Reason = 'O'
	ReasonCellOccupied     Reason = 'C'
	ReasonNotYourTurn      Reason = 'T'
	ReasonSessionNotActive Reason = 'S'
	ReasonGameNotFinished  Reason = 'N'
)

var reasonCodes = map[Reason]apperrors.Code{
	ReasonOutOfBounds:      apperrors.CodeOutOfBounds,
	ReasonCellOccupied:     apperrors.CodeCellOccupied,
	ReasonNotYourTurn:      apperrors.CodeNotYourTurn,
	ReasonSessionNotActive: apperrors.CodeSessionNotActive,
	ReasonGameNotFinished:  apperrors.CodeGameNotFinished,
}

// ReasonFor maps a domain error code to the rejection reason peers see.
func ReasonFor(code apperrors.Code) (Reason, bool) {
	for reason, c := range reasonCodes {
		if c == code {
			return reason, true
		}
	}
	return 0, false
}

// Code returns the domain error code for r.
func (r Reason) Code() apperrors.Code {
	if code, ok := reasonCodes[r]; ok {
		return code
	}
	return apperrors.CodeUnknown
}

func (r Reason) String() string {
	return fmt.Sprintf("%c(%s)", byte(r), r.Code())
}
