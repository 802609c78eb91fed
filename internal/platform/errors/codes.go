// Package errors provides structured error handling for the vine race services.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Move legality errors
	CodeOutOfBounds  Code = "OUT_OF_BOUNDS"
	CodeCellOccupied Code = "CELL_OCCUPIED"

	// Turn and phase errors
	CodeNotYourTurn      Code = "NOT_YOUR_TURN"
	CodeSessionNotActive Code = "SESSION_NOT_ACTIVE"
	CodeGameNotFinished  Code = "GAME_NOT_FINISHED"

	// Membership errors
	CodeSessionFull      Code = "SESSION_FULL"
	CodePeerDisconnected Code = "PEER_DISCONNECTED"

	// Wire errors
	CodeMalformedMessage Code = "MALFORMED_MESSAGE"
	CodeRateLimited      Code = "RATE_LIMITED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - the request can never succeed as sent
	case CodeOutOfBounds,
		CodeMalformedMessage:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeCellOccupied,
		CodeNotYourTurn,
		CodeSessionNotActive,
		CodeGameNotFinished:
		return codes.FailedPrecondition

	// ResourceExhausted - capacity limits
	case CodeSessionFull,
		CodeRateLimited:
		return codes.ResourceExhausted

	case CodePeerDisconnected:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
