package protocol

import (
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/grid"
	"github.com/louisbranch/phototropic/internal/services/vine/domain/match"
)

// ErrIncomplete reports that the buffer ends inside a frame. More bytes may
// complete it.
var ErrIncomplete = errors.New("incomplete message")

// Append encodes msg onto buf.
func Append(buf []byte, msg Message) []byte {
	buf = append(buf, byte(msg.Tag()))
	switch m := msg.(type) {
	case Handshake:
		buf = append(buf, Bias+byte(m.Role))
	case Go:
		buf = appendTargets(buf, m.Targets)
	case MoveRequest:
		buf = append(buf, byte(m.Direction))
	case Placed:
		buf = append(buf, byte(m.Direction))
	case RestartRequest:
	case Restarted:
		buf = appendTargets(buf, m.Targets)
	case Finished:
		if m.HasWinner {
			buf = append(buf, Bias+byte(m.Winner))
		} else {
			buf = append(buf, noWinner)
		}
	case Waiting:
	case Rejected:
		buf = append(buf, byte(m.Reason))
	default:
		panic(fmt.Sprintf("protocol: unknown message type %T", msg))
	}
	return buf
}

// Encode returns the wire bytes for msg.
func Encode(msg Message) []byte {
	size, _ := PayloadSize(msg.Side(), msg.Tag())
	return Append(make([]byte, 0, 1+size), msg)
}

// Decode reads one frame travelling toward side from the start of buf and
// returns it with the number of bytes consumed. It returns ErrIncomplete when
// buf holds a partial frame and a MALFORMED_MESSAGE error for an unknown tag
// or invalid payload.
func Decode(side Side, buf []byte) (Message, int, error) {
	if len(buf) == 0 {
		return nil, 0, ErrIncomplete
	}
	tag := Tag(buf[0])
	size, ok := PayloadSize(side, tag)
	if !ok {
		return nil, 0, malformed(fmt.Sprintf("unknown tag %q for %s", buf[0], side))
	}
	if len(buf) < 1+size {
		return nil, 0, ErrIncomplete
	}
	payload := buf[1 : 1+size]

	msg, err := decodePayload(side, tag, payload)
	if err != nil {
		return nil, 0, err
	}
	return msg, 1 + size, nil
}

// DecodeAll decodes a buffer that must hold only whole frames. A trailing
// partial frame is malformed.
func DecodeAll(side Side, buf []byte) ([]Message, error) {
	var out []Message
	for len(buf) > 0 {
		msg, n, err := Decode(side, buf)
		if errors.Is(err, ErrIncomplete) {
			return out, malformed(fmt.Sprintf("short buffer: %d trailing bytes", len(buf)))
		}
		if err != nil {
			return out, err
		}
		out = append(out, msg)
		buf = buf[n:]
	}
	return out, nil
}

func decodePayload(side Side, tag Tag, payload []byte) (Message, error) {
	switch side {
	case ToServer:
		switch tag {
		case TagMove:
			dir, err := grid.ParseDirection(payload[0])
			if err != nil {
				return nil, malformed(err.Error())
			}
			return MoveRequest{Direction: dir}, nil
		case TagRestart:
			return RestartRequest{}, nil
		}
	case ToClient:
		switch tag {
		case TagHandshake:
			role, err := decodeRole(payload[0])
			if err != nil {
				return nil, err
			}
			return Handshake{Role: role}, nil
		case TagGo:
			targets, err := decodeTargets(payload)
			if err != nil {
				return nil, err
			}
			return Go{Targets: targets}, nil
		case TagPlaced:
			dir, err := grid.ParseDirection(payload[0])
			if err != nil {
				return nil, malformed(err.Error())
			}
			return Placed{Direction: dir}, nil
		case TagRestart:
			targets, err := decodeTargets(payload)
			if err != nil {
				return nil, err
			}
			return Restarted{Targets: targets}, nil
		case TagFinished:
			if payload[0] == noWinner {
				return Finished{}, nil
			}
			role, err := decodeRole(payload[0])
			if err != nil {
				return nil, err
			}
			return Finished{Winner: role, HasWinner: true}, nil
		case TagWaiting:
			return Waiting{}, nil
		case TagRejected:
			reason := Reason(payload[0])
			if _, ok := reasonCodes[reason]; !ok {
				return nil, malformed(fmt.Sprintf("unknown rejection reason %q", payload[0]))
			}
			return Rejected{Reason: reason}, nil
		}
	}
	return nil, malformed(fmt.Sprintf("unknown tag %q for %s", byte(tag), side))
}

func appendTargets(buf []byte, targets match.Targets) []byte {
	for _, t := range targets {
		front := byte(0)
		if t.Front {
			front = 1
		}
		buf = append(buf, Bias+byte(t.Lateral), Bias+byte(t.Height), Bias+front)
	}
	return buf
}

func decodeTargets(payload []byte) (match.Targets, error) {
	var out match.Targets
	for i := range out {
		chunk := payload[i*3 : i*3+3]
		lateral, err := unbias(chunk[0], grid.Size)
		if err != nil {
			return match.Targets{}, err
		}
		height, err := unbias(chunk[1], grid.Size)
		if err != nil {
			return match.Targets{}, err
		}
		front, err := unbias(chunk[2], 2)
		if err != nil {
			return match.Targets{}, err
		}
		out[i] = match.Target{Lateral: lateral, Height: height, Front: front == 1}
	}
	return out, nil
}

func decodeRole(b byte) (match.Role, error) {
	v, err := unbias(b, 2)
	if err != nil {
		return 0, err
	}
	return match.Role(v), nil
}

// unbias removes Bias from b and checks the result lies in [0, limit).
func unbias(b byte, limit int) (int, error) {
	v := int(b) - int(Bias)
	if v < 0 || v >= limit {
		return 0, malformed(fmt.Sprintf("payload byte %q out of range", b))
	}
	return v, nil
}

func malformed(message string) error {
	return apperrors.New(apperrors.CodeMalformedMessage, message)
}
