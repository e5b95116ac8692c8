package ws

import (
	"encoding/json"

	"github.com/nwrussi/openquiz-rooms/internal/api/apierr"
	"github.com/nwrussi/openquiz-rooms/internal/model"
)

// Operation names accepted on the wire
const (
	OpCreateRoom = "createRoom"
	OpJoinRoom   = "joinRoom"
	OpStartGame  = "startGame"
	OpFinishGame = "finishGame"
	OpLeaveRoom  = "leaveRoom"
	OpSendAction = "sendAction"
	OpGetRoom    = "getRoom"
)

// EventResult is the event name used for request outcomes
const EventResult = "result"

// Request is a client frame
type Request struct {
	Op       string          `json:"op"`
	DeckRef  string          `json:"deckRef,omitempty"`
	Name     string          `json:"name,omitempty"`
	RoomCode string          `json:"roomCode,omitempty"`
	Action   string          `json:"action,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Frame is a server frame: either a request outcome (event "result") or
// a room broadcast (§6 event names)
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Result is the payload of a "result" frame
type Result struct {
	Op       string          `json:"op"`
	OK       bool            `json:"ok"`
	Error    *apierr.APIError `json:"error,omitempty"`
	Room     *model.Room     `json:"room,omitempty"`
	RoomCode model.RoomCode  `json:"roomCode,omitempty"`
}

// badRequest builds an error carrying the INVALID_REQUEST wire code
func badRequest(msg string) error {
	return apierr.NewInvalidRequestError(msg)
}

// okResult builds a success outcome for an operation
func okResult(op string, room *model.Room) Result {
	res := Result{Op: op, OK: true, Room: room}
	if room != nil {
		res.RoomCode = room.Code
	}
	return res
}

// errResult builds a failure outcome for an operation
func errResult(op string, err error) Result {
	e := apierr.ToAPIError(err)
	return Result{Op: op, OK: false, Error: &e}
}

// marshalFrame serializes a server frame; marshal errors indicate a
// programming bug and yield an internal-error result frame
func marshalFrame(event string, data any) []byte {
	buf, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		fallback, _ := json.Marshal(Frame{Event: EventResult, Data: Result{
			OK:    false,
			Error: &apierr.APIError{Code: apierr.CodeInternalError, Message: "encoding failure"},
		}})
		return fallback
	}
	return buf
}

// marshalEvent serializes a broadcast event for the wire. model.Event
// already carries the {event, data} envelope, plus the room code and
// publish timestamp.
func marshalEvent(ev model.Event) []byte {
	buf, err := json.Marshal(ev)
	if err != nil {
		return marshalFrame(string(ev.Type), nil)
	}
	return buf
}
