package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// wsRequest is a client frame on the websocket
type wsRequest struct {
	Op       string          `json:"op"`
	DeckRef  string          `json:"deckRef,omitempty"`
	Name     string          `json:"name,omitempty"`
	RoomCode string          `json:"roomCode,omitempty"`
	Action   string          `json:"action,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// wsFrame is a server frame: a request outcome or a room broadcast
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// wsResult is the payload of a "result" frame
type wsResult struct {
	Op       string    `json:"op"`
	OK       bool      `json:"ok"`
	Error    *APIError `json:"error,omitempty"`
	Room     *Room     `json:"room,omitempty"`
	RoomCode string    `json:"roomCode,omitempty"`
}

// wsAction is the payload of a playerAction broadcast
type wsAction struct {
	PlayerName string          `json:"playerName"`
	Action     string          `json:"actionName"`
	Payload    json.RawMessage `json:"payload"`
}

// wsRoomEvent is the common shape of roster and status broadcasts
type wsRoomEvent struct {
	Player *Player `json:"player"`
	Room   *Room   `json:"room"`
}

// session is an interactive websocket session with one room
type session struct {
	conn *websocket.Conn
	out  *Output
	json bool
}

// runSession dials the websocket endpoint, issues the initial request
// (createRoom or joinRoom), and hands control to an interactive loop
// reading commands from stdin until the user leaves or interrupts.
func runSession(initial wsRequest) error {
	wsURL, err := cfg.WebsocketURL()
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed: %w (HTTP %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	s := &session{
		conn: conn,
		out:  NewOutput(cfg.Output),
		json: cfg.Output == "json",
	}

	if err := s.send(initial); err != nil {
		return err
	}

	// The server answers every request with a result frame before any
	// further broadcasts reach this connection
	result, err := s.awaitResult()
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("%s", result.Error.String())
	}
	if !s.json && result.Room != nil {
		s.out.Print(*result.Room)
		fmt.Println()
		printSessionHelp()
	}

	frames := make(chan wsFrame)
	readErr := make(chan error, 1)
	go func() {
		for {
			var frame wsFrame
			if err := conn.ReadJSON(&frame); err != nil {
				readErr <- err
				return
			}
			frames <- frame
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case frame := <-frames:
			s.printFrame(frame)
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		case <-sigCh:
			return s.leave()
		case line, ok := <-lines:
			if !ok {
				return s.leave()
			}
			done, err := s.dispatch(line)
			if err != nil {
				s.out.PrintError(err)
				continue
			}
			if done {
				return s.leave()
			}
		}
	}
}

func (s *session) send(req wsRequest) error {
	return s.conn.WriteJSON(req)
}

// awaitResult reads frames until the next result, printing any
// broadcasts that arrive in between
func (s *session) awaitResult() (*wsResult, error) {
	deadline := time.Now().Add(10 * time.Second)
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	defer func() { _ = s.conn.SetReadDeadline(time.Time{}) }()

	for {
		var frame wsFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			return nil, fmt.Errorf("awaiting result: %w", err)
		}
		if frame.Event != "result" {
			s.printFrame(frame)
			continue
		}
		var result wsResult
		if err := json.Unmarshal(frame.Data, &result); err != nil {
			return nil, fmt.Errorf("malformed result: %w", err)
		}
		return &result, nil
	}
}

// dispatch parses one stdin command line; returns done=true when the
// session should end
func (s *session) dispatch(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "start":
		return false, s.send(wsRequest{Op: "startGame"})
	case "finish":
		return false, s.send(wsRequest{Op: "finishGame"})
	case "status":
		return false, s.send(wsRequest{Op: "getRoom"})
	case "say":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: say <action> [json payload]")
		}
		req := wsRequest{Op: "sendAction", Action: fields[1]}
		if len(fields) > 2 {
			payload := strings.Join(fields[2:], " ")
			if !json.Valid([]byte(payload)) {
				return false, fmt.Errorf("payload is not valid JSON: %s", payload)
			}
			req.Data = json.RawMessage(payload)
		}
		return false, s.send(req)
	case "leave", "quit", "exit":
		return true, nil
	case "help":
		printSessionHelp()
		return false, nil
	default:
		return false, fmt.Errorf("unknown command: %s (try 'help')", fields[0])
	}
}

// leave sends a best-effort leaveRoom and closes the connection politely
func (s *session) leave() error {
	_ = s.send(wsRequest{Op: "leaveRoom"})
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	if !s.json {
		fmt.Println("Left room")
	}
	return nil
}

func (s *session) printFrame(frame wsFrame) {
	if s.json {
		data, _ := json.Marshal(frame)
		fmt.Println(string(data))
		return
	}

	timestamp := time.Now().Format("15:04:05")

	switch frame.Event {
	case "result":
		var result wsResult
		if err := json.Unmarshal(frame.Data, &result); err == nil && !result.OK {
			fmt.Printf("[%s] error: %s\n", timestamp, result.Error.String())
			return
		}
		if err := json.Unmarshal(frame.Data, &result); err == nil && result.Room != nil {
			s.out.Print(*result.Room)
			return
		}
		fmt.Printf("[%s] ok\n", timestamp)
	case "playerJoined":
		var ev wsRoomEvent
		if err := json.Unmarshal(frame.Data, &ev); err == nil && ev.Player != nil {
			fmt.Printf("[%s] %s %s joined\n", timestamp, ev.Player.Avatar, ev.Player.Name)
			return
		}
		fmt.Printf("[%s] playerJoined\n", timestamp)
	case "playerLeft":
		var ev struct {
			PlayerID string `json:"playerId"`
			Room     *Room  `json:"room"`
		}
		if err := json.Unmarshal(frame.Data, &ev); err == nil {
			fmt.Printf("[%s] %s left\n", timestamp, ev.PlayerID)
			return
		}
		fmt.Printf("[%s] playerLeft\n", timestamp)
	case "gameStarted":
		fmt.Printf("[%s] game started\n", timestamp)
	case "roomUpdated":
		var ev wsRoomEvent
		if err := json.Unmarshal(frame.Data, &ev); err == nil && ev.Room != nil {
			fmt.Printf("[%s] room updated: %d players, %s\n",
				timestamp, len(ev.Room.Players), ev.Room.Status)
			return
		}
		fmt.Printf("[%s] roomUpdated\n", timestamp)
	case "playerAction":
		var ev wsAction
		if err := json.Unmarshal(frame.Data, &ev); err == nil {
			if len(ev.Payload) > 0 {
				fmt.Printf("[%s] %s: %s %s\n", timestamp, ev.PlayerName, ev.Action, string(ev.Payload))
			} else {
				fmt.Printf("[%s] %s: %s\n", timestamp, ev.PlayerName, ev.Action)
			}
			return
		}
		fmt.Printf("[%s] playerAction\n", timestamp)
	default:
		fmt.Printf("[%s] %s: %s\n", timestamp, frame.Event, string(frame.Data))
	}
}

func printSessionHelp() {
	fmt.Println("Commands:")
	fmt.Println("  start                     start the game (host only)")
	fmt.Println("  finish                    finish the game (host only)")
	fmt.Println("  say <action> [json]       broadcast a player action")
	fmt.Println("  status                    print the current room")
	fmt.Println("  leave                     leave the room and exit")
}
