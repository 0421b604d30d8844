package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// 客戶端 → 伺服器事件
const (
	EventCreateRoom       = "createRoom"
	EventJoinRoom         = "joinRoom"
	EventLeaveRoom        = "leaveRoom"
	EventToggleReady      = "toggleReady"
	EventStartGame        = "startGame"
	EventStartCompetition = "startCompetition"
	EventAnswer           = "answer"
)

// 伺服器 → 客戶端事件
const (
	EventRoomCreated        = "roomCreated"
	EventPlayerJoined       = "playerJoined"
	EventPlayerLeft         = "playerLeft"
	EventHostChanged        = "hostChanged"
	EventPlayerReady        = "playerReady"
	EventGameStarting       = "gameStarting"
	EventCountdownUpdate    = "countdownUpdate"
	EventCountdownCancelled = "countdownCancelled"
	EventCompetitionStarted = "competitionStarted"
	EventGameStarted        = "gameStarted"
	EventNextQuestion       = "nextQuestion"
	EventAnswerReceived     = "answerReceived"
	EventGameOver           = "gameOver"
	EventRoomClosed         = "roomClosed"
	EventError              = "error"
)

const maxNameLength = 32

// Inbound 已驗證的客戶端訊息
//
// 封閉集合：只有本檔定義的型別實作此介面。
type Inbound interface {
	EventName() string
	validate() error
}

// CreateRoomRequest createRoom
type CreateRoomRequest struct {
	RoomCode   string `json:"roomCode,omitempty"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// JoinRoomRequest joinRoom
type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// LeaveRoomRequest leaveRoom
type LeaveRoomRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// ToggleReadyRequest toggleReady
type ToggleReadyRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// StartGameRequest startGame / startCompetition
type StartGameRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Event    string `json:"-"`
}

// AnswerRequest answer
//
// IsCorrect 由客戶端送出但不採用，正確與否以伺服器題庫判斷。
type AnswerRequest struct {
	RoomCode      string   `json:"roomCode"`
	PlayerID      string   `json:"playerId"`
	QuestionIndex *int     `json:"questionIndex"`
	Answer        *int     `json:"answer"`
	IsCorrect     *bool    `json:"isCorrect,omitempty"`
	TimeSpent     *float64 `json:"timeSpent,omitempty"`
}

func (CreateRoomRequest) EventName() string  { return EventCreateRoom }
func (JoinRoomRequest) EventName() string    { return EventJoinRoom }
func (LeaveRoomRequest) EventName() string   { return EventLeaveRoom }
func (ToggleReadyRequest) EventName() string { return EventToggleReady }
func (AnswerRequest) EventName() string      { return EventAnswer }

func (r StartGameRequest) EventName() string {
	if r.Event == "" {
		return EventStartGame
	}
	return r.Event
}

func (r *CreateRoomRequest) validate() error {
	if r.RoomCode != "" {
		code, err := NormalizeRoomCode(r.RoomCode)
		if err != nil {
			return err
		}
		r.RoomCode = code
	}
	if r.MaxPlayers < 0 {
		return fmt.Errorf("%w: maxPlayers=%d", ErrInvalidCapacity, r.MaxPlayers)
	}
	return validatePlayer(&r.PlayerID, &r.PlayerName)
}

func (r *JoinRoomRequest) validate() error {
	if err := requireCode(&r.RoomCode); err != nil {
		return err
	}
	return validatePlayer(&r.PlayerID, &r.PlayerName)
}

func (r *LeaveRoomRequest) validate() error {
	if err := requireCode(&r.RoomCode); err != nil {
		return err
	}
	return requireField("playerId", &r.PlayerID)
}

func (r *ToggleReadyRequest) validate() error {
	if err := requireCode(&r.RoomCode); err != nil {
		return err
	}
	return requireField("playerId", &r.PlayerID)
}

func (r *StartGameRequest) validate() error {
	if err := requireCode(&r.RoomCode); err != nil {
		return err
	}
	return requireField("playerId", &r.PlayerID)
}

func (r *AnswerRequest) validate() error {
	if err := requireCode(&r.RoomCode); err != nil {
		return err
	}
	if err := requireField("playerId", &r.PlayerID); err != nil {
		return err
	}
	if r.QuestionIndex == nil || *r.QuestionIndex < 0 {
		return fmt.Errorf("%w: 缺少 questionIndex", ErrInvalidPayload)
	}
	if r.Answer == nil {
		return fmt.Errorf("%w: 缺少 answer", ErrInvalidPayload)
	}
	return nil
}

func requireCode(code *string) error {
	if strings.TrimSpace(*code) == "" {
		return fmt.Errorf("%w: 缺少 roomCode", ErrInvalidPayload)
	}
	*code = strings.ToUpper(strings.TrimSpace(*code))
	return nil
}

func requireField(name string, v *string) error {
	*v = strings.TrimSpace(*v)
	if *v == "" {
		return fmt.Errorf("%w: 缺少 %s", ErrInvalidPayload, name)
	}
	return nil
}

func validatePlayer(id, name *string) error {
	if err := requireField("playerId", id); err != nil {
		return err
	}
	if err := requireField("playerName", name); err != nil {
		return err
	}
	if utf8.RuneCountInString(*name) > maxNameLength {
		*name = string([]rune(*name)[:maxNameLength])
	}
	return nil
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeInbound 解析並驗證客戶端訊息
//
// 格式：{"event": "<名稱>", "data": {...}}。
func DecodeInbound(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var msg Inbound
	switch env.Event {
	case EventCreateRoom:
		msg = &CreateRoomRequest{}
	case EventJoinRoom:
		msg = &JoinRoomRequest{}
	case EventLeaveRoom:
		msg = &LeaveRoomRequest{}
	case EventToggleReady:
		msg = &ToggleReadyRequest{}
	case EventStartGame, EventStartCompetition:
		msg = &StartGameRequest{Event: env.Event}
	case EventAnswer:
		msg = &AnswerRequest{}
	case "":
		return nil, fmt.Errorf("%w: 缺少 event", ErrInvalidPayload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%w: 缺少 data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// 對外訊息內容

type RoomCreatedPayload struct {
	RoomCode   string       `json:"roomCode"`
	MaxPlayers int          `json:"maxPlayers"`
	Players    []PlayerView `json:"players"`
}

type PlayerJoinedPayload struct {
	PlayerID    string       `json:"playerId"`
	PlayerName  string       `json:"playerName"`
	Reconnected bool         `json:"reconnected,omitempty"`
	Players     []PlayerView `json:"players"`
}

type PlayerLeftPayload struct {
	PlayerID string       `json:"playerId"`
	Players  []PlayerView `json:"players"`
}

type HostChangedPayload struct {
	PlayerID string `json:"playerId"`
}

type PlayerReadyPayload struct {
	PlayerID string       `json:"playerId"`
	IsReady  bool         `json:"isReady"`
	Players  []PlayerView `json:"players"`
}

type CountdownPayload struct {
	Countdown int `json:"countdown"`
}

type CountdownCancelledPayload struct {
	Reason string `json:"reason"`
}

type CompetitionStartedPayload struct {
	RoomCode string       `json:"roomCode"`
	Players  []PlayerView `json:"players"`
}

type GameStartedPayload struct {
	RoomCode        string           `json:"roomCode"`
	Questions       []PublicQuestion `json:"questions"`
	CurrentQuestion int              `json:"currentQuestion"`
	Question        PublicQuestion   `json:"question"`
	TimeLimit       float64          `json:"timeLimit"`
}

type NextQuestionPayload struct {
	QuestionIndex int            `json:"questionIndex"`
	Question      PublicQuestion `json:"question"`
	TimeLimit     float64        `json:"timeLimit"`
}

type AnswerReceivedPayload struct {
	PlayerID      string `json:"playerId"`
	QuestionIndex int    `json:"questionIndex"`
	IsCorrect     bool   `json:"isCorrect"`
	TimedOut      bool   `json:"timedOut,omitempty"`
	Points        int    `json:"points"`
	Score         int    `json:"score"`
	AnsweredCount int    `json:"answeredCount"`
	PlayerCount   int    `json:"playerCount"`
}

type GameOverPayload struct {
	RoomCode string   `json:"roomCode"`
	Results  []Result `json:"results"`
}

type RoomClosedPayload struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
