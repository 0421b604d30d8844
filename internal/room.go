package internal

import (
	"fmt"
	"time"
)

// 系統設計問題：
//   如何管理一場即時問答競賽的生命週期，並在玩家隨時斷線的情況下保持一致？
//
// 設計方案：
//   - 有限狀態機：waiting → starting → in_progress → finished
//   - Room 本身不持有鎖也不持有計時器，所有方法都在事件迴圈內執行
//   - 計時（倒數、下一題延遲、作答超時、結束保留）由 Manager 排程
//
// 不變量：
//   - len(players) <= MaxPlayers
//   - 玩家數 > 0 時恰好一位 IsHost
//   - 每位玩家每題最多一筆作答

// RoomStatus 房間狀態
//
//	waiting → starting → in_progress → finished
//	   ↑________↓ (倒數期間人數不足)
type RoomStatus string

const (
	StatusWaiting    RoomStatus = "waiting"     // 等待玩家加入與準備
	StatusStarting   RoomStatus = "starting"    // 開始倒數
	StatusInProgress RoomStatus = "in_progress" // 作答中
	StatusFinished   RoomStatus = "finished"    // 已結束，保留結果供查看
)

// Room 競賽房間
type Room struct {
	Code              string
	HostPlayerID      string
	MaxPlayers        int
	Status            RoomStatus
	Questions         []Question
	CurrentQuestion   int
	Countdown         int
	QuestionStartedAt time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	FinishedAt        time.Time

	players map[string]*PlayerSession // playerID -> session
	order   []string                  // 加入順序
}

// NewRoom 創建新房間
func NewRoom(code string, maxPlayers int, now time.Time) *Room {
	return &Room{
		Code:       code,
		MaxPlayers: maxPlayers,
		Status:     StatusWaiting,
		CreatedAt:  now,
		UpdatedAt:  now,
		players:    make(map[string]*PlayerSession),
	}
}

// Join 加入玩家
//
// 相同 playerID 再次加入視為重新連線：會話改綁到新連接並回傳舊連接 ID，
// 任何狀態都允許。新玩家只能在 waiting 狀態且未滿時加入。
func (r *Room) Join(connID, playerID, name string, now time.Time) (session *PlayerSession, previousConn string, err error) {
	if p, ok := r.players[playerID]; ok {
		previousConn = p.ConnectionID
		p.ConnectionID = connID
		if name != "" {
			p.Name = name
		}
		r.UpdatedAt = now
		return p, previousConn, nil
	}

	if r.Status != StatusWaiting {
		return nil, "", fmt.Errorf("%w: %s", ErrGameAlreadyStarted, r.Status)
	}
	if len(r.players) >= r.MaxPlayers {
		return nil, "", fmt.Errorf("%w: %d/%d", ErrRoomFull, len(r.players), r.MaxPlayers)
	}

	p := &PlayerSession{
		ConnectionID: connID,
		PlayerID:     playerID,
		Name:         name,
		IsHost:       len(r.players) == 0,
		JoinedAt:     now,
	}
	r.players[playerID] = p
	r.order = append(r.order, playerID)
	if p.IsHost {
		r.HostPlayerID = playerID
	}
	r.UpdatedAt = now
	return p, "", nil
}

// Leave 移除玩家
//
// 房主離開且仍有玩家時，依加入順序把房主轉給最早加入的玩家。
func (r *Room) Leave(playerID string, now time.Time) (removed, newHost *PlayerSession, err error) {
	p, ok := r.players[playerID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotInRoom, playerID)
	}

	delete(r.players, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.UpdatedAt = now

	if p.IsHost {
		p.IsHost = false
		r.HostPlayerID = ""
		if len(r.order) > 0 {
			newHost = r.players[r.order[0]]
			newHost.IsHost = true
			r.HostPlayerID = newHost.PlayerID
		}
	}
	return p, newHost, nil
}

// ToggleReady 切換準備狀態，不影響房間狀態
func (r *Room) ToggleReady(playerID string, now time.Time) (*PlayerSession, error) {
	p, ok := r.players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInRoom, playerID)
	}
	if r.Status != StatusWaiting {
		return nil, fmt.Errorf("%w: %s", ErrGameAlreadyStarted, r.Status)
	}
	p.IsReady = !p.IsReady
	r.UpdatedAt = now
	return p, nil
}

// CheckStart 驗證是否可以開始倒數
//
// 授權檢查優先於狀態檢查，非房主一律收到 ErrNotHost。
func (r *Room) CheckStart(playerID string, minPlayers int, requireAllReady bool) error {
	if r.HostPlayerID != playerID {
		return ErrNotHost
	}
	if r.Status != StatusWaiting {
		return fmt.Errorf("%w: %s", ErrGameAlreadyStarted, r.Status)
	}
	if len(r.players) < minPlayers {
		return fmt.Errorf("%w: %d/%d", ErrNotEnoughPlayers, len(r.players), minPlayers)
	}
	if requireAllReady {
		notReady := 0
		for _, p := range r.players {
			if !p.IsReady {
				notReady++
			}
		}
		if notReady > 0 {
			return fmt.Errorf("%w: %d 位", ErrPlayersNotReady, notReady)
		}
	}
	return nil
}

// BeginCountdown waiting → starting
func (r *Room) BeginCountdown(seconds int, now time.Time) {
	r.Status = StatusStarting
	r.Countdown = seconds
	r.UpdatedAt = now
}

// CancelCountdown starting → waiting
func (r *Room) CancelCountdown(now time.Time) {
	r.Status = StatusWaiting
	r.Countdown = 0
	r.UpdatedAt = now
}

// Launch starting → in_progress，指向第一題並清除上一局成績
func (r *Room) Launch(questions []Question, now time.Time) {
	r.Status = StatusInProgress
	r.Questions = questions
	r.CurrentQuestion = 0
	r.Countdown = 0
	r.QuestionStartedAt = now
	r.UpdatedAt = now
	for _, p := range r.players {
		p.resetGame()
	}
}

// Current 目前題目
func (r *Room) Current() (Question, bool) {
	if r.Status != StatusInProgress || r.CurrentQuestion < 0 || r.CurrentQuestion >= len(r.Questions) {
		return Question{}, false
	}
	return r.Questions[r.CurrentQuestion], true
}

// RecordAnswer 記錄作答並累加分數
//
// 正確與否以題庫為準。timeSpent 為 nil 時以題目送出後經過的時間計算。
func (r *Room) RecordAnswer(playerID string, questionIndex, option int, timeSpent *float64, limit float64, now time.Time) (Answer, error) {
	if r.Status != StatusInProgress {
		return Answer{}, fmt.Errorf("%w: %s", ErrNotInProgress, r.Status)
	}
	p, ok := r.players[playerID]
	if !ok {
		return Answer{}, fmt.Errorf("%w: %s", ErrNotInRoom, playerID)
	}
	if questionIndex != r.CurrentQuestion {
		return Answer{}, fmt.Errorf("%w: 收到 %d，目前 %d", ErrStaleQuestion, questionIndex, r.CurrentQuestion)
	}
	if p.HasAnswered(questionIndex) {
		return Answer{}, fmt.Errorf("%w: 第 %d 題", ErrAlreadyAnswered, questionIndex)
	}

	q := r.Questions[questionIndex]
	spent := now.Sub(r.QuestionStartedAt).Seconds()
	if timeSpent != nil {
		spent = *timeSpent
	}
	spent = clampTime(spent, limit)
	correct := q.IsCorrect(option)

	a := Answer{
		QuestionIndex:    questionIndex,
		ChosenOption:     option,
		IsCorrect:        correct,
		TimeSpentSeconds: spent,
		Points:           Points(correct, limit, spent),
		Timestamp:        now,
	}
	p.Answers = append(p.Answers, a)
	p.Score += a.Points
	r.UpdatedAt = now
	return a, nil
}

// AllAnswered 所有玩家都已作答目前題目
func (r *Room) AllAnswered() bool {
	if r.Status != StatusInProgress || len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.HasAnswered(r.CurrentQuestion) {
			return false
		}
	}
	return true
}

// AnsweredCount 已作答目前題目的人數
func (r *Room) AnsweredCount() int {
	n := 0
	for _, p := range r.players {
		if p.HasAnswered(r.CurrentQuestion) {
			n++
		}
	}
	return n
}

// FillUnanswered 作答超時：未作答者記為答錯並耗時滿額
func (r *Room) FillUnanswered(limit float64, now time.Time) []*PlayerSession {
	var filled []*PlayerSession
	for _, id := range r.order {
		p := r.players[id]
		if p.HasAnswered(r.CurrentQuestion) {
			continue
		}
		p.Answers = append(p.Answers, Answer{
			QuestionIndex:    r.CurrentQuestion,
			ChosenOption:     -1,
			TimeSpentSeconds: limit,
			TimedOut:         true,
			Timestamp:        now,
		})
		filled = append(filled, p)
	}
	if len(filled) > 0 {
		r.UpdatedAt = now
	}
	return filled
}

// Advance 前進到下一題，回傳是否已無題目
func (r *Room) Advance(now time.Time) (done bool) {
	r.CurrentQuestion++
	r.UpdatedAt = now
	if r.CurrentQuestion >= len(r.Questions) {
		return true
	}
	r.QuestionStartedAt = now
	return false
}

// Finish in_progress → finished，計算最終排名
func (r *Room) Finish(now time.Time) []Result {
	r.Status = StatusFinished
	r.FinishedAt = now
	r.UpdatedAt = now
	for _, p := range r.players {
		p.IsReady = false
	}
	return Rank(r.Players())
}

// Player 依 playerID 取得會話
func (r *Room) Player(playerID string) (*PlayerSession, bool) {
	p, ok := r.players[playerID]
	return p, ok
}

// PlayerByConnection 依連接 ID 取得會話
func (r *Room) PlayerByConnection(connID string) (*PlayerSession, bool) {
	for _, p := range r.players {
		if p.ConnectionID == connID {
			return p, true
		}
	}
	return nil, false
}

// Players 依加入順序回傳所有會話
func (r *Room) Players() []*PlayerSession {
	players := make([]*PlayerSession, 0, len(r.order))
	for _, id := range r.order {
		players = append(players, r.players[id])
	}
	return players
}

// PlayerViews 依加入順序回傳廣播用玩家列表
func (r *Room) PlayerViews() []PlayerView {
	views := make([]PlayerView, 0, len(r.order))
	for _, id := range r.order {
		views = append(views, r.players[id].View())
	}
	return views
}

// PlayerCount 玩家數量
func (r *Room) PlayerCount() int {
	return len(r.players)
}

// IsEmpty 房間是否已無玩家
func (r *Room) IsEmpty() bool {
	return len(r.players) == 0
}

// Connections 房間內所有連接 ID，依加入順序
func (r *Room) Connections() []string {
	conns := make([]string, 0, len(r.order))
	for _, id := range r.order {
		conns = append(conns, r.players[id].ConnectionID)
	}
	return conns
}

// RoomSummary 診斷用房間摘要
type RoomSummary struct {
	Code       string     `json:"roomCode"`
	Players    int        `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	State      RoomStatus `json:"state"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Summary 房間摘要
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		Code:       r.Code,
		Players:    len(r.players),
		MaxPlayers: r.MaxPlayers,
		State:      r.Status,
		CreatedAt:  r.CreatedAt,
	}
}

// RoomDetail 診斷用房間詳情
type RoomDetail struct {
	RoomSummary
	HostPlayerID    string       `json:"hostPlayerId"`
	CurrentQuestion int          `json:"currentQuestionIndex"`
	TotalQuestions  int          `json:"totalQuestions"`
	PlayerList      []PlayerView `json:"playerList"`
}

// Detail 房間詳情
func (r *Room) Detail() RoomDetail {
	return RoomDetail{
		RoomSummary:     r.Summary(),
		HostPlayerID:    r.HostPlayerID,
		CurrentQuestion: r.CurrentQuestion,
		TotalQuestions:  len(r.Questions),
		PlayerList:      r.PlayerViews(),
	}
}
