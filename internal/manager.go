package internal

import (
	"fmt"
	"log/slog"
	"time"
)

// Manager 競賽房間協調器
//
// 所有方法都必須在事件迴圈內呼叫。每個方法在一次呼叫內完成讀取與寫入，
// 回傳要送出的 Effects，本身不接觸傳輸層。
type Manager struct {
	cfg      GameConfig
	registry *Registry
	codes    *CodeGenerator
	bank     QuestionBank
	sched    Scheduler
	now      func() time.Time
	logger   *slog.Logger

	advancing map[string]bool // 已排程切換下一題的房間
}

// ManagerOption 自訂 Manager
type ManagerOption func(*Manager)

// WithClock 指定時鐘（測試用）
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithCodeGenerator 指定房間碼產生器
func WithCodeGenerator(g *CodeGenerator) ManagerOption {
	return func(m *Manager) { m.codes = g }
}

// NewManager 創建房間協調器
func NewManager(cfg GameConfig, bank QuestionBank, sched Scheduler, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:       cfg,
		registry:  NewRegistry(),
		codes:     NewCodeGenerator(cfg.CodeLength, cfg.CodeMaxAttempts),
		bank:      bank,
		sched:     sched,
		now:       time.Now,
		logger:    logger,
		advancing: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry 房間表（唯讀用途）
func (m *Manager) Registry() *Registry {
	return m.registry
}

func (m *Manager) fail(connID string, err error) Effects {
	var fx Effects
	fx.Error(connID, err)
	if ErrorCode(err) == ErrorCode(ErrInternal) {
		m.logger.Error("處理事件失敗", "conn_id", connID, "error", err)
	} else {
		m.logger.Debug("事件被拒絕", "conn_id", connID, "error", err)
	}
	return fx
}

// CreateRoom 創建房間，創建者成為房主並訂閱房間頻道
func (m *Manager) CreateRoom(connID string, req CreateRoomRequest) Effects {
	if err := req.validate(); err != nil {
		return m.fail(connID, err)
	}
	if room, ok := m.registry.RoomOf(connID); ok {
		return m.fail(connID, fmt.Errorf("%w: %s", ErrAlreadyInRoom, room.Code))
	}

	maxPlayers := req.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = m.cfg.DefaultMaxPlayers
	}
	if maxPlayers < 2 || maxPlayers > m.cfg.MaxPlayersLimit {
		return m.fail(connID, fmt.Errorf("%w: 必須在 2-%d 之間", ErrInvalidCapacity, m.cfg.MaxPlayersLimit))
	}
	if m.registry.Len() >= m.cfg.MaxRooms {
		return m.fail(connID, fmt.Errorf("%w: %d", ErrTooManyRooms, m.cfg.MaxRooms))
	}

	code := req.RoomCode
	if code == "" {
		generated, err := m.codes.Generate(m.registry.Has)
		if err != nil {
			return m.fail(connID, err)
		}
		code = generated
	}

	now := m.now()
	room, err := m.registry.Create(code, maxPlayers, now)
	if err != nil {
		return m.fail(connID, err)
	}
	if _, _, err := room.Join(connID, req.PlayerID, req.PlayerName, now); err != nil {
		m.registry.Delete(code)
		return m.fail(connID, fmt.Errorf("%w: %v", ErrInternal, err))
	}
	m.registry.Bind(connID, code)

	m.logger.Info("房間已創建",
		"room_code", code,
		"max_players", maxPlayers,
		"host_id", req.PlayerID)

	var fx Effects
	fx.Subscribe(connID, code)
	fx.Send(connID, EventRoomCreated, RoomCreatedPayload{
		RoomCode:   code,
		MaxPlayers: maxPlayers,
		Players:    room.PlayerViews(),
	})
	return fx
}

// JoinRoom 加入房間
//
// 相同 playerID 再次加入視為重新連線，舊連接會被取消訂閱。
func (m *Manager) JoinRoom(connID string, req JoinRoomRequest) Effects {
	if err := req.validate(); err != nil {
		return m.fail(connID, err)
	}
	room, err := m.registry.Get(req.RoomCode)
	if err != nil {
		return m.fail(connID, err)
	}
	if current, ok := m.registry.RoomOf(connID); ok && current.Code != room.Code {
		return m.fail(connID, fmt.Errorf("%w: %s", ErrAlreadyInRoom, current.Code))
	}
	if p, ok := room.PlayerByConnection(connID); ok && p.PlayerID != req.PlayerID {
		return m.fail(connID, fmt.Errorf("%w: 連接已綁定 %s", ErrAlreadyInRoom, p.PlayerID))
	}

	session, previousConn, err := room.Join(connID, req.PlayerID, req.PlayerName, m.now())
	if err != nil {
		return m.fail(connID, err)
	}
	reconnected := previousConn != ""

	var fx Effects
	if reconnected && previousConn != connID {
		m.registry.Unbind(previousConn)
		fx.Unsubscribe(previousConn, room.Code)
	}
	m.registry.Bind(connID, room.Code)
	fx.Subscribe(connID, room.Code)
	fx.Broadcast(room.Code, EventPlayerJoined, PlayerJoinedPayload{
		PlayerID:    session.PlayerID,
		PlayerName:  session.Name,
		Reconnected: reconnected,
		Players:     room.PlayerViews(),
	})

	// 重連時補送目前題目
	if q, ok := room.Current(); ok && reconnected {
		fx.Send(connID, EventNextQuestion, NextQuestionPayload{
			QuestionIndex: room.CurrentQuestion,
			Question:      q.Public(),
			TimeLimit:     m.cfg.QuestionTimeLimit.Seconds(),
		})
	}

	m.logger.Info("玩家加入房間",
		"room_code", room.Code,
		"player_id", session.PlayerID,
		"player_name", session.Name,
		"reconnected", reconnected)
	return fx
}

// LeaveRoom 主動離開
func (m *Manager) LeaveRoom(connID string, req LeaveRoomRequest) Effects {
	if err := req.validate(); err != nil {
		return m.fail(connID, err)
	}
	room, p, err := m.authorize(connID, req.RoomCode, req.PlayerID)
	if err != nil {
		return m.fail(connID, err)
	}
	return m.removePlayer(room, p, "left")
}

// Disconnect 連接中斷時無條件清理
//
// 重複呼叫或連接不在任何房間時不做任何事。
func (m *Manager) Disconnect(connID string) Effects {
	room, ok := m.registry.RoomOf(connID)
	if !ok {
		return nil
	}
	p, ok := room.PlayerByConnection(connID)
	if !ok {
		m.registry.Unbind(connID)
		return nil
	}
	return m.removePlayer(room, p, "disconnected")
}

// removePlayer 移除玩家並處理房主轉移、空房刪除、倒數失效與作答進度
func (m *Manager) removePlayer(room *Room, p *PlayerSession, reason string) Effects {
	now := m.now()
	_, newHost, err := room.Leave(p.PlayerID, now)
	if err != nil {
		return nil
	}
	m.registry.Unbind(p.ConnectionID)

	var fx Effects
	fx.Unsubscribe(p.ConnectionID, room.Code)

	m.logger.Info("玩家離開房間",
		"room_code", room.Code,
		"player_id", p.PlayerID,
		"reason", reason)

	if room.IsEmpty() {
		m.deleteRoom(room.Code, "empty")
		return fx
	}

	fx.Broadcast(room.Code, EventPlayerLeft, PlayerLeftPayload{
		PlayerID: p.PlayerID,
		Players:  room.PlayerViews(),
	})
	if newHost != nil {
		m.logger.Info("房主已轉移", "room_code", room.Code, "new_host", newHost.PlayerID)
		fx.Broadcast(room.Code, EventHostChanged, HostChangedPayload{PlayerID: newHost.PlayerID})
	}

	switch room.Status {
	case StatusStarting:
		if room.PlayerCount() < m.cfg.MinPlayersToStart {
			m.sched.Cancel(TimerKey(room.Code, TimerCountdown))
			room.CancelCountdown(now)
			fx.Broadcast(room.Code, EventCountdownCancelled, CountdownCancelledPayload{Reason: "not_enough_players"})
			m.logger.Info("倒數已取消", "room_code", room.Code)
		}
	case StatusInProgress:
		if room.AllAnswered() {
			m.scheduleAdvance(room)
		}
	}
	return fx
}

// ToggleReady 切換準備狀態
func (m *Manager) ToggleReady(connID string, req ToggleReadyRequest) Effects {
	if err := req.validate(); err != nil {
		return m.fail(connID, err)
	}
	room, p, err := m.authorize(connID, req.RoomCode, req.PlayerID)
	if err != nil {
		return m.fail(connID, err)
	}
	if _, err := room.ToggleReady(p.PlayerID, m.now()); err != nil {
		return m.fail(connID, err)
	}

	var fx Effects
	fx.Broadcast(room.Code, EventPlayerReady, PlayerReadyPayload{
		PlayerID: p.PlayerID,
		IsReady:  p.IsReady,
		Players:  room.PlayerViews(),
	})
	return fx
}

// StartGame 房主開始倒數
func (m *Manager) StartGame(connID string, req StartGameRequest) Effects {
	if err := req.validate(); err != nil {
		return m.fail(connID, err)
	}
	room, p, err := m.authorize(connID, req.RoomCode, req.PlayerID)
	if err != nil {
		return m.fail(connID, err)
	}
	if err := room.CheckStart(p.PlayerID, m.cfg.MinPlayersToStart, m.cfg.RequireAllReady); err != nil {
		return m.fail(connID, err)
	}

	room.BeginCountdown(m.cfg.CountdownSeconds, m.now())
	m.logger.Info("開始倒數", "room_code", room.Code, "countdown", room.Countdown)

	var fx Effects
	fx.Broadcast(room.Code, EventGameStarting, CountdownPayload{Countdown: room.Countdown})
	if room.Countdown <= 0 {
		fx = append(fx, m.launch(room)...)
		return fx
	}
	m.sched.Schedule(TimerKey(room.Code, TimerCountdown), time.Second, m.countdownTick(room.Code))
	return fx
}

func (m *Manager) countdownTick(code string) Task {
	return func() Effects {
		room, err := m.registry.Get(code)
		if err != nil || room.Status != StatusStarting {
			return nil
		}
		room.Countdown--

		var fx Effects
		fx.Broadcast(code, EventCountdownUpdate, CountdownPayload{Countdown: room.Countdown})
		if room.Countdown > 0 {
			m.sched.Schedule(TimerKey(code, TimerCountdown), time.Second, m.countdownTick(code))
			return fx
		}
		return append(fx, m.launch(room)...)
	}
}

// launch starting → in_progress
func (m *Manager) launch(room *Room) Effects {
	var fx Effects
	now := m.now()

	questions := m.bank.Sample(m.cfg.QuestionsPerGame)
	if len(questions) == 0 {
		room.CancelCountdown(now)
		fx.Broadcast(room.Code, EventCountdownCancelled, CountdownCancelledPayload{Reason: "no_questions"})
		m.logger.Error("題庫無可用題目", "room_code", room.Code)
		return fx
	}

	room.Launch(questions, now)
	public := make([]PublicQuestion, len(questions))
	for i, q := range questions {
		public[i] = q.Public()
	}

	fx.Broadcast(room.Code, EventCompetitionStarted, CompetitionStartedPayload{
		RoomCode: room.Code,
		Players:  room.PlayerViews(),
	})
	fx.Broadcast(room.Code, EventGameStarted, GameStartedPayload{
		RoomCode:        room.Code,
		Questions:       public,
		CurrentQuestion: 0,
		Question:        public[0],
		TimeLimit:       m.cfg.QuestionTimeLimit.Seconds(),
	})
	m.scheduleQuestionTimeout(room)

	m.logger.Info("競賽開始",
		"room_code", room.Code,
		"players", room.PlayerCount(),
		"questions", len(questions))
	return fx
}

// Answer 記錄作答
//
// 每位玩家每題只記一次；所有玩家都作答後延遲切換下一題。
func (m *Manager) Answer(connID string, req AnswerRequest) Effects {
	if err := req.validate(); err != nil {
		return m.fail(connID, err)
	}
	room, p, err := m.authorize(connID, req.RoomCode, req.PlayerID)
	if err != nil {
		return m.fail(connID, err)
	}
	a, err := room.RecordAnswer(p.PlayerID, *req.QuestionIndex, *req.Answer, req.TimeSpent,
		m.cfg.QuestionTimeLimit.Seconds(), m.now())
	if err != nil {
		return m.fail(connID, err)
	}

	var fx Effects
	fx.Broadcast(room.Code, EventAnswerReceived, AnswerReceivedPayload{
		PlayerID:      p.PlayerID,
		QuestionIndex: a.QuestionIndex,
		IsCorrect:     a.IsCorrect,
		Points:        a.Points,
		Score:         p.Score,
		AnsweredCount: room.AnsweredCount(),
		PlayerCount:   room.PlayerCount(),
	})
	if room.AllAnswered() {
		m.scheduleAdvance(room)
	}
	return fx
}

func (m *Manager) scheduleQuestionTimeout(room *Room) {
	code, index := room.Code, room.CurrentQuestion
	d := m.cfg.QuestionTimeLimit + m.cfg.QuestionGrace
	m.sched.Schedule(TimerKey(code, TimerQuestion), d, func() Effects {
		return m.questionTimeout(code, index)
	})
}

// questionTimeout 作答超時：未作答者記為答錯
func (m *Manager) questionTimeout(code string, index int) Effects {
	room, err := m.registry.Get(code)
	if err != nil || room.Status != StatusInProgress || room.CurrentQuestion != index || m.advancing[code] {
		return nil
	}

	var fx Effects
	for _, p := range room.FillUnanswered(m.cfg.QuestionTimeLimit.Seconds(), m.now()) {
		fx.Broadcast(code, EventAnswerReceived, AnswerReceivedPayload{
			PlayerID:      p.PlayerID,
			QuestionIndex: index,
			TimedOut:      true,
			Score:         p.Score,
			AnsweredCount: room.AnsweredCount(),
			PlayerCount:   room.PlayerCount(),
		})
	}
	m.logger.Info("作答超時", "room_code", code, "question_index", index)
	m.scheduleAdvance(room)
	return fx
}

// scheduleAdvance 同一題只排程一次
func (m *Manager) scheduleAdvance(room *Room) {
	if m.advancing[room.Code] {
		return
	}
	m.advancing[room.Code] = true
	m.sched.Cancel(TimerKey(room.Code, TimerQuestion))

	code, index := room.Code, room.CurrentQuestion
	m.sched.Schedule(TimerKey(code, TimerAdvance), m.cfg.AdvanceDelay, func() Effects {
		return m.advance(code, index)
	})
}

// advance 切換下一題或結束競賽
func (m *Manager) advance(code string, index int) Effects {
	room, err := m.registry.Get(code)
	if err != nil || room.Status != StatusInProgress || room.CurrentQuestion != index {
		return nil
	}
	delete(m.advancing, code)

	now := m.now()
	if done := room.Advance(now); done {
		return m.finish(room, now)
	}

	q, _ := room.Current()
	var fx Effects
	fx.Broadcast(code, EventNextQuestion, NextQuestionPayload{
		QuestionIndex: room.CurrentQuestion,
		Question:      q.Public(),
		TimeLimit:     m.cfg.QuestionTimeLimit.Seconds(),
	})
	m.scheduleQuestionTimeout(room)
	return fx
}

// finish in_progress → finished，排程保留期滿後關閉房間
func (m *Manager) finish(room *Room, now time.Time) Effects {
	results := room.Finish(now)
	code := room.Code

	var fx Effects
	fx.Broadcast(code, EventGameOver, GameOverPayload{RoomCode: code, Results: results})
	m.sched.Schedule(TimerKey(code, TimerRetention), m.cfg.Retention, func() Effects {
		return m.closeRoom(code, "retention_expired")
	})

	m.logger.Info("競賽結束", "room_code", code, "players", len(results))
	return fx
}

// closeRoom 通知並釋放房間內所有會話
func (m *Manager) closeRoom(code, reason string) Effects {
	room, err := m.registry.Get(code)
	if err != nil {
		return nil
	}

	var fx Effects
	fx.Broadcast(code, EventRoomClosed, RoomClosedPayload{RoomCode: code, Reason: reason})
	for _, connID := range room.Connections() {
		fx.Unsubscribe(connID, code)
	}
	m.deleteRoom(code, reason)
	return fx
}

// deleteRoom 取消所有計時器後自房間表移除
func (m *Manager) deleteRoom(code, reason string) {
	for _, kind := range timerKinds {
		m.sched.Cancel(TimerKey(code, kind))
	}
	delete(m.advancing, code)
	m.registry.Delete(code)
	m.logger.Info("房間已移除", "room_code", code, "reason", reason)
}

// Shutdown 關閉所有房間
func (m *Manager) Shutdown() Effects {
	var fx Effects
	for _, room := range m.registry.All() {
		fx = append(fx, m.closeRoom(room.Code, "server_shutdown")...)
	}
	m.logger.Info("房間協調器已停止")
	return fx
}

// authorize 確認連接確實綁定在該房間的該玩家
func (m *Manager) authorize(connID, code, playerID string) (*Room, *PlayerSession, error) {
	room, err := m.registry.Get(code)
	if err != nil {
		return nil, nil, err
	}
	p, ok := room.PlayerByConnection(connID)
	if !ok || p.PlayerID != playerID {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotInRoom, playerID)
	}
	return room, p, nil
}

// Summaries 所有房間摘要
func (m *Manager) Summaries() []RoomSummary {
	rooms := m.registry.All()
	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Summary())
	}
	return out
}

// Detail 單一房間詳情
func (m *Manager) Detail(code string) (RoomDetail, error) {
	room, err := m.registry.Get(code)
	if err != nil {
		return RoomDetail{}, err
	}
	return room.Detail(), nil
}

// RoomCount 房間數量
func (m *Manager) RoomCount() int {
	return m.registry.Len()
}
