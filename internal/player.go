package internal

import "time"

// PlayerSession 玩家在房間內的會話
//
// ConnectionID 是傳輸層連接，每次重新連線都會改變；
// PlayerID 由客戶端產生，跨重連保持不變。
type PlayerSession struct {
	ConnectionID string
	PlayerID     string
	Name         string
	Score        int
	Answers      []Answer
	IsReady      bool
	IsHost       bool
	JoinedAt     time.Time
}

// Answer 單題作答紀錄
type Answer struct {
	QuestionIndex    int       `json:"questionIndex"`
	ChosenOption     int       `json:"chosenOption"`
	IsCorrect        bool      `json:"isCorrect"`
	TimeSpentSeconds float64   `json:"timeSpentSeconds"`
	Points           int       `json:"points"`
	TimedOut         bool      `json:"timedOut,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// PlayerView 廣播用的玩家資訊
type PlayerView struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"playerName"`
	Score    int    `json:"score"`
	IsReady  bool   `json:"isReady"`
	IsHost   bool   `json:"isHost"`
}

// View 轉為廣播用結構
func (p *PlayerSession) View() PlayerView {
	return PlayerView{
		PlayerID: p.PlayerID,
		Name:     p.Name,
		Score:    p.Score,
		IsReady:  p.IsReady,
		IsHost:   p.IsHost,
	}
}

// HasAnswered 是否已作答指定題目
func (p *PlayerSession) HasAnswered(questionIndex int) bool {
	for _, a := range p.Answers {
		if a.QuestionIndex == questionIndex {
			return true
		}
	}
	return false
}

// TotalTime 所有作答耗時總和（秒）
func (p *PlayerSession) TotalTime() float64 {
	var total float64
	for _, a := range p.Answers {
		total += a.TimeSpentSeconds
	}
	return total
}

// CorrectCount 答對題數
func (p *PlayerSession) CorrectCount() int {
	n := 0
	for _, a := range p.Answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}

// resetGame 清除上一局的分數與作答
func (p *PlayerSession) resetGame() {
	p.Score = 0
	p.Answers = nil
}
