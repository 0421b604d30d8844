package internal

import (
	"math"
	"slices"
)

// Medal 前三名獎牌
type Medal string

const (
	MedalGold   Medal = "gold"
	MedalSilver Medal = "silver"
	MedalBronze Medal = "bronze"
)

var medals = []Medal{MedalGold, MedalSilver, MedalBronze}

// Points 計算單題得分
//
// 答對：ceil((limit - spent) / 10) + 1，最少 1 分；答錯 0 分。
// spent 會被限制在 [0, limit] 之間。
func Points(correct bool, limit, spent float64) int {
	if !correct {
		return 0
	}
	spent = clampTime(spent, limit)
	points := int(math.Ceil((limit-spent)/10)) + 1
	if points < 1 {
		return 1
	}
	return points
}

func clampTime(spent, limit float64) float64 {
	if spent < 0 || math.IsNaN(spent) {
		return 0
	}
	if spent > limit {
		return limit
	}
	return spent
}

// Result 最終排名項目
type Result struct {
	Rank         int      `json:"rank"`
	PlayerID     string   `json:"playerId"`
	Name         string   `json:"playerName"`
	Score        int      `json:"score"`
	CorrectCount int      `json:"correctCount"`
	TotalTime    float64  `json:"totalTime"`
	Medal        Medal    `json:"medal,omitempty"`
	Answers      []Answer `json:"answers"`
}

// Rank 依分數由高到低排序，同分以總耗時較短者優先
//
// players 需依加入順序傳入；分數與耗時皆相同時保持加入順序並共用名次。
func Rank(players []*PlayerSession) []Result {
	results := make([]Result, 0, len(players))
	for _, p := range players {
		answers := make([]Answer, len(p.Answers))
		copy(answers, p.Answers)
		results = append(results, Result{
			PlayerID:     p.PlayerID,
			Name:         p.Name,
			Score:        p.Score,
			CorrectCount: p.CorrectCount(),
			TotalTime:    p.TotalTime(),
			Answers:      answers,
		})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		switch {
		case a.TotalTime < b.TotalTime:
			return -1
		case a.TotalTime > b.TotalTime:
			return 1
		}
		return 0
	})

	for i := range results {
		results[i].Rank = i + 1
		if i > 0 && results[i].Score == results[i-1].Score && results[i].TotalTime == results[i-1].TotalTime {
			results[i].Rank = results[i-1].Rank
		}
		if r := results[i].Rank; r <= len(medals) {
			results[i].Medal = medals[r-1]
		}
	}
	return results
}
