package internal_test

import (
	"math"
	"testing"

	"github.com/koopa0/system-design/competition-room/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPoints 測試單題得分
func TestPoints(t *testing.T) {
	tests := []struct {
		name    string
		correct bool
		limit   float64
		spent   float64
		want    int
	}{
		{"answered at 10s of 30s", true, 30, 10, 3},
		{"instant answer", true, 30, 0, 4},
		{"just under limit", true, 30, 29.5, 2},
		{"at limit", true, 30, 30, 1},
		{"over limit is clamped", true, 30, 45, 1},
		{"negative time is clamped", true, 30, -5, 4},
		{"NaN time is clamped", true, 30, math.NaN(), 4},
		{"wrong answer", false, 30, 1, 0},
		{"wrong answer at limit", false, 30, 30, 0},
		{"fractional remaining rounds up", true, 30, 19.9, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, internal.Points(tt.correct, tt.limit, tt.spent))
		})
	}
}

func session(id string, score int, times ...float64) *internal.PlayerSession {
	p := &internal.PlayerSession{PlayerID: id, Name: "玩家" + id, Score: score}
	for i, spent := range times {
		p.Answers = append(p.Answers, internal.Answer{
			QuestionIndex:    i,
			TimeSpentSeconds: spent,
			IsCorrect:        score > 0,
		})
	}
	return p
}

// TestRank 測試排名
func TestRank(t *testing.T) {
	tests := []struct {
		name       string
		players    []*internal.PlayerSession
		wantOrder  []string
		wantRanks  []int
		wantMedals []internal.Medal
	}{
		{
			name: "score descending",
			players: []*internal.PlayerSession{
				session("A", 5, 10),
				session("B", 9, 10),
				session("C", 7, 10),
			},
			wantOrder:  []string{"B", "C", "A"},
			wantRanks:  []int{1, 2, 3},
			wantMedals: []internal.Medal{internal.MedalGold, internal.MedalSilver, internal.MedalBronze},
		},
		{
			name: "tie broken by total time",
			players: []*internal.PlayerSession{
				session("A", 8, 10, 10),
				session("B", 8, 5, 6),
			},
			wantOrder:  []string{"B", "A"},
			wantRanks:  []int{1, 2},
			wantMedals: []internal.Medal{internal.MedalGold, internal.MedalSilver},
		},
		{
			name: "full tie keeps join order and shares rank",
			players: []*internal.PlayerSession{
				session("A", 6, 10),
				session("B", 6, 10),
				session("C", 2, 10),
			},
			wantOrder:  []string{"A", "B", "C"},
			wantRanks:  []int{1, 1, 3},
			wantMedals: []internal.Medal{internal.MedalGold, internal.MedalGold, internal.MedalBronze},
		},
		{
			name: "no medal after third",
			players: []*internal.PlayerSession{
				session("A", 4, 1),
				session("B", 3, 1),
				session("C", 2, 1),
				session("D", 1, 1),
			},
			wantOrder:  []string{"A", "B", "C", "D"},
			wantRanks:  []int{1, 2, 3, 4},
			wantMedals: []internal.Medal{internal.MedalGold, internal.MedalSilver, internal.MedalBronze, ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := internal.Rank(tt.players)
			require.Len(t, results, len(tt.wantOrder))

			for i, r := range results {
				assert.Equal(t, tt.wantOrder[i], r.PlayerID, "position %d", i)
				assert.Equal(t, tt.wantRanks[i], r.Rank, "rank of %s", r.PlayerID)
				assert.Equal(t, tt.wantMedals[i], r.Medal, "medal of %s", r.PlayerID)
			}
		})
	}
}

// TestRank_CopiesAnswers 測試結果不共用玩家的作答切片
func TestRank_CopiesAnswers(t *testing.T) {
	p := session("A", 3, 10)
	results := internal.Rank([]*internal.PlayerSession{p})

	p.Answers[0].TimeSpentSeconds = 99
	assert.Equal(t, 10.0, results[0].Answers[0].TimeSpentSeconds)
	assert.Equal(t, 10.0, results[0].TotalTime)
	assert.Equal(t, 1, results[0].CorrectCount)
}
