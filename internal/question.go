package internal

import (
	_ "embed"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestions []byte

// Question 題庫中的題目（唯讀）
type Question struct {
	ID           string   `yaml:"id" json:"id"`
	Text         string   `yaml:"text" json:"text"`
	Options      []string `yaml:"options" json:"options"`
	CorrectIndex int      `yaml:"correct_index" json:"correctIndex"`
	Category     string   `yaml:"category" json:"category"`
	Difficulty   string   `yaml:"difficulty" json:"difficulty"`
}

// PublicQuestion 發送給客戶端的題目，不含正確答案
type PublicQuestion struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
}

// Public 去除正確答案
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Text:       q.Text,
		Options:    q.Options,
		Category:   q.Category,
		Difficulty: q.Difficulty,
	}
}

// IsCorrect 判斷選項是否正確
func (q Question) IsCorrect(option int) bool {
	return option == q.CorrectIndex
}

// QuestionBank 題庫
//
// 協調器只會抽樣，不會修改題目。
type QuestionBank interface {
	// Sample 隨機抽取最多 n 題
	Sample(n int) []Question
	// Size 題庫總題數
	Size() int
}

// StaticBank 記憶體內的靜態題庫
type StaticBank struct {
	questions []Question
}

// NewStaticBank 創建靜態題庫並驗證內容
func NewStaticBank(questions []Question) (*StaticBank, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("題庫為空")
	}
	seen := make(map[string]bool, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("第 %d 題缺少 id", i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("題目 id 重複: %s", q.ID)
		}
		seen[q.ID] = true
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("題目 %s 選項不足", q.ID)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return nil, fmt.Errorf("題目 %s 正確答案索引超出範圍: %d", q.ID, q.CorrectIndex)
		}
	}

	copied := make([]Question, len(questions))
	copy(copied, questions)
	return &StaticBank{questions: copied}, nil
}

// LoadQuestionBank 從 YAML 檔載入題庫，path 為空時使用內建題庫
func LoadQuestionBank(path string) (*StaticBank, error) {
	data := defaultQuestions
	if path != "" {
		// #nosec G304 - path 來自設定檔
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read question bank: %w", err)
		}
		data = b
	}

	var doc struct {
		Questions []Question `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	return NewStaticBank(doc.Questions)
}

// Sample 洗牌後取前 n 題
func (b *StaticBank) Sample(n int) []Question {
	if n <= 0 {
		return nil
	}
	picked := make([]Question, len(b.questions))
	copy(picked, b.questions)
	rand.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	if n < len(picked) {
		picked = picked[:n]
	}
	return picked
}

// Size 題庫總題數
func (b *StaticBank) Size() int {
	return len(b.questions)
}
