// Package bank loads the categorized question corpus and samples exam
// question sets from it.
package bank

import (
	"fmt"
	"math/rand/v2"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/quizlive/quizlive/internal/quiz"
)

// Entry is one authored question in the corpus file.
type Entry struct {
	Category string   `yaml:"category"`
	Text     string   `yaml:"text"`
	Options  []string `yaml:"options,omitempty"`
	Answer   string   `yaml:"answer"`
}

type corpusFile struct {
	Questions []Entry `yaml:"questions"`
}

// Bank is the in-memory question corpus, read-only after load.
type Bank struct {
	entries []Entry
}

// Load reads the corpus from a YAML file.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question corpus: %w", err)
	}

	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse question corpus: %w", err)
	}
	return New(file.Questions), nil
}

// New builds a bank from already-loaded entries.
func New(entries []Entry) *Bank {
	return &Bank{entries: entries}
}

// Categories returns the distinct categories present in the corpus, in
// first-seen order.
func (b *Bank) Categories() []string {
	var cats []string
	for _, e := range b.entries {
		if !slices.Contains(cats, e.Category) {
			cats = append(cats, e.Category)
		}
	}
	return cats
}

// Len returns the corpus size.
func (b *Bank) Len() int {
	return len(b.entries)
}

// Pick draws a uniformly random subset of up to n questions from the selected
// categories and assigns the sequential 0-based ids the exam will key answers
// by. The draw uses a Fisher-Yates shuffle so no ordering is predictable by
// participants.
func (b *Bank) Pick(categories []string, n int) ([]quiz.Question, error) {
	if len(categories) == 0 {
		return nil, quiz.ErrNoCategories
	}

	var pool []Entry
	for _, e := range b.entries {
		if slices.Contains(categories, e.Category) {
			pool = append(pool, e)
		}
	}
	if len(pool) == 0 {
		return nil, quiz.ErrNoQuestions
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	if n <= 0 || n > len(pool) {
		n = len(pool)
	}

	questions := make([]quiz.Question, n)
	for i, e := range pool[:n] {
		questions[i] = quiz.Question{
			ID:            i,
			Category:      e.Category,
			Text:          e.Text,
			Options:       e.Options,
			CorrectAnswer: e.Answer,
		}
	}
	return questions, nil
}
