package search

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pders01/fwtl/internal/storage"
)

// notesPerAccount bounds how many cached notes a scan looks at per account.
const notesPerAccount = 500

// Result is a note that matched a query.
type Result struct {
	Note    *storage.Note
	Score   float64
	Matches []Match
}

// Match represents where text was found
type Match struct {
	Field  string // "text", "cw", "author"
	Text   string // matched text snippet
	Weight float64
}

// Engine searches the note cache by scanning it, without an index.
type Engine struct {
	store NoteLister
	now   func() time.Time
}

func NewEngine(store NoteLister) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Search scores the cached notes of every account against query.
func (e *Engine) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return []*Result{}, nil
	}

	accounts, err := e.store.GetAllAccounts()
	if err != nil {
		return nil, err
	}

	results := []*Result{}
	for _, account := range accounts {
		notes, err := e.store.GetNotes(account.ID, notesPerAccount)
		if err != nil {
			continue
		}
		for _, note := range notes {
			if result := e.searchNote(note, terms); result != nil {
				results = append(results, result)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SearchInNote searches within a single note.
func (e *Engine) SearchInNote(note *storage.Note, query string) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 || note == nil {
		return []*Result{}, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return []*Result{}, nil
	}

	if result := e.searchNote(note, terms); result != nil {
		return []*Result{result}, nil
	}
	return []*Result{}, nil
}

func (e *Engine) searchNote(note *storage.Note, terms []string) *Result {
	var matches []Match
	var totalScore float64

	if textScore := scoreField(note.Text, terms, 2.0); textScore > 0 {
		matches = append(matches, Match{
			Field:  "text",
			Text:   findBestSnippet(note.Text, terms, 200),
			Weight: textScore,
		})
		totalScore += textScore
	}

	if cwScore := scoreField(note.CW, terms, 1.5); cwScore > 0 {
		matches = append(matches, Match{
			Field:  "cw",
			Text:   truncate(note.CW, 100),
			Weight: cwScore,
		})
		totalScore += cwScore
	}

	author := note.DisplayName + " " + note.Username
	if authorScore := scoreField(author, terms, 1.0); authorScore > 0 {
		matches = append(matches, Match{
			Field:  "author",
			Text:   strings.TrimSpace(author),
			Weight: authorScore,
		})
		totalScore += authorScore
	}

	if totalScore == 0 {
		return nil
	}
	if !note.CreatedAt.IsZero() {
		totalScore *= 1.0 + recencyBoost(e.now().Sub(note.CreatedAt))
	}

	return &Result{
		Note:    note,
		Score:   totalScore,
		Matches: matches,
	}
}

// scoreField calculates relevance score for a field
func scoreField(text string, terms []string, weight float64) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}

	var score float64
	matchedTerms := 0

	for _, term := range terms {
		if strings.Contains(lower, term) {
			score += 2.0
			matchedTerms++
		}

		for _, word := range words {
			switch {
			case word == term:
				score += 1.5
				matchedTerms++
			case strings.HasPrefix(word, term) || strings.HasSuffix(word, term):
				score += 1.0
				matchedTerms++
			case strings.Contains(word, term):
				score += 0.5
				matchedTerms++
			}
		}
	}

	if len(terms) > 1 && matchedTerms > 1 {
		score *= 1.0 + float64(matchedTerms)/float64(len(terms))
	}

	tf := float64(matchedTerms) / float64(len(words))
	score *= 1.0 + math.Log(1.0+tf)

	return score * weight
}

// findBestSnippet finds the most relevant text snippet containing search terms
func findBestSnippet(text string, terms []string, maxLength int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	windowSize := maxLength / 8 // roughly words per snippet
	if windowSize >= len(words) {
		return truncate(text, maxLength)
	}

	bestScore := 0
	bestStart := 0
	for i := 0; i <= len(words)-windowSize; i++ {
		window := strings.ToLower(strings.Join(words[i:i+windowSize], " "))
		score := 0
		for _, term := range terms {
			if strings.Contains(window, term) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestStart = i
		}
	}

	return truncate(strings.Join(words[bestStart:bestStart+windowSize], " "), maxLength)
}

// tokenize lowercases text and splits it into terms of two or more runes.
func tokenize(text string) []string {
	var terms []string
	var current strings.Builder
	runes := 0

	flush := func() {
		if runes > 1 {
			terms = append(terms, current.String())
		}
		current.Reset()
		runes = 0
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
			runes++
		} else {
			flush()
		}
	}
	flush()

	return terms
}

// truncate limits text length with ellipsis without splitting runes.
func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-1]) + "…"
}

// recencyBoost is up to 10% for notes from the last week, fading linearly.
func recencyBoost(age time.Duration) float64 {
	const window = 7 * 24 * time.Hour
	if age < 0 {
		age = 0
	}
	if age >= window {
		return 0
	}
	return 0.1 * (1 - float64(age)/float64(window))
}
