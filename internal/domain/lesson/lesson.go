package lesson

import (
	"context"
	"strings"
)

// Phrase is one narrated line of a lesson.
type Phrase struct {
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
	Gesture     string `json:"gesture,omitempty"`
}

type Lesson struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Language    string   `json:"language"`
	AgeGroup    string   `json:"age_group"`
	Description string   `json:"description"`
	Phrases     []Phrase `json:"phrases"`
}

// Module groups lessons from one source.
type Module struct {
	Name    string   `json:"name"`
	URL     string   `json:"url"`
	Lessons []Lesson `json:"lessons"`
}

// Catalog lists the lesson modules available to the learner.
type Catalog interface {
	Modules(ctx context.Context) ([]Module, error)
}

// Find looks a lesson up by ID (case-insensitive) across modules.
func Find(modules []Module, id string) (Lesson, bool) {
	for _, m := range modules {
		for _, l := range m.Lessons {
			if strings.EqualFold(l.ID, id) {
				return l, true
			}
		}
	}
	return Lesson{}, false
}
