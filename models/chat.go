package models

import "time"

// ChatReply is what the style assistant returns for one turn.
type ChatReply struct {
	Response      string   `json:"response"`
	NextQuestions []string `json:"next_questions"`
	Suggestions   []string `json:"suggestions"`
}

// ChatTurn is one exchange read back from interaction history.
type ChatTurn struct {
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}
