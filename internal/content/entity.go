// AngelaMos | 2026
// entity.go

package content

type Week struct {
	Number int    `db:"number" json:"number"`
	Title  string `db:"title"  json:"title"`
}

type Topic struct {
	ID         string `db:"id"          json:"id"`
	WeekNumber int    `db:"week_number" json:"week_number"`
	Title      string `db:"title"       json:"title"`
	Position   int    `db:"position"    json:"position"`
}

// Question carries its owning week so gating needs one lookup.
type Question struct {
	ID         string `db:"id"          json:"id"`
	TopicID    string `db:"topic_id"    json:"topic_id"`
	WeekNumber int    `db:"week_number" json:"week_number"`
	Title      string `db:"title"       json:"title"`
	Solution   string `db:"solution"    json:"solution"`
	Position   int    `db:"position"    json:"position"`
	HintCount  int    `db:"hint_count"  json:"hint_count"`
}

// QuestionSummary is the listing shape of a question. It never carries the
// solution.
type QuestionSummary struct {
	ID        string `db:"id"         json:"id"`
	TopicID   string `db:"topic_id"   json:"topic_id"`
	Title     string `db:"title"      json:"title"`
	Position  int    `db:"position"   json:"position"`
	HintCount int    `db:"hint_count" json:"hint_count"`
}

type Hint struct {
	QuestionID string `db:"question_id" json:"question_id"`
	Index      int    `db:"hint_index"  json:"index"`
	Body       string `db:"body"        json:"body"`
}
