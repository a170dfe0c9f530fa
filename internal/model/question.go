package model

// QuestionType is the kind of input a product question expects.
type QuestionType string

const (
	QuestionSelect   QuestionType = "select"
	QuestionCheckbox QuestionType = "checkbox"
	QuestionText     QuestionType = "text"
	QuestionNote     QuestionType = "note"
	QuestionImage    QuestionType = "image"
	QuestionFile     QuestionType = "file"
)

// HasAnswers reports whether the question is answered by picking predefined answers.
func (t QuestionType) HasAnswers() bool {
	return t == QuestionSelect || t == QuestionCheckbox
}

// IsValid checks if the question type is known.
func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionSelect, QuestionCheckbox, QuestionText, QuestionNote, QuestionImage, QuestionFile:
		return true
	default:
		return false
	}
}

// Answer is a predefined choice of a select or checkbox question.
type Answer struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	ExtraPrice float64 `json:"extraPrice"`
	ImageURL   string  `json:"imageUrl,omitempty"`
}

// Question is a product configurator question.
// ExtraPrice applies to free-form questions when they are answered.
type Question struct {
	ID         string       `json:"id"`
	Type       QuestionType `json:"type"`
	Text       string       `json:"text"`
	Required   bool         `json:"required"`
	ExtraPrice float64      `json:"extraPrice"`
	Answers    []Answer     `json:"answers,omitempty"`
}

// FindAnswer returns the answer with the given id.
func (q Question) FindAnswer(id string) (Answer, bool) {
	for _, a := range q.Answers {
		if a.ID == id {
			return a, true
		}
	}
	return Answer{}, false
}

// FindQuestion returns the question with the given id.
func FindQuestion(questions []Question, id string) (Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
