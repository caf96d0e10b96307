package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// QuestionKind enumerates the supported question formats.
type QuestionKind string

const (
	QuestionKindMCQ           QuestionKind = "mcq"
	QuestionKindImageMCQ      QuestionKind = "image_mcq"
	QuestionKindVideoMCQ      QuestionKind = "video_mcq"
	QuestionKindTrueFalse     QuestionKind = "true_false"
	QuestionKindDescriptive   QuestionKind = "descriptive"
	QuestionKindVideoResponse QuestionKind = "video_response"
)

// Valid reports whether k is a known kind.
func (k QuestionKind) Valid() bool {
	switch k {
	case QuestionKindMCQ, QuestionKindImageMCQ, QuestionKindVideoMCQ,
		QuestionKindTrueFalse, QuestionKindDescriptive, QuestionKindVideoResponse:
		return true
	}
	return false
}

// IsChoice reports whether answers are option letters.
func (k QuestionKind) IsChoice() bool {
	return k == QuestionKindMCQ || k == QuestionKindImageMCQ || k == QuestionKindVideoMCQ
}

// IsScored reports whether the kind counts toward the score.
func (k QuestionKind) IsScored() bool {
	return k.IsChoice() || k == QuestionKindTrueFalse
}

// OptionLetters are the designators assigned to options by position.
var OptionLetters = [4]string{"A", "B", "C", "D"}

const (
	TrueAnswer  = "True"
	FalseAnswer = "False"
)

// Option is one labelled answer choice.
type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// QuestionBody is the kind-specific part of a question. The concrete type is
// one of ChoiceBody, TrueFalseBody or OpenBody.
type QuestionBody interface {
	isQuestionBody()
}

// ChoiceBody holds the non-empty options of a choice question, each under its
// authoring letter, and the letter of the correct one.
type ChoiceBody struct {
	Options []Option `json:"options"`
	Correct string   `json:"correct"`
}

// TrueFalseBody holds the correct value of a true/false question.
type TrueFalseBody struct {
	Correct bool `json:"correct"`
}

// OpenBody marks descriptive and video-response questions, which carry no key.
type OpenBody struct{}

func (ChoiceBody) isQuestionBody()    {}
func (TrueFalseBody) isQuestionBody() {}
func (OpenBody) isQuestionBody()      {}

// Question is an exam question with its kind-specific body.
type Question struct {
	ID          uuid.UUID    `json:"id"`
	ExamID      uuid.UUID    `json:"exam_id"`
	Position    int          `json:"position"`
	Kind        QuestionKind `json:"kind"`
	Text        string       `json:"text"`
	Explanation *string      `json:"explanation,omitempty"`
	MediaPath   *string      `json:"media_path,omitempty"`
	Body        QuestionBody `json:"body"`
}

// CorrectDesignator returns the authoring-time key: an option letter for
// choice questions, "True"/"False" for true/false, empty otherwise.
func (q *Question) CorrectDesignator() string {
	switch b := q.Body.(type) {
	case ChoiceBody:
		return b.Correct
	case TrueFalseBody:
		if b.Correct {
			return TrueAnswer
		}
		return FalseAnswer
	}
	return ""
}

// Columns flattens the body into the four option columns and the key column.
func (q *Question) Columns() (options [4]*string, correct *string) {
	switch b := q.Body.(type) {
	case ChoiceBody:
		for _, opt := range b.Options {
			if idx := letterIndex(opt.Letter); idx >= 0 {
				text := opt.Text
				options[idx] = &text
			}
		}
		c := b.Correct
		correct = &c
	case TrueFalseBody:
		c := q.CorrectDesignator()
		correct = &c
	}
	return options, correct
}

// ErrInvalidQuestion is returned when a question's fields disagree with its kind.
var ErrInvalidQuestion = errors.New("invalid question")

// BuildBody assembles the kind-specific body from stored columns. Choice
// questions with an empty key default to "A".
func BuildBody(kind QuestionKind, options [4]*string, correct *string) (QuestionBody, error) {
	key := ""
	if correct != nil {
		key = strings.TrimSpace(*correct)
	}

	switch {
	case kind.IsChoice():
		body := ChoiceBody{Correct: strings.ToUpper(key)}
		for i, text := range options {
			if text == nil || strings.TrimSpace(*text) == "" {
				continue
			}
			body.Options = append(body.Options, Option{Letter: OptionLetters[i], Text: *text})
		}
		if body.Correct == "" {
			body.Correct = OptionLetters[0]
		}
		return body, nil
	case kind == QuestionKindTrueFalse:
		switch strings.ToLower(key) {
		case "true":
			return TrueFalseBody{Correct: true}, nil
		case "false":
			return TrueFalseBody{Correct: false}, nil
		}
		return nil, fmt.Errorf("%w: true/false key %q", ErrInvalidQuestion, key)
	case kind == QuestionKindDescriptive, kind == QuestionKindVideoResponse:
		return OpenBody{}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidQuestion, kind)
}

// Validate checks that a choice key references a present option.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidQuestion)
	}
	b, ok := q.Body.(ChoiceBody)
	if !ok {
		return nil
	}
	if len(b.Options) == 0 {
		return fmt.Errorf("%w: choice question without options", ErrInvalidQuestion)
	}
	for _, opt := range b.Options {
		if opt.Letter == b.Correct {
			return nil
		}
	}
	return fmt.Errorf("%w: key %q has no option", ErrInvalidQuestion, b.Correct)
}

func letterIndex(letter string) int {
	for i, l := range OptionLetters {
		if l == letter {
			return i
		}
	}
	return -1
}

// QuestionInput is one question in an exam creation request.
type QuestionInput struct {
	Kind          QuestionKind `json:"kind" binding:"required,question_kind"`
	Text          string       `json:"text" binding:"required,max=5000"`
	Options       []string     `json:"options" binding:"max=4"`
	CorrectAnswer string       `json:"correct_answer" binding:"max=5"`
	Explanation   string       `json:"explanation" binding:"max=5000"`
	MediaPath     string       `json:"media_path" binding:"max=500"`
}

// ToQuestion converts the input into a validated Question.
func (in QuestionInput) ToQuestion(position int) (Question, error) {
	var options [4]*string
	for i, text := range in.Options {
		if i >= len(options) {
			break
		}
		t := strings.TrimSpace(text)
		if t != "" {
			options[i] = &t
		}
	}

	var correct *string
	if key := strings.TrimSpace(in.CorrectAnswer); key != "" {
		correct = &key
	}
	if in.Kind.IsChoice() && correct == nil {
		return Question{}, fmt.Errorf("%w: choice question needs a correct answer", ErrInvalidQuestion)
	}

	body, err := BuildBody(in.Kind, options, correct)
	if err != nil {
		return Question{}, err
	}

	q := Question{
		ID:       uuid.New(),
		Position: position,
		Kind:     in.Kind,
		Text:     strings.TrimSpace(in.Text),
		Body:     body,
	}
	if e := strings.TrimSpace(in.Explanation); e != "" {
		q.Explanation = &e
	}
	if m := strings.TrimSpace(in.MediaPath); m != "" {
		q.MediaPath = &m
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}
