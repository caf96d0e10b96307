package service

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stemsi/exproctor-backend/internal/model"
)

// MinDescriptiveLength is the shortest trimmed descriptive answer that is kept.
const MinDescriptiveLength = 10

// Grade is the outcome of grading one submission.
type Grade struct {
	TotalQuestions int
	ScoredCount    int
	CorrectCount   int
	IncorrectCount int
	Score          float64
	Responses      []model.ResponseRecord
}

// GradeSubmission grades every question of the exam, answered or not.
// correct holds effective keys from the attempt session and may be nil, in
// which case authoring keys are used. Malformed answers count as unanswered.
func GradeSubmission(
	questions []model.Question,
	correct map[uuid.UUID]string,
	req model.SubmitAttemptRequest,
	videos map[uuid.UUID]model.VideoUpload,
) Grade {
	g := Grade{
		TotalQuestions: len(questions),
		Responses:      make([]model.ResponseRecord, 0, len(questions)),
	}

	for _, q := range questions {
		raw := req.Answers[q.ID.String()]
		rec := model.ResponseRecord{QuestionID: q.ID, Kind: q.Kind}

		key, ok := correct[q.ID]
		if !ok || key == "" {
			key = q.CorrectDesignator()
		}

		switch {
		case q.Kind == model.QuestionKindVideoResponse:
			upload, uploaded := videos[q.ID]
			rec.MediaSubmitted = req.VideoSubmitted[q.ID.String()] || uploaded
			if uploaded {
				path := upload.Path
				rec.MediaPath = &path
				rec.DurationSeconds = upload.DurationSeconds
			}

		case q.Kind == model.QuestionKindDescriptive:
			rec.Answer = normalizeDescriptive(raw)

		case q.Kind == model.QuestionKindTrueFalse:
			g.ScoredCount++
			answer, valid := normalizeTrueFalse(raw)
			isCorrect := valid && answer == key
			if valid {
				rec.Answer = &answer
			}
			rec.IsCorrect = &isCorrect

		case q.Kind.IsChoice():
			g.ScoredCount++
			answer, valid := normalizeChoice(raw)
			isCorrect := valid && strings.EqualFold(answer, key)
			if valid {
				rec.Answer = &answer
			}
			rec.IsCorrect = &isCorrect
		}

		if rec.IsCorrect != nil && *rec.IsCorrect {
			g.CorrectCount++
		}
		g.Responses = append(g.Responses, rec)
	}

	g.IncorrectCount = g.ScoredCount - g.CorrectCount
	if g.ScoredCount > 0 {
		g.Score = float64(g.CorrectCount) / float64(g.ScoredCount) * 100
	}
	return g
}

func normalizeChoice(raw string) (string, bool) {
	answer := strings.ToUpper(strings.TrimSpace(raw))
	for _, letter := range model.OptionLetters {
		if answer == letter {
			return answer, true
		}
	}
	return "", false
}

func normalizeTrueFalse(raw string) (string, bool) {
	if raw == model.TrueAnswer || raw == model.FalseAnswer {
		return raw, true
	}
	return "", false
}

func normalizeDescriptive(raw string) *string {
	text := strings.TrimSpace(raw)
	if utf8.RuneCountInString(text) < MinDescriptiveLength {
		return nil
	}
	return &text
}
