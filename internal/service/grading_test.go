package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stretchr/testify/require"
)

func answers(pairs ...string) model.SubmitAttemptRequest {
	req := model.SubmitAttemptRequest{Answers: map[string]string{}, VideoSubmitted: map[string]bool{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		req.Answers[pairs[i]] = pairs[i+1]
	}
	return req
}

func TestGradeSubmission_UsesEffectiveKeys(t *testing.T) {
	mcq := choiceQuestion("2+2", "B", "3", "4", "5", "6")
	tf := trueFalseQuestion("sky is blue", true)
	correct := map[uuid.UUID]string{mcq.ID: "C", tf.ID: model.TrueAnswer}

	g := GradeSubmission([]model.Question{mcq, tf}, correct,
		answers(mcq.ID.String(), "c", tf.ID.String(), "True"), nil)

	require.Equal(t, 2, g.TotalQuestions)
	require.Equal(t, 2, g.ScoredCount)
	require.Equal(t, 2, g.CorrectCount)
	require.Equal(t, 0, g.IncorrectCount)
	require.InDelta(t, 100.0, g.Score, 0.0001)
	require.Equal(t, "C", *g.Responses[0].Answer)

	// The authoring letter is wrong once the options were shuffled.
	g = GradeSubmission([]model.Question{mcq, tf}, correct,
		answers(mcq.ID.String(), "B", tf.ID.String(), "True"), nil)
	require.Equal(t, 1, g.CorrectCount)
	require.InDelta(t, 50.0, g.Score, 0.0001)
}

func TestGradeSubmission_FallsBackToAuthoringKeys(t *testing.T) {
	mcq := choiceQuestion("2+2", "B", "3", "4", "5", "6")
	tf := trueFalseQuestion("ten is odd", false)

	g := GradeSubmission([]model.Question{mcq, tf}, nil,
		answers(mcq.ID.String(), "B", tf.ID.String(), "False"), nil)

	require.Equal(t, 2, g.CorrectCount)
}

func TestGradeSubmission_MalformedAnswersCountAsUnanswered(t *testing.T) {
	mcq := choiceQuestion("2+2", "B", "3", "4", "5", "6")
	tf := trueFalseQuestion("sky is blue", true)
	blank := choiceQuestion("unanswered", "A", "x", "y")

	g := GradeSubmission([]model.Question{mcq, tf, blank}, nil,
		answers(mcq.ID.String(), "E", tf.ID.String(), "true"), nil)

	require.Equal(t, 3, g.ScoredCount)
	require.Equal(t, 0, g.CorrectCount)
	require.Equal(t, 3, g.IncorrectCount)
	require.Zero(t, g.Score)
	for _, r := range g.Responses {
		require.Nil(t, r.Answer)
		require.NotNil(t, r.IsCorrect)
		require.False(t, *r.IsCorrect)
	}
}

func TestGradeSubmission_OpenQuestionsAreNotScored(t *testing.T) {
	desc := openQuestion(model.QuestionKindDescriptive, "explain")
	short := openQuestion(model.QuestionKindDescriptive, "explain briefly")
	video := openQuestion(model.QuestionKindVideoResponse, "record")
	marked := openQuestion(model.QuestionKindVideoResponse, "record again")
	duration := 42

	req := answers(desc.ID.String(), "  a long enough answer  ", short.ID.String(), "too short")
	req.VideoSubmitted[marked.ID.String()] = true
	videos := map[uuid.UUID]model.VideoUpload{video.ID: {Path: "/uploads/v.webm", DurationSeconds: &duration}}

	g := GradeSubmission([]model.Question{desc, short, video, marked}, nil, req, videos)

	require.Equal(t, 4, g.TotalQuestions)
	require.Zero(t, g.ScoredCount)
	require.Zero(t, g.Score)

	require.Equal(t, "a long enough answer", *g.Responses[0].Answer)
	require.Nil(t, g.Responses[0].IsCorrect)
	require.Nil(t, g.Responses[1].Answer)

	require.True(t, g.Responses[2].MediaSubmitted)
	require.Equal(t, "/uploads/v.webm", *g.Responses[2].MediaPath)
	require.Equal(t, 42, *g.Responses[2].DurationSeconds)

	require.True(t, g.Responses[3].MediaSubmitted)
	require.Nil(t, g.Responses[3].MediaPath)
}

func TestGradeSubmission_ThreeOfFourIsSeventyFive(t *testing.T) {
	qs := []model.Question{
		choiceQuestion("a", "A", "x", "y"),
		choiceQuestion("b", "B", "x", "y"),
		trueFalseQuestion("c", true),
		trueFalseQuestion("d", false),
	}
	g := GradeSubmission(qs, nil, answers(
		qs[0].ID.String(), "A",
		qs[1].ID.String(), "B",
		qs[2].ID.String(), "True",
		qs[3].ID.String(), "True",
	), nil)

	require.Equal(t, 3, g.CorrectCount)
	require.Equal(t, 1, g.IncorrectCount)
	require.InDelta(t, 75.0, g.Score, 0.0001)
}

func TestGradeSubmission_DescriptiveLengthBoundary(t *testing.T) {
	nine := openQuestion(model.QuestionKindDescriptive, "nine")
	ten := openQuestion(model.QuestionKindDescriptive, "ten")

	g := GradeSubmission([]model.Question{nine, ten}, nil, answers(
		nine.ID.String(), "123456789",
		ten.ID.String(), "1234567890",
	), nil)

	require.Nil(t, g.Responses[0].Answer)
	require.Equal(t, "1234567890", *g.Responses[1].Answer)
}

func TestGradeSubmission_NoScoredQuestions(t *testing.T) {
	g := GradeSubmission(nil, nil, answers(), nil)
	require.Zero(t, g.TotalQuestions)
	require.Zero(t, g.Score)
}
