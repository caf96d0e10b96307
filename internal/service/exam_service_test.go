package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stretchr/testify/require"
)

func validExamRequest() model.CreateExamRequest {
	return model.CreateExamRequest{
		Title:            "  Midterm  ",
		Subject:          "Math",
		TimeLimitMinutes: 45,
		Questions: []model.QuestionInput{
			{Kind: model.QuestionKindMCQ, Text: "2+2", Options: []string{"3", "4", "", ""}, CorrectAnswer: "b"},
			{Kind: model.QuestionKindTrueFalse, Text: "sky is blue", CorrectAnswer: "true"},
			{Kind: model.QuestionKindDescriptive, Text: "explain"},
		},
	}
}

func TestBuildExam_Defaults(t *testing.T) {
	exam, questions, err := BuildExam(3, validExamRequest())
	require.NoError(t, err)

	require.Equal(t, "Midterm", exam.Title)
	require.Equal(t, []string{model.AllCourses}, exam.Courses)
	require.True(t, exam.ShowScores)
	require.Equal(t, 3, exam.AuthorID)
	require.Equal(t, 3, exam.QuestionCount)

	require.Len(t, questions, 3)
	for i, q := range questions {
		require.Equal(t, exam.ID, q.ExamID)
		require.Equal(t, i+1, q.Position)
	}
	require.Equal(t, "B", questions[0].CorrectDesignator())
	require.Len(t, questions[0].Body.(model.ChoiceBody).Options, 2)
	require.Equal(t, model.TrueAnswer, questions[1].CorrectDesignator())
	require.IsType(t, model.OpenBody{}, questions[2].Body)
}

func TestBuildExam_RespectsCoursesAndVisibility(t *testing.T) {
	req := validExamRequest()
	hidden := false
	req.ShowScores = &hidden
	req.Courses = []string{" Physics ", "", "Chemistry"}

	exam, _, err := BuildExam(1, req)
	require.NoError(t, err)
	require.False(t, exam.ShowScores)
	require.Equal(t, []string{"Physics", "Chemistry"}, exam.Courses)
}

func TestBuildExam_Rejections(t *testing.T) {
	empty := validExamRequest()
	empty.Questions = nil
	_, _, err := BuildExam(1, empty)
	require.ErrorIs(t, err, ErrEmptyExam)

	noLimit := validExamRequest()
	noLimit.TimeLimitMinutes = 0
	_, _, err = BuildExam(1, noLimit)
	require.ErrorIs(t, err, ErrInvalidTimeLimit)

	badKey := validExamRequest()
	badKey.Questions[0].CorrectAnswer = "D"
	_, _, err = BuildExam(1, badKey)
	require.ErrorIs(t, err, model.ErrInvalidQuestion)

	var qe *QuestionError
	require.True(t, errors.As(err, &qe))
	require.Equal(t, 0, qe.Index)

	noKey := validExamRequest()
	noKey.Questions[0].CorrectAnswer = ""
	_, _, err = BuildExam(1, noKey)
	require.ErrorIs(t, err, model.ErrInvalidQuestion)
}

func TestBuildLobby(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	paper := "/uploads/paper.pdf"

	open := model.Exam{ID: uuid.New(), Title: "open", StartAt: &past, EndAt: &future, Courses: []string{model.AllCourses}, PaperPath: &paper}
	upcoming := model.Exam{ID: uuid.New(), Title: "upcoming", StartAt: &future, Courses: []string{"Physics"}}
	expired := model.Exam{ID: uuid.New(), Title: "expired", EndAt: &past}
	done := model.Exam{ID: uuid.New(), Title: "done", EndAt: &past}
	other := model.Exam{ID: uuid.New(), Title: "other", Courses: []string{"Biology"}}

	lobby := BuildLobby(
		[]model.Exam{open, upcoming, expired, done, other},
		map[uuid.UUID]bool{done.ID: true},
		"physics",
		now,
	)

	statuses := make(map[string]model.LobbyStatus, len(lobby))
	for _, e := range lobby {
		statuses[e.Title] = e.Status
	}
	require.Equal(t, map[string]model.LobbyStatus{
		"open":     model.LobbyAvailable,
		"upcoming": model.LobbyUpcoming,
		"expired":  model.LobbyExpired,
		"done":     model.LobbyCompleted,
	}, statuses)
	require.True(t, lobby[0].HasPaper)
	require.False(t, lobby[1].HasPaper)
}
