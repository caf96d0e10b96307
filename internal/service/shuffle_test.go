package service

import (
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stretchr/testify/require"
)

// reverseShuffle is a deterministic Shuffler that reverses its input.
func reverseShuffle(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func identityShuffle(int, func(i, j int)) {}

func choiceQuestion(text string, correct string, options ...string) model.Question {
	body := model.ChoiceBody{Correct: correct}
	for i, o := range options {
		if o == "" {
			continue
		}
		body.Options = append(body.Options, model.Option{Letter: model.OptionLetters[i], Text: o})
	}
	return model.Question{ID: uuid.New(), Kind: model.QuestionKindMCQ, Text: text, Body: body}
}

func trueFalseQuestion(text string, correct bool) model.Question {
	return model.Question{ID: uuid.New(), Kind: model.QuestionKindTrueFalse, Text: text, Body: model.TrueFalseBody{Correct: correct}}
}

func openQuestion(kind model.QuestionKind, text string) model.Question {
	return model.Question{ID: uuid.New(), Kind: kind, Text: text, Body: model.OpenBody{}}
}

func TestPresentQuestions_RemapsCorrectLetter(t *testing.T) {
	mcq := choiceQuestion("2+2", "B", "3", "4", "5", "6")
	tf := trueFalseQuestion("sky is blue", true)
	desc := openQuestion(model.QuestionKindDescriptive, "explain")

	presented, correct := PresentQuestions([]model.Question{mcq, tf, desc}, reverseShuffle)

	require.Len(t, presented, 3)
	require.Equal(t, []uuid.UUID{desc.ID, tf.ID, mcq.ID},
		[]uuid.UUID{presented[0].ID, presented[1].ID, presented[2].ID})

	opts := presented[2].Options
	require.Equal(t, []model.Option{
		{Letter: "A", Text: "6"},
		{Letter: "B", Text: "5"},
		{Letter: "C", Text: "4"},
		{Letter: "D", Text: "3"},
	}, opts)
	require.Equal(t, "C", correct[mcq.ID])
	require.Equal(t, model.TrueAnswer, correct[tf.ID])
	require.Equal(t, "", correct[desc.ID])
	require.Empty(t, presented[0].Options)
}

func TestPresentQuestions_DoesNotMutateInput(t *testing.T) {
	mcq := choiceQuestion("2+2", "B", "3", "4", "5", "6")
	questions := []model.Question{mcq, trueFalseQuestion("x", false)}

	PresentQuestions(questions, reverseShuffle)

	require.Equal(t, mcq.ID, questions[0].ID)
	require.Equal(t, "A", questions[0].Body.(model.ChoiceBody).Options[0].Letter)
	require.Equal(t, "3", questions[0].Body.(model.ChoiceBody).Options[0].Text)
}

func TestPresentQuestions_SkipsEmptyOptionsAndSingleOption(t *testing.T) {
	sparse := choiceQuestion("pick", "C", "x", "", "z", "")
	single := choiceQuestion("only", "A", "alone")

	presented, correct := PresentQuestions([]model.Question{sparse, single}, identityShuffle)

	require.Equal(t, []model.Option{{Letter: "A", Text: "x"}, {Letter: "B", Text: "z"}}, presented[0].Options)
	require.Equal(t, "B", correct[sparse.ID])
	require.Equal(t, []model.Option{{Letter: "A", Text: "alone"}}, presented[1].Options)
	require.Equal(t, "A", correct[single.ID])
}

func TestPresentQuestions_EffectiveLetterAlwaysPointsAtOriginalAnswer(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	mcq := choiceQuestion("capital of France", "D", "Berlin", "Madrid", "Rome", "Paris")

	for i := 0; i < 200; i++ {
		presented, correct := PresentQuestions([]model.Question{mcq}, r.Shuffle)
		key := correct[mcq.ID]

		var text string
		for _, o := range presented[0].Options {
			if o.Letter == key {
				text = o.Text
			}
		}
		require.Equal(t, "Paris", text, "iteration %d", i)
	}
}
