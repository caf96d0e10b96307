package service

import (
	"github.com/google/uuid"
	"github.com/stemsi/exproctor-backend/internal/model"
)

// Shuffler permutes n elements through swap. rand.Shuffle satisfies it.
type Shuffler func(n int, swap func(i, j int))

// PresentQuestions randomises question order and, for choice questions with
// at least two options, option order. It returns the presentation and the
// effective correct designator of every question. Non-choice questions keep
// their authoring designator in the mapping.
func PresentQuestions(questions []model.Question, shuffle Shuffler) ([]model.PresentedQuestion, map[uuid.UUID]string) {
	ordered := make([]model.Question, len(questions))
	copy(ordered, questions)
	shuffle(len(ordered), func(i, j int) {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	})

	presented := make([]model.PresentedQuestion, 0, len(ordered))
	correct := make(map[uuid.UUID]string, len(ordered))

	for _, q := range ordered {
		pq := model.PresentedQuestion{
			ID:          q.ID,
			Kind:        q.Kind,
			Text:        q.Text,
			Explanation: q.Explanation,
			MediaPath:   q.MediaPath,
		}

		key := q.CorrectDesignator()
		if body, ok := q.Body.(model.ChoiceBody); ok {
			pq.Options, key = shuffleOptions(body, shuffle)
		}

		correct[q.ID] = key
		presented = append(presented, pq)
	}

	return presented, correct
}

// shuffleOptions reorders the options, relabels them A.. by new position and
// returns the letter now carrying the original correct option.
func shuffleOptions(body model.ChoiceBody, shuffle Shuffler) ([]model.Option, string) {
	opts := make([]model.Option, len(body.Options))
	copy(opts, body.Options)
	if len(opts) < 2 {
		return opts, body.Correct
	}

	shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})

	key := body.Correct
	for i := range opts {
		if opts[i].Letter == body.Correct {
			key = model.OptionLetters[i]
		}
		opts[i].Letter = model.OptionLetters[i]
	}
	return opts, key
}
