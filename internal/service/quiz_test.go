package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthquiz/quiz-api/internal/domain/quiz"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

func newQuizFixture(t *testing.T) *QuizService {
	t.Helper()

	bank, err := quiz.Load()
	require.NoError(t, err)
	svc, err := NewQuizService(QuizServiceOptions{Bank: bank, Seed: 42})
	require.NoError(t, err)
	return svc
}

func TestQuizService_Departments(t *testing.T) {
	t.Parallel()
	svc := newQuizFixture(t)

	departments := svc.Departments()
	require.NotEmpty(t, departments)
	assert.Contains(t, departments, "Anatomy")
	assert.IsIncreasing(t, departments)
}

func TestQuizService_Questions(t *testing.T) {
	t.Parallel()
	svc := newQuizFixture(t)

	questions, err := svc.Questions("Anatomy", 0)
	require.NoError(t, err)
	require.NotEmpty(t, questions)
	for _, q := range questions {
		assert.NotEmpty(t, q.Question)
		require.NotEmpty(t, q.Options)
		assert.GreaterOrEqual(t, q.Correct, 0)
		assert.Less(t, q.Correct, len(q.Options))
	}

	limited, err := svc.Questions("Anatomy", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestQuizService_Questions_UnknownDepartment(t *testing.T) {
	t.Parallel()
	svc := newQuizFixture(t)

	_, err := svc.Questions("Alchemy", 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
