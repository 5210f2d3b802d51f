package service

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/healthquiz/quiz-api/internal/domain/quiz"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

// QuizServiceOptions groups dependencies for QuizService.
type QuizServiceOptions struct {
	Bank *quiz.Bank // Required: embedded question bank
	Seed int64      // Optional: shuffle seed, 0 uses wall-clock
}

// QuizService serves departments and shuffled question sets from the
// embedded question bank.
type QuizService struct {
	bank *quiz.Bank

	mu  sync.Mutex
	rng *rand.Rand
}

// NewQuizService constructs a new QuizService.
func NewQuizService(opts QuizServiceOptions) (*QuizService, error) {
	if opts.Bank == nil {
		return nil, errors.New("question bank is required")
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &QuizService{
		bank: opts.Bank,
		rng:  rand.New(rand.NewSource(seed)), // #nosec G404 - shuffle order is not security sensitive
	}, nil
}

// Departments returns every department name in sorted order.
func (s *QuizService) Departments() []string {
	return s.bank.Departments()
}

// Questions returns a shuffled question set for a department, truncated to
// limit when limit > 0.
func (s *QuizService) Questions(department string, limit int) ([]quiz.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions, ok := s.bank.Questions(department, limit, s.rng)
	if !ok {
		return nil, apperrors.NotFound("Department not found")
	}
	return questions, nil
}
