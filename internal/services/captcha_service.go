package services

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CaptchaService issues the small arithmetic challenge shown on signup.
type CaptchaService struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCaptchaService() *CaptchaService {
	return &CaptchaService{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateMathProblem returns a display string (e.g. "3 + 5") and the integer answer.
// Usage: store the answer in the session, show the question to the user.
func (s *CaptchaService) GenerateMathProblem() (string, int) {
	s.mu.Lock()
	a := s.rnd.Intn(10) // 0-9
	b := s.rnd.Intn(10)
	op := s.rnd.Intn(2) // 0: +, 1: -
	s.mu.Unlock()

	if op == 0 {
		return fmt.Sprintf("%d + %d", a, b), a + b
	}
	// keep the result non-negative
	if a < b {
		a, b = b, a
	}
	return fmt.Sprintf("%d - %d", a, b), a - b
}

// CheckCaptcha reports whether input is the expected answer.
func CheckCaptcha(input string, expected int) bool {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	return err == nil && n == expected
}
