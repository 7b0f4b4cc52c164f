package infra

import (
	"fmt"

	"barrier-gateway/middleware/barrier/domain"
)

const DefaultMaxRetries = 3

// RetryBudget é o teto de tentativas imediatas após uma falha.
type RetryBudget struct {
	maxRetries int
}

func NewRetryBudget(maxRetries int) (RetryBudget, error) {
	if maxRetries <= 0 {
		return RetryBudget{}, fmt.Errorf("retry budget: max_retries must be > 0, got %d", maxRetries)
	}
	return RetryBudget{maxRetries: maxRetries}, nil
}

func (r RetryBudget) MaxRetries() int { return r.maxRetries }

// Exhausted indica que `failures` consumiu o orçamento inteiro.
func (r RetryBudget) Exhausted(failures int) bool { return failures >= r.maxRetries }

// Retrying indica uma rajada de retentativas em andamento.
func (r RetryBudget) Retrying(failures int) bool {
	return failures > 0 && failures < r.maxRetries
}

func (r RetryBudget) Attributes() domain.Snapshot {
	return domain.Snapshot{domain.AttrMaxRetries: r.maxRetries}
}
