package inherit

import "time"

// DefaultEvaluation describes one default expression evaluated by Derive.
type DefaultEvaluation struct {
	Engine   string
	Record   string
	Field    string
	Expr     string
	Value    any
	Duration time.Duration
	Err      error
}

// Target returns Record.Field.
func (e DefaultEvaluation) Target() string {
	return ExprContext{Record: e.Record, Field: e.Field}.fieldLabel()
}

// EvaluatorLogger observes default evaluations.
type EvaluatorLogger interface {
	LogEvaluation(DefaultEvaluation)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(DefaultEvaluation)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event DefaultEvaluation) {
	if f != nil {
		f(event)
	}
}

type discardEvaluations struct{}

func (discardEvaluations) LogEvaluation(DefaultEvaluation) {}
