package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger so every progression roll leaves an
// audit line at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Roll evaluates expr and logs the result tagged with reason.
func (r *Roller) Roll(reason string, expr Expression) RollResult {
	result := Roll(expr, r.src)
	r.logger.Debug("dice roll",
		zap.String("reason", reason),
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("total", result.Total()),
	)
	return result
}

// Percent rolls 1d100 and returns the face.
//
// Postcondition: 1 <= result <= 100.
func (r *Roller) Percent(reason string) int {
	return r.Roll(reason, Percentile).Total()
}
