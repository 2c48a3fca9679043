package wake

import "log/slog"

// Power is the terminal stage of every wake cycle.
type Power struct {
	board  Board
	logger *slog.Logger
	fired  bool
}

// NewPower creates a Power controller for board.
func NewPower(board Board, logger *slog.Logger) *Power {
	if logger == nil {
		logger = slog.Default()
	}
	return &Power{board: board, logger: logger}
}

// Latch drives the power hold line so the node stays up after the wake
// trigger opens.
func (p *Power) Latch() {
	if err := p.board.SetPowerHold(true); err != nil {
		p.logger.Error("power hold failed", "error", err)
	}
}

// Shutdown turns the indicator off and releases the power hold line,
// which normally removes supply. If the process is still running
// afterwards (the trigger is still closed, or the node has a second
// supply) it enters an indefinite low-power halt. Only the first call
// has any effect. Hardware errors are logged; the halt is attempted
// regardless.
func (p *Power) Shutdown(reason Reason) {
	if p.fired {
		return
	}
	p.fired = true

	p.logger.Info("shutdown activated", "reason", reason.String())
	if err := p.board.SetIndicator(false); err != nil {
		p.logger.Warn("indicator off failed", "error", err)
	}
	if err := p.board.SetPowerHold(false); err != nil {
		p.logger.Error("power hold release failed", "error", err)
	}

	p.logger.Warn("hardware shutdown did not cut power, entering low-power halt")
	if err := p.board.EnterLowPowerHalt(0); err != nil {
		p.logger.Error("low-power halt failed", "error", err)
	}
}

// Fired reports whether Shutdown has run.
func (p *Power) Fired() bool {
	return p.fired
}
