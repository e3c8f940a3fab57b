package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/session-escrow/internal/domain"
)

var maxFee = decimal.NewFromInt(math.MaxInt64)

type Mode string

const (
	ModePerMinute Mode = "per_minute"
	ModePerHour   Mode = "per_hour"
	ModeFlat      Mode = "flat"
)

func (m Mode) IsValid() bool {
	return m == ModePerMinute || m == ModePerHour || m == ModeFlat
}

type Quote struct {
	SessionType     domain.SessionType
	Mode            Mode
	Rate            int64
	DurationMinutes int64
	Fee             int64
}

// Calculator turns a session type, rate and slot into the fee held in escrow.
// Amounts are minor units.
type Calculator struct {
	modes       map[domain.SessionType]Mode
	defaultType domain.SessionType
}

func NewCalculator(modes map[string]string, defaultType string) (*Calculator, error) {
	c := &Calculator{
		modes:       make(map[domain.SessionType]Mode, len(modes)),
		defaultType: domain.SessionType(defaultType),
	}
	for st, m := range modes {
		mode := Mode(m)
		if !mode.IsValid() {
			return nil, fmt.Errorf("NewCalculator: session type %q: unknown mode %q", st, m)
		}
		c.modes[domain.SessionType(st)] = mode
	}
	if _, ok := c.modes[c.defaultType]; !ok {
		return nil, fmt.Errorf("NewCalculator: default session type %q has no pricing mode", defaultType)
	}
	return c, nil
}

func (c *Calculator) DefaultType() domain.SessionType {
	return c.defaultType
}

func (c *Calculator) Quote(sessionType domain.SessionType, rate int64, start, end time.Time) (*Quote, error) {
	if sessionType == "" {
		sessionType = c.defaultType
	}
	mode, ok := c.modes[sessionType]
	if !ok {
		return nil, fmt.Errorf("Quote: %q: %w", sessionType, domain.ErrInvalidSessionType)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("Quote: rate: %w", domain.ErrInvalidAmount)
	}

	minutes := int64(end.Sub(start) / time.Minute)
	if minutes < 1 {
		return nil, fmt.Errorf("Quote: session shorter than a minute: %w", domain.ErrInvalidWindow)
	}

	var amount decimal.Decimal
	switch mode {
	case ModePerMinute:
		amount = decimal.NewFromInt(rate).Mul(decimal.NewFromInt(minutes))
	case ModePerHour:
		amount = decimal.NewFromInt(rate).
			Mul(decimal.NewFromInt(minutes)).
			Div(decimal.NewFromInt(60)).
			Round(0)
	case ModeFlat:
		amount = decimal.NewFromInt(rate)
	}
	if amount.GreaterThan(maxFee) {
		return nil, fmt.Errorf("Quote: fee %s exceeds int64: %w", amount, domain.ErrInvalidAmount)
	}
	fee := amount.IntPart()
	if fee <= 0 {
		return nil, fmt.Errorf("Quote: fee rounds to zero: %w", domain.ErrInvalidAmount)
	}

	return &Quote{
		SessionType:     sessionType,
		Mode:            mode,
		Rate:            rate,
		DurationMinutes: minutes,
		Fee:             fee,
	}, nil
}
