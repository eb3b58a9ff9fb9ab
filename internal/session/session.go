// Package session runs the interactive ZIP code and payment dialogue as an
// explicit state machine.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/salestax-cli/internal/location"
	"github.com/sells-group/salestax-cli/internal/model"
	"github.com/sells-group/salestax-cli/internal/quote"
	"github.com/sells-group/salestax-cli/internal/report"
	"github.com/sells-group/salestax-cli/internal/taxcalc"
	"github.com/sells-group/salestax-cli/internal/taxtable"
)

// User-facing messages.
const (
	PromptZip        = "Enter ZIP code (or 'x' to exit): "
	PromptPayment    = "Enter your monthly payment: "
	MsgExit          = "Exiting the program."
	MsgNoTaxData     = "No tax data was extracted. Exiting..."
	MsgInvalidZip    = "Invalid input. Please enter a 5-digit ZIP code (numeric only)."
	MsgOutOfDomain   = "Sorry, this program only handles California ZIP codes."
	MsgBadRate       = "Error calculating tax components. Skipping this ZIP code."
	MsgInvalidAmount = "Invalid input. Please enter a valid numeric payment amount."
)

// State is a position in the dialogue.
type State int

// Dialogue states.
const (
	AwaitingZip State = iota
	AwaitingPayment
	Reporting
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingZip:
		return "awaiting_zip"
	case AwaitingPayment:
		return "awaiting_payment"
	case Reporting:
		return "reporting"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Service is the query surface the session drives.
type Service interface {
	Table() *taxtable.Table
	Resolve(ctx context.Context, zip string) (model.LocationRecord, error)
	Match(loc model.LocationRecord) (model.Match, error)
	Price(m model.Match, payment decimal.Decimal) (model.Quote, error)
}

// Option configures a Session.
type Option func(*Session)

// WithPrompts toggles writing prompts before reading input.
func WithPrompts(on bool) Option {
	return func(s *Session) {
		s.prompts = on
	}
}

// WithFormat sets the report format. Text is the default.
func WithFormat(f report.Format) Option {
	return func(s *Session) {
		s.format = f
	}
}

// Session holds the dialogue state for one user.
type Session struct {
	svc     Service
	in      *bufio.Scanner
	out     io.Writer
	prompts bool
	format  report.Format

	state   State
	queryID string
	match   model.Match
	quote   model.Quote
}

// New creates a Session reading lines from in and writing to out.
func New(svc Service, in io.Reader, out io.Writer, opts ...Option) *Session {
	s := &Session{
		svc:     svc,
		in:      bufio.NewScanner(in),
		out:     out,
		prompts: true,
		format:  report.FormatText,
		state:   AwaitingZip,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Run drives the dialogue until the user exits, input ends or ctx is
// cancelled. It returns taxtable.ErrEmptyTaxTable without prompting when
// there are no rates to match against.
func (s *Session) Run(ctx context.Context) error {
	if s.svc.Table().Empty() {
		s.println(MsgNoTaxData)
		s.state = Terminated
		return taxtable.ErrEmptyTaxTable
	}

	for s.state != Terminated {
		if err := ctx.Err(); err != nil {
			s.state = Terminated
			return err
		}
		s.step(ctx)
	}
	return nil
}

// step runs the handler for the current state once.
func (s *Session) step(ctx context.Context) {
	switch s.state {
	case AwaitingZip:
		s.state = s.onZip(ctx)
	case AwaitingPayment:
		s.state = s.onPayment()
	case Reporting:
		s.state = s.report()
	default:
		s.state = Terminated
	}
}

func (s *Session) onZip(ctx context.Context) State {
	line, ok := s.readLine(PromptZip)
	if !ok || strings.EqualFold(strings.TrimSpace(line), "x") {
		s.println(MsgExit)
		return Terminated
	}

	s.queryID = uuid.NewString()
	log := zap.L().With(zap.String("query_id", s.queryID))
	zip := strings.TrimSpace(line)

	loc, err := s.svc.Resolve(ctx, line)
	switch {
	case err == nil:
	case errors.Is(err, quote.ErrInvalidZip):
		s.println(MsgInvalidZip)
		return AwaitingZip
	case errors.Is(err, location.ErrGeocoderMiss):
		s.printf("No information found for ZIP code %s.\n", zip)
		return AwaitingZip
	case errors.Is(err, location.ErrOutOfDomain):
		log.Info("out of domain zip", zap.String("zip", zip), zap.String("state", loc.State))
		s.println(MsgOutOfDomain)
		return AwaitingZip
	default:
		log.Error("zip lookup failed", zap.String("zip", zip), zap.Error(err))
		s.printf("Lookup failed for ZIP code %s. Please try again.\n", zip)
		return AwaitingZip
	}

	s.printf("City: %s, County: %s, State: %s\n", loc.City, loc.County, loc.State)

	m, err := s.svc.Match(loc)
	if err != nil {
		var nm *quote.NoMatchError
		switch {
		case errors.As(err, &nm):
			s.printf("No tax rate found for %s, %s.\n", loc.City, loc.County)
			if len(nm.Suggestions) > 0 {
				s.printf("Did you mean: %s?\n", strings.Join(nm.Suggestions, ", "))
			}
		case errors.Is(err, taxcalc.ErrInvalidRate):
			log.Warn("malformed rate", zap.String("zip", zip), zap.Error(err))
			s.println(MsgBadRate)
		default:
			log.Error("rate match failed", zap.String("zip", zip), zap.Error(err))
			s.printf("Lookup failed for ZIP code %s. Please try again.\n", zip)
		}
		return AwaitingZip
	}

	log.Debug("rate matched", zap.String("zip", zip), zap.String("rate", m.Spec.Rate))
	s.match = m
	return AwaitingPayment
}

func (s *Session) onPayment() State {
	line, ok := s.readLine(PromptPayment)
	if !ok {
		s.println(MsgExit)
		return Terminated
	}

	payment, err := quote.ParsePayment(line)
	if err != nil {
		s.println(MsgInvalidAmount)
		return AwaitingPayment
	}

	q, err := s.svc.Price(s.match, payment)
	if err != nil {
		s.println(MsgInvalidAmount)
		return AwaitingPayment
	}
	s.quote = q
	return Reporting
}

func (s *Session) report() State {
	s.println("")
	if err := report.WriteQuote(s.out, s.quote, s.format); err != nil {
		zap.L().Error("render report", zap.String("query_id", s.queryID), zap.Error(err))
	}
	s.println("")

	zap.L().Info("quote reported",
		zap.String("query_id", s.queryID),
		zap.String("zip", s.quote.Match.Location.PostalCode),
		zap.String("total_tax", s.quote.TotalTax.String()),
	)
	s.match, s.quote = model.Match{}, model.Quote{}
	return AwaitingZip
}

// readLine writes the prompt and reads one line. ok is false at end of input.
func (s *Session) readLine(prompt string) (string, bool) {
	if s.prompts {
		_, _ = io.WriteString(s.out, prompt)
	}
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			zap.L().Warn("read input", zap.Error(err))
		}
		return "", false
	}
	return s.in.Text(), true
}

func (s *Session) println(msg string) {
	_, _ = fmt.Fprintln(s.out, msg)
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}
