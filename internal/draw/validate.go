package draw

import (
	"strconv"
	"strings"
	"time"
)

// MaxRandomWinners bounds the winner count of a random draw.
const MaxRandomWinners = 100

// Validator checks a candidate Config against the engine's global rules.
// It is a pure function of its inputs: no I/O, no side effects, and it
// never panics for control flow. Permission checks are not performed here;
// the creator folds a collaborator's negative answer into the same
// FieldErrors value so callers see one uniform failure shape.
type Validator struct {
	// GlobalMinimum is the site-wide floor for a draw's minimum
	// participant requirement.
	GlobalMinimum int
}

// Validate reports every violated rule in cfg at once. A nil return means
// the config is acceptable at instant now.
func (v Validator) Validate(cfg Config, now time.Time) error {
	var errs FieldErrors

	if strings.TrimSpace(cfg.Title) == "" {
		errs.Add("title", "title must not be empty")
	}
	if strings.TrimSpace(cfg.PrizeDescription) == "" {
		errs.Add("prize_description", "prize description must not be empty")
	}

	if cfg.DrawAt.IsZero() {
		errs.Add("draw_at", "draw time must not be empty")
	} else if !cfg.DrawAt.After(now) {
		errs.Add("draw_at", "draw time must be in the future")
	}

	if cfg.MinParticipants < v.GlobalMinimum {
		errs.Addf("min_participants", "minimum participants must be at least %d", v.GlobalMinimum)
	}

	switch cfg.Policy.Kind {
	case PolicyRandom:
		if cfg.Policy.Count < 1 {
			errs.Add("winner_count", "winner count must be greater than 0")
		} else if cfg.Policy.Count > MaxRandomWinners {
			errs.Addf("winner_count", "winner count must not exceed %d", MaxRandomWinners)
		}
	case PolicyFixedPositions:
		validatePositions(cfg.Policy.Positions, &errs)
	default:
		errs.Add("policy", "selection policy must be random or specified")
	}

	switch cfg.Backup {
	case BackupContinue, BackupCancel:
	case "":
		errs.Add("backup_strategy", "backup strategy must not be empty")
	default:
		errs.Add("backup_strategy", "backup strategy must be 'continue' or 'cancel'")
	}

	return errs.OrNil()
}

func validatePositions(positions []int, errs *FieldErrors) {
	if len(positions) == 0 {
		errs.Add("specified_positions", "at least one position is required")
		return
	}
	seen := make(map[int]bool, len(positions))
	reportedLow := false
	reportedDup := false
	for _, p := range positions {
		// Position 1 is the opening post and belongs to the initiator.
		if p < 2 && !reportedLow {
			errs.Add("specified_positions", "positions must be 2 or higher (the opening post cannot win)")
			reportedLow = true
		}
		if seen[p] && !reportedDup {
			errs.Add("specified_positions", "positions must not repeat")
			reportedDup = true
		}
		seen[p] = true
	}
}

// ParsePositions parses a comma-separated position list as supplied at the
// API boundary ("3, 8,12" -> [3 8 12]). Blank input yields an empty list;
// a non-numeric element is a FieldErrors failure. Range and uniqueness are
// the Validator's job, not the parser's.
func ParsePositions(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	positions := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			var errs FieldErrors
			errs.Add("specified_positions", "positions must be comma-separated numbers")
			return nil, errs
		}
		positions = append(positions, n)
	}
	return positions, nil
}
