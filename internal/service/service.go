package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"messagely/internal/domain"
)

// Clock supplies timestamps for join, login, send and read events.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Notifier pushes realtime events to a user's open connections.
type Notifier interface {
	Notify(username string, ev domain.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, domain.Event) {}

// RosterCache holds the roster between registrations. A nil list from
// Roster is a miss. The generation Roster returns goes back to SetRoster so
// a fill that raced an invalidation is never served.
type RosterCache interface {
	Roster(ctx context.Context) ([]domain.UserSummary, int64, error)
	SetRoster(ctx context.Context, gen int64, list []domain.UserSummary) error
	InvalidateRoster(ctx context.Context) error
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// validateInput reports the first failing field as ErrInvalidInput.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s %s", domain.ErrInvalidInput, fe.Field(), describeRule(fe))
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "username":
		return "may only contain letters, digits, '_' and '-'"
	default:
		return "is invalid"
	}
}
