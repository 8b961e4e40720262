package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var (
	phonePattern     = regexp.MustCompile(`^\+?\d{10,15}$`)
	birthDatePattern = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)
)

// Birth year bounds accepted by the intake.
const (
	MinBirthYear = 1900
	MaxBirthYear = 2025
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic("model: register validation " + tag + ": " + err.Error())
		}
	}
	must("fullname", func(fl validator.FieldLevel) bool {
		return IsFullName(fl.Field().String())
	})
	must("arrival", func(fl validator.FieldLevel) bool {
		return lo.Contains(ArrivalDates, fl.Field().String())
	})
	must("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	must("birthdate", func(fl validator.FieldLevel) bool {
		return IsBirthDate(fl.Field().String())
	})
	must("gender", func(fl validator.FieldLevel) bool {
		g := Gender(fl.Field().Int())
		return g == GenderMale || g == GenderFemale
	})
	return v
}

// IsFullName requires at least two whitespace-separated tokens.
func IsFullName(s string) bool {
	return len(strings.Fields(s)) >= 2
}

// IsBirthDate accepts DD.MM.YYYY with each part range-checked on its own.
// Calendar validity (e.g. 31.02) is not checked.
func IsBirthDate(s string) bool {
	if !birthDatePattern.MatchString(s) {
		return false
	}
	parts := strings.Split(s, ".")
	day, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	year, _ := strconv.Atoi(parts[2])
	return day >= 1 && day <= 31 &&
		month >= 1 && month <= 12 &&
		year >= MinBirthYear && year <= MaxBirthYear
}

// ValidateField checks a single intake answer against a validator tag.
func ValidateField(value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Validate checks a complete intake result before it is committed.
func (in RegistrationInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
