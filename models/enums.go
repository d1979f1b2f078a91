package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/moneymap/fintrack_backend/utils"
)

// enumString normalizes a raw DB value to a string for the Scan methods
// below. Each enum re-validates through its Parse function so a corrupted
// column value surfaces as an error instead of round-tripping silently.
func enumString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported enum column type %T", value)
	}
}

// Frequency is a closed enumeration. Unknown strings are rejected at the
// edge so a typo can never silently fall through to one-time behavior.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

func ParseFrequency(s string) (Frequency, error) {
	frequencies := map[string]Frequency{
		"daily":   FrequencyDaily,
		"weekly":  FrequencyWeekly,
		"monthly": FrequencyMonthly,
		"yearly":  FrequencyYearly,
	}
	f, ok := frequencies[s]
	if !ok {
		return "", errors.New("invalid frequency")
	}
	return f, nil
}

func (f *Frequency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("frequency must be string")
	}
	parsed, err := ParseFrequency(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f *Frequency) Scan(value any) error {
	s, err := enumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseFrequency(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f Frequency) Value() (driver.Value, error) {
	if _, err := ParseFrequency(string(f)); err != nil {
		return nil, err
	}
	return string(f), nil
}

// NextOccurrence advances date by one period. Pure and total for any valid
// frequency; monthly advances clamp to the target month's length.
func (f Frequency) NextOccurrence(date time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return date.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return date.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return utils.AddMonths(date, 1)
	case FrequencyYearly:
		return date.AddDate(1, 0, 0)
	}
	// Unreachable for values built through ParseFrequency.
	return date.AddDate(0, 0, 1)
}

// EntryType distinguishes repeating entries from one-shot ones.
type EntryType string

const (
	EntryTypeRecurring    EntryType = "recurring"
	EntryTypeNonRecurring EntryType = "non-recurring"
)

func ParseEntryType(s string) (EntryType, error) {
	entryTypes := map[string]EntryType{
		"recurring":     EntryTypeRecurring,
		"non-recurring": EntryTypeNonRecurring,
	}
	t, ok := entryTypes[s]
	if !ok {
		return "", errors.New("invalid entry type")
	}
	return t, nil
}

func (t *EntryType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("entry type must be string")
	}
	parsed, err := ParseEntryType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t *EntryType) Scan(value any) error {
	s, err := enumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseEntryType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t EntryType) Value() (driver.Value, error) {
	if _, err := ParseEntryType(string(t)); err != nil {
		return nil, err
	}
	return string(t), nil
}

// EntryStatus is where an entry sits relative to today. Derived, never
// authoritative in the incomes table; persisted only as a snapshot on
// EntryTransaction.
type EntryStatus string

const (
	EntryStatusCurrent  EntryStatus = "current"
	EntryStatusUpcoming EntryStatus = "upcoming"
	EntryStatusExpired  EntryStatus = "expired"
)

func ParseEntryStatus(s string) (EntryStatus, error) {
	statuses := map[string]EntryStatus{
		"current":  EntryStatusCurrent,
		"upcoming": EntryStatusUpcoming,
		"expired":  EntryStatusExpired,
	}
	st, ok := statuses[s]
	if !ok {
		return "", errors.New("invalid entry status")
	}
	return st, nil
}

func (s *EntryStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("entry status must be string")
	}
	parsed, err := ParseEntryStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s *EntryStatus) Scan(value any) error {
	str, err := enumString(value)
	if err != nil {
		return err
	}
	parsed, err := ParseEntryStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s EntryStatus) Value() (driver.Value, error) {
	if _, err := ParseEntryStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}
