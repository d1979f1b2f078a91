package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

var ErrorFrequencyRequired = errors.New("frequency is required for recurring entries")

var ErrorFrequencyNotAllowed = errors.New("frequency is only allowed for recurring entries")
