package http

import (
	xutil "OptRoll/pkg/util"

	"cloud.google.com/go/civil"
)

// ParseDateParam parses a request date field or returns a 400 for it.
func ParseDateParam(field, value string) (civil.Date, *AppError) {
	d, ok := xutil.ParseDate(value)
	if !ok {
		return civil.Date{}, FieldError(field, field+" must be a date (YYYY-MM-DD)").WithParam("value", value)
	}
	return d, nil
}

// ParseOptionalDateParam is ParseDateParam where empty means absent.
func ParseOptionalDateParam(field, value string) (*civil.Date, *AppError) {
	if value == "" {
		return nil, nil
	}
	d, err := ParseDateParam(field, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
