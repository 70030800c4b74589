package models

// Query and body shapes for the HTTP API. Dates are YYYY-MM-DD strings and
// are parsed by the handler after validation.

type SeriesHTTPRequest struct {
	Underlying string `query:"underlying" json:"underlying" validate:"required,max=64"`
	Start      string `query:"start" json:"start" validate:"required,isodate"`
	End        string `query:"end" json:"end" validate:"required,isodate"`
	AsOf       string `query:"as_of" json:"as_of" validate:"omitempty,isodate"`
	Strict     bool   `query:"strict" json:"strict"`
	Format     string `query:"format" json:"format" default:"json" validate:"oneof=json csv"`
}

type ChainHTTPRequest struct {
	Underlying  string  `query:"underlying" validate:"required,max=64"`
	Expiry      string  `query:"expiry" validate:"omitempty,isodate"`
	AsOf        string  `query:"as_of" validate:"omitempty,isodate"`
	ExpiryStart string  `query:"expiry_start" validate:"omitempty,isodate"`
	ExpiryEnd   string  `query:"expiry_end" validate:"omitempty,isodate"`
	StrikeMin   float64 `query:"strike_min" validate:"gte=0"`
	StrikeMax   float64 `query:"strike_max" validate:"gte=0"`
	Type        string  `query:"type" default:"both" validate:"oneof=call put both"`
}

type HistoryHTTPRequest struct {
	Tickers     []string `query:"ticker" validate:"required,min=1,max=500,dive,required"`
	Fields      []string `query:"field" validate:"max=32"`
	Start       string   `query:"start" validate:"required,isodate"`
	End         string   `query:"end" validate:"required,isodate"`
	Periodicity string   `query:"periodicity" default:"DAILY" validate:"oneof=DAILY WEEKLY MONTHLY QUARTERLY SEMI_ANNUALLY YEARLY daily weekly monthly quarterly semi_annually yearly"`
}

type StoredSeriesRequest struct {
	Underlying string `query:"underlying" validate:"required,max=64"`
	From       string `query:"from" validate:"required,isodate"`
	To         string `query:"to" validate:"required,isodate"`
	Format     string `query:"format" default:"json" validate:"oneof=json csv"`
}

// SeriesJobAccepted is returned when a series run is queued.
type SeriesJobAccepted struct {
	RunID     string   `json:"run_id"`
	State     RunState `json:"state"`
	StatusURL string   `json:"status_url"`
}
