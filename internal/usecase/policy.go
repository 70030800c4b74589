package usecase

// ATMPolicy holds the tunables of the discovery-and-roll engine.
type ATMPolicy struct {
	MinDaysToExpiry      int
	MaxDaysToExpiry      int
	RollDaysBeforeExpiry int
	StrikeRangePct       float64
	MonthlyExpiryOnly    bool
	BatchSize            int
	// TickerParseFallback lets contract resolution recover attributes from
	// the ticker text when reference fields are incomplete.
	TickerParseFallback bool
}

func DefaultATMPolicy() ATMPolicy {
	return ATMPolicy{
		MinDaysToExpiry:      7,
		MaxDaysToExpiry:      60,
		RollDaysBeforeExpiry: 5,
		StrikeRangePct:       0.10,
		MonthlyExpiryOnly:    true,
		BatchSize:            50,
	}
}

func (p ATMPolicy) batchSize() int {
	if p.BatchSize <= 0 {
		return 50
	}
	return p.BatchSize
}

type noopMetrics struct{}

func (noopMetrics) RecordRun(string, int, int)           {}
func (noopMetrics) RecordDay(string, string)             {}
func (noopMetrics) RecordError(string)                   {}
func (noopMetrics) RecordRoll(string)                    {}
func (noopMetrics) RecordLatency(string, float64)        {}
func (noopMetrics) RecordPointsSent(string, string, int) {}

func errorContext(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			m[k] = kv[i+1]
		}
	}
	return m
}
