package usecase

import (
	"OptRoll/internal/domain/models"

	"cloud.google.com/go/civil"
)

var knownMarketFields = map[models.FieldID]struct{}{
	models.FieldSettle: {}, models.FieldLast: {}, models.FieldBid: {}, models.FieldAsk: {},
	models.FieldVolume: {}, models.FieldOpenInterest: {}, models.FieldImpliedVol: {},
	models.FieldDelta: {}, models.FieldGamma: {}, models.FieldTheta: {}, models.FieldVega: {},
}

// MarketDataFromFields lifts a vendor field map into a typed snapshot. Fields
// without a named slot land in Unmapped.
func MarketDataFromFields(c models.OptionContract, asOf civil.Date, f models.FieldValues) models.OptionMarketData {
	md := models.OptionMarketData{
		Contract:     c,
		AsOfDate:     asOf,
		Settle:       f.Float(models.FieldSettle),
		Last:         f.Float(models.FieldLast),
		Bid:          f.Float(models.FieldBid),
		Ask:          f.Float(models.FieldAsk),
		Volume:       f.Float(models.FieldVolume),
		OpenInterest: f.Float(models.FieldOpenInterest),
		ImpliedVol:   f.Float(models.FieldImpliedVol),
		Delta:        f.Float(models.FieldDelta),
		Gamma:        f.Float(models.FieldGamma),
		Theta:        f.Float(models.FieldTheta),
		Vega:         f.Float(models.FieldVega),
	}
	for k, v := range f {
		if _, known := knownMarketFields[k]; known || models.IsStaticField(k) {
			continue
		}
		if md.Unmapped == nil {
			md.Unmapped = make(map[models.FieldID]any)
		}
		md.Unmapped[k] = v
	}
	return md
}
