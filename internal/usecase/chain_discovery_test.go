package usecase

import (
	"context"
	"testing"

	"OptRoll/internal/domain/models"
	xlogger "OptRoll/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverChainEmptyIsNotAnError(t *testing.T) {
	src := newFakeSource()
	d := NewChainDiscovery(src, DefaultATMPolicy(), xlogger.NewNop(), nil)

	resp := d.DiscoverChain(context.Background(), "NOOPT", nil)
	assert.True(t, resp.Success())
	assert.Empty(t, resp.Data)
}

func TestDiscoverChainDeduplicates(t *testing.T) {
	src := newFakeSource()
	src.chain["SPY"] = []string{"A", "B", "A"}
	d := NewChainDiscovery(src, DefaultATMPolicy(), xlogger.NewNop(), nil)

	resp := d.DiscoverChain(context.Background(), "SPY", nil)
	assert.Equal(t, []string{"A", "B"}, resp.Data)
}

func TestResolveContractsBatchesAndDrops(t *testing.T) {
	src := newFakeSource()
	exp := date(2024, 11, 15)
	src.addContract("C100", 100, exp, "C")
	src.addContract("P100", 100, exp, "P")
	src.addContract("X100", 100, exp, "CP")
	src.contracts["NOSTRIKE"] = models.FieldValues{models.FieldExpiry: exp, models.FieldPutCall: "C"}

	policy := DefaultATMPolicy()
	policy.BatchSize = 2
	d := NewChainDiscovery(src, policy, xlogger.NewNop(), nil)

	resp := d.ResolveContracts(context.Background(), []string{"C100", "P100", "X100", "NOSTRIKE", "MISSING"}, "SPY", nil)
	require.True(t, resp.Success())
	assert.Equal(t, 3, src.contractCalls)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, models.OptionContract{Ticker: "C100", Strike: 100, Expiry: exp, OptionType: models.OptionTypeCall, Underlying: "SPY"}, resp.Data[0])
	assert.True(t, resp.Data[1].IsPut())
}

func TestResolveContractsRecordsFailedBatchAndContinues(t *testing.T) {
	src := newFakeSource()
	exp := date(2024, 11, 15)
	src.addContract("A", 100, exp, "C")
	src.addContract("B", 105, exp, "C")
	src.failBatches[0] = true

	policy := DefaultATMPolicy()
	policy.BatchSize = 1
	d := NewChainDiscovery(src, policy, xlogger.NewNop(), nil)

	resp := d.ResolveContracts(context.Background(), []string{"A", "B"}, "SPY", nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, models.ErrKindDiscovery, resp.Errors[0].Kind)
	assert.Equal(t, 0, resp.Errors[0].Context["batch"])
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "B", resp.Data[0].Ticker)
}

func TestResolveContractsTickerFallback(t *testing.T) {
	src := newFakeSource()
	ticker := "NVDA US 11/21/25 C177.5 Equity"

	strict := NewChainDiscovery(src, DefaultATMPolicy(), xlogger.NewNop(), nil)
	assert.Empty(t, strict.ResolveContracts(context.Background(), []string{ticker}, "NVDA US Equity", nil).Data)

	policy := DefaultATMPolicy()
	policy.TickerParseFallback = true
	lenient := NewChainDiscovery(src, policy, xlogger.NewNop(), nil)
	resp := lenient.ResolveContracts(context.Background(), []string{ticker}, "NVDA US Equity", nil)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 177.5, resp.Data[0].Strike)
	assert.Equal(t, date(2025, 11, 21), resp.Data[0].Expiry)
}
