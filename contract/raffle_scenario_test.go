package contract

import (
	"errors"
	"testing"

	"nftraffle/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRaffleLifecycle walks one raffle from initialization to the draw and a
// second raffle from initialization to cancellation.
func TestRaffleLifecycle(t *testing.T) {
	f := newFundedFixture(t)

	raffle := f.initialize("raffle-1")
	assert.Equal(t, creatorID, raffle.Creator)
	assert.Equal(t, entryFee, raffle.EntryFee)
	assert.Equal(t, testMaxEntries, raffle.MaxEntries)
	assert.Empty(t, raffle.Entries)
	assert.True(t, raffle.IsActive)
	assert.Equal(t, model.StatusActive, raffle.Status)
	assert.Equal(t, uint64(0), f.assetUnits(creatorID))
	assert.Equal(t, uint64(1), f.assetUnits(CustodyAccount("raffle-1")))
	assert.Equal(t, "RaffleInitialized", f.lastEvent())

	f.enter("raffle-1", p1ID, p2ID, p3ID)
	stored := f.raffle("raffle-1")
	assert.Equal(t, []string{p1ID, p2ID, p3ID}, stored.Entries)
	assert.Equal(t, 3*entryFee, stored.CollectedFees)
	assert.Equal(t, 3*entryFee, f.funds(CustodyAccount("raffle-1")))
	assert.Equal(t, startingFunds-entryFee, f.funds(p1ID))
	assert.Equal(t, "RaffleEntered", f.lastEvent())

	_, err := f.cc.EnterRaffle(f.as(p4ID), "raffle-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxEntriesReached), "got %v", err)
	assert.Contains(t, err.Error(), string(CodeMaxEntriesReached))

	drawn, err := f.cc.PickWinner(f.as(creatorID), "raffle-1")
	require.NoError(t, err)
	assert.False(t, drawn.IsActive)
	assert.Equal(t, model.StatusDrawn, drawn.Status)
	require.NotNil(t, drawn.Draw)
	assert.Contains(t, drawn.Entries, drawn.Draw.Winner)
	assert.Equal(t, drawn.Entries[drawn.Draw.WinnerIndex], drawn.Draw.Winner)
	assert.Equal(t, "RaffleWinnerDrawn", f.lastEvent())

	holders := 0
	for _, id := range []string{p1ID, p2ID, p3ID} {
		units := f.assetUnits(id)
		if id == drawn.Draw.Winner {
			assert.Equal(t, uint64(1), units)
		} else {
			assert.Equal(t, uint64(0), units)
		}
		holders += int(units)
	}
	assert.Equal(t, 1, holders)
	assert.Equal(t, uint64(0), f.assetUnits(CustodyAccount("raffle-1")))
	assert.Equal(t, uint64(0), f.funds(CustodyAccount("raffle-1")))
	assert.Equal(t, 3*entryFee, f.funds(creatorID))

	_, err = f.cc.EnterRaffle(f.as(p4ID), "raffle-1")
	assert.True(t, errors.Is(err, ErrRaffleNotActive), "got %v", err)

	// Second raffle on a fresh slot, cancelled by its creator.
	require.NoError(t, f.cc.IssueAsset(f.as(adminID), nftAsset, creatorID, 1))
	f.initialize("raffle-2")
	f.enter("raffle-2", p4ID)

	_, err = f.cc.CloseRaffle(f.as(p4ID), "raffle-2")
	assert.True(t, errors.Is(err, ErrUnauthorized), "got %v", err)

	closed, err := f.cc.CloseRaffle(f.as(creatorID), "raffle-2")
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.Equal(t, model.StatusCancelled, closed.Status)
	assert.Nil(t, closed.Draw)
	assert.Equal(t, "RaffleClosed", f.lastEvent())
	assert.Equal(t, uint64(1), f.assetUnits(creatorID))
	assert.Equal(t, startingFunds, f.funds(p4ID))
	assert.Equal(t, uint64(0), f.funds(CustodyAccount("raffle-2")))
}

func TestConservationAcrossLifecycle(t *testing.T) {
	f := newFundedFixture(t, WithIndexDrawer(&fixedDrawer{index: 1}))
	total := func() uint64 {
		var sum uint64
		for _, id := range []string{creatorID, p1ID, p2ID, p3ID, p4ID, CustodyAccount("r")} {
			sum += f.funds(id)
		}
		return sum
	}
	units := func() uint64 {
		var sum uint64
		for _, id := range []string{creatorID, p1ID, p2ID, p3ID, p4ID, CustodyAccount("r")} {
			sum += f.assetUnits(id)
		}
		return sum
	}
	before := total()

	f.initialize("r")
	assert.Equal(t, uint64(1), units())
	f.enter("r", p1ID, p2ID)
	assert.Equal(t, before, total())
	assert.Equal(t, uint64(1), units())

	drawn, err := f.cc.PickWinner(f.as(creatorID), "r")
	require.NoError(t, err)
	assert.Equal(t, p2ID, drawn.Draw.Winner)
	assert.Equal(t, 1, drawn.Draw.WinnerIndex)
	assert.Equal(t, 2*entryFee, drawn.Draw.FeesPaid)
	assert.Equal(t, before, total())
	assert.Equal(t, uint64(1), units())
	assert.Equal(t, uint64(1), f.assetUnits(p2ID))
}
