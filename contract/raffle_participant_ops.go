package contract

import (
	"fmt"

	"nftraffle/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"go.uber.org/zap"
)

// --- Lifecycle: Participant Operations ---

// EnterRaffle collects the entry fee from the caller into custody and appends the
// caller to the raffle's entries.
func (s *RaffleSmartContract) EnterRaffle(ctx contractapi.TransactionContextInterface, raffleID string) (*model.Raffle, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("EnterRaffle: failed to get actor info: %w", err)
	}
	log := logger.With(zap.String("raffleId", raffleID), zap.String("txId", ctx.GetStub().GetTxID()))

	raffle, err := s.getRaffleByID(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("EnterRaffle: %w", err)
	}
	if err := requireActive(raffle); err != nil {
		return nil, fmt.Errorf("EnterRaffle: %w", err)
	}
	if len(raffle.Entries) >= raffle.MaxEntries {
		return nil, fmt.Errorf("EnterRaffle: %w", raffleErrorf(CodeMaxEntriesReached, "raffle '%s' is full (%d entries)", raffle.ID, raffle.MaxEntries))
	}
	if hasEntered(raffle, actor.fullID) {
		return nil, fmt.Errorf("EnterRaffle: %w", raffleErrorf(CodeDuplicateEntry, "'%s' already entered raffle '%s'", actor.fullID, raffle.ID))
	}

	custodian := NewCustodian(ctx.GetStub())
	if err := custodian.HoldPayment(raffle.EntryFee, actor.fullID, raffle.CustodyAccount); err != nil {
		return nil, fmt.Errorf("EnterRaffle: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("EnterRaffle: %w", err)
	}
	raffle.Entries = append(raffle.Entries, actor.fullID)
	raffle.CollectedFees += raffle.EntryFee
	raffle.LastUpdatedAt = now

	if err := custodian.Commit(); err != nil {
		return nil, fmt.Errorf("EnterRaffle: %w", err)
	}
	if err := s.putRaffle(ctx, raffle); err != nil {
		return nil, fmt.Errorf("EnterRaffle: %w", err)
	}

	s.emitRaffleEvent(ctx, "RaffleEntered", raffle, actor, map[string]interface{}{
		"participant": actor.fullID, "entryIndex": len(raffle.Entries) - 1,
	})
	log.Infof("'%s' entered raffle (%d/%d)", actor.fullID, len(raffle.Entries), raffle.MaxEntries)
	return raffle, nil
}
