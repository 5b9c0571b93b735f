package contract

import (
	"fmt"

	"nftraffle/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"go.uber.org/zap"
)

// --- Lifecycle: Creator Operations ---

// InitializeRaffle opens a raffle at raffleID and escrows one unit of nftAsset
// from the caller.
func (s *RaffleSmartContract) InitializeRaffle(ctx contractapi.TransactionContextInterface,
	raffleID string, nftAsset string, entryFee uint64, maxEntries int) (*model.Raffle, error) {

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("InitializeRaffle: failed to get actor info: %w", err)
	}
	log := logger.With(zap.String("raffleId", raffleID), zap.String("txId", ctx.GetStub().GetTxID()))
	log.Infof("Creator '%s' initializing raffle for asset '%s' (fee %d, max entries %d)", actor.fullID, nftAsset, entryFee, maxEntries)

	if err := s.validateRequiredString(raffleID, "raffleID", maxStringInputLength); err != nil {
		return nil, fmt.Errorf("InitializeRaffle: %w", err)
	}
	if err := s.validateRequiredString(nftAsset, "nftAsset", maxStringInputLength); err != nil {
		return nil, fmt.Errorf("InitializeRaffle: %w", err)
	}
	if err := validateRaffleTerms(entryFee, maxEntries); err != nil {
		return nil, fmt.Errorf("InitializeRaffle: %w", err)
	}

	raffleKey, err := s.createRaffleCompositeKey(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("InitializeRaffle: failed to create composite key for raffle '%s': %w", raffleID, err)
	}
	existing, err := ctx.GetStub().GetState(raffleKey)
	if err != nil {
		return nil, fmt.Errorf("InitializeRaffle: failed to check for existing raffle '%s': %w", raffleID, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("InitializeRaffle: %w", raffleErrorf(CodeDuplicateRaffle, "raffle '%s' already exists", raffleID))
	}

	custodian := NewCustodian(ctx.GetStub())
	custody := CustodyAccount(raffleID)
	if _, err := custodian.HoldAsset(nftAsset, actor.fullID, custody); err != nil {
		return nil, fmt.Errorf("InitializeRaffle: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("InitializeRaffle: %w", err)
	}

	raffle := &model.Raffle{
		ObjectType:     raffleObjectType,
		ID:             raffleID,
		Creator:        actor.fullID,
		CreatorMSP:     actor.mspID,
		NFTAsset:       nftAsset,
		EntryFee:       entryFee,
		MaxEntries:     maxEntries,
		Entries:        []string{},
		IsActive:       true,
		Status:         model.StatusActive,
		CustodyAccount: custody,
		CreatedAt:      now,
		LastUpdatedAt:  now,
		History:        []model.HistoryEntry{},
	}

	if err := custodian.Commit(); err != nil {
		return nil, fmt.Errorf("InitializeRaffle: %w", err)
	}
	if err := s.putRaffle(ctx, raffle); err != nil {
		return nil, fmt.Errorf("InitializeRaffle: %w", err)
	}

	s.emitRaffleEvent(ctx, "RaffleInitialized", raffle, actor, map[string]interface{}{
		"entryFee": entryFee, "custodyAccount": custody,
	})
	log.Infof("Raffle created successfully by '%s'", actor.fullID)
	return raffle, nil
}

// PickWinner draws one participant, releases the escrowed asset to them and pays
// the collected fees to the creator. Terminal.
func (s *RaffleSmartContract) PickWinner(ctx contractapi.TransactionContextInterface, raffleID string) (*model.Raffle, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("PickWinner: failed to get actor info: %w", err)
	}
	stub := ctx.GetStub()
	log := logger.With(zap.String("raffleId", raffleID), zap.String("txId", stub.GetTxID()))

	raffle, err := s.getRaffleByID(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("PickWinner: %w", err)
	}
	if err := requireCreator(raffle, actor); err != nil {
		return nil, fmt.Errorf("PickWinner: %w", err)
	}
	if err := requireActive(raffle); err != nil {
		return nil, fmt.Errorf("PickWinner: %w", err)
	}

	index, winner, err := selectWinner(ctx, s.indexDrawer(), raffle)
	if err != nil {
		return nil, fmt.Errorf("PickWinner: %w", err)
	}
	log.Infof("Drew entry %d of %d: '%s'", index, len(raffle.Entries), winner)

	custodian := NewCustodian(stub)
	handle := CustodyHandle{AssetID: raffle.NFTAsset, Custody: raffle.CustodyAccount}
	if err := custodian.ReleaseAsset(handle, winner); err != nil {
		return nil, fmt.Errorf("PickWinner: %w", err)
	}
	fees := raffle.CollectedFees
	if err := custodian.ReleasePayment(fees, raffle.CustodyAccount, raffle.Creator); err != nil {
		return nil, fmt.Errorf("PickWinner: %w", err)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("PickWinner: %w", err)
	}
	raffle.IsActive = false
	raffle.Status = model.StatusDrawn
	raffle.CollectedFees = 0
	raffle.Draw = &model.DrawResult{
		Winner:      winner,
		WinnerIndex: index,
		ReceiptID:   drawReceiptID(stub.GetChannelID(), stub.GetTxID(), raffle.ID),
		DrawTxID:    stub.GetTxID(),
		FeesPaid:    fees,
		DrawnAt:     now,
	}
	raffle.LastUpdatedAt = now
	raffle.ClosedAt = now

	if err := custodian.Commit(); err != nil {
		return nil, fmt.Errorf("PickWinner: %w", err)
	}
	if err := s.putRaffle(ctx, raffle); err != nil {
		return nil, fmt.Errorf("PickWinner: %w", err)
	}

	s.emitRaffleEvent(ctx, "RaffleWinnerDrawn", raffle, actor, map[string]interface{}{
		"winner": winner, "winnerIndex": index, "feesPaid": fees, "receiptId": raffle.Draw.ReceiptID,
	})
	log.Infof("Asset '%s' released to winner '%s', %d paid to creator", raffle.NFTAsset, winner, fees)
	return raffle, nil
}

// CloseRaffle cancels an active raffle without a draw. The asset goes back to the
// creator and every participant is refunded their entry fee. Terminal.
func (s *RaffleSmartContract) CloseRaffle(ctx contractapi.TransactionContextInterface, raffleID string) (*model.Raffle, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("CloseRaffle: failed to get actor info: %w", err)
	}
	log := logger.With(zap.String("raffleId", raffleID), zap.String("txId", ctx.GetStub().GetTxID()))

	raffle, err := s.getRaffleByID(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("CloseRaffle: %w", err)
	}
	if err := requireCreator(raffle, actor); err != nil {
		return nil, fmt.Errorf("CloseRaffle: %w", err)
	}
	if err := requireActive(raffle); err != nil {
		return nil, fmt.Errorf("CloseRaffle: %w", err)
	}

	custodian := NewCustodian(ctx.GetStub())
	handle := CustodyHandle{AssetID: raffle.NFTAsset, Custody: raffle.CustodyAccount}
	if err := custodian.ReleaseAsset(handle, raffle.Creator); err != nil {
		return nil, fmt.Errorf("CloseRaffle: %w", err)
	}
	var refunded uint64
	for _, participant := range raffle.Entries {
		if err := custodian.ReleasePayment(raffle.EntryFee, raffle.CustodyAccount, participant); err != nil {
			return nil, fmt.Errorf("CloseRaffle: refund to '%s': %w", participant, err)
		}
		refunded += raffle.EntryFee
	}
	if refunded != raffle.CollectedFees {
		log.Warningf("Refunded %d but record held %d in collected fees", refunded, raffle.CollectedFees)
	}

	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("CloseRaffle: %w", err)
	}
	raffle.IsActive = false
	raffle.Status = model.StatusCancelled
	raffle.CollectedFees = 0
	raffle.LastUpdatedAt = now
	raffle.ClosedAt = now

	if err := custodian.Commit(); err != nil {
		return nil, fmt.Errorf("CloseRaffle: %w", err)
	}
	if err := s.putRaffle(ctx, raffle); err != nil {
		return nil, fmt.Errorf("CloseRaffle: %w", err)
	}

	s.emitRaffleEvent(ctx, "RaffleClosed", raffle, actor, map[string]interface{}{
		"refundedParticipants": len(raffle.Entries), "refundedAmount": refunded,
	})
	log.Infof("Raffle closed by creator, asset '%s' returned and %d refunded", raffle.NFTAsset, refunded)
	return raffle, nil
}
