package contract

import (
	"encoding/json"
	"fmt"
	"strconv"

	"nftraffle/model"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Query Functions ---

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// GetRaffle returns the current state of a raffle.
func (s *RaffleSmartContract) GetRaffle(ctx contractapi.TransactionContextInterface, raffleID string) (*model.Raffle, error) {
	logger.Debugf("GetRaffle: Querying raffle '%s'", raffleID)
	raffle, err := s.getRaffleByID(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("GetRaffle: %w", err)
	}
	s.enrichRaffleAliases(NewIdentityManager(ctx), raffle)
	return raffle, nil
}

// GetRaffleHistory returns the raffle with every committed version of its record.
func (s *RaffleSmartContract) GetRaffleHistory(ctx contractapi.TransactionContextInterface, raffleID string) (*model.Raffle, error) {
	raffle, err := s.getRaffleByID(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("GetRaffleHistory: %w", err)
	}
	s.enrichRaffleAliases(NewIdentityManager(ctx), raffle)
	raffleKey, err := s.createRaffleCompositeKey(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("GetRaffleHistory: %w", err)
	}

	historyIter, err := ctx.GetStub().GetHistoryForKey(raffleKey)
	if err != nil {
		logger.Warningf("GetRaffleHistory: Failed to get history for raffle '%s': %v. Details returned without history.", raffleID, err)
		raffle.History = []model.HistoryEntry{}
		return raffle, nil
	}
	defer historyIter.Close()

	historyEntries := []model.HistoryEntry{}
	for historyIter.HasNext() {
		historyItem, iterErr := historyIter.Next()
		if iterErr != nil {
			logger.Warningf("GetRaffleHistory: Error iterating raffle history for '%s': %v. Skipping entry.", raffleID, iterErr)
			continue
		}
		entry := model.HistoryEntry{
			TxID:     historyItem.TxId,
			IsDelete: historyItem.IsDelete,
			Value:    string(historyItem.Value),
		}
		if historyItem.Timestamp != nil {
			entry.Timestamp = historyItem.Timestamp.AsTime()
		}
		if !historyItem.IsDelete {
			var past model.Raffle
			if err := json.Unmarshal(historyItem.Value, &past); err == nil {
				entry.Status = past.Status
				entry.IsActive = past.IsActive
				entry.Entries = len(past.Entries)
			}
		}
		historyEntries = append(historyEntries, entry)
	}
	raffle.History = historyEntries
	return raffle, nil
}

// GetAllRaffles returns one page of every raffle record on the ledger.
func (s *RaffleSmartContract) GetAllRaffles(ctx contractapi.TransactionContextInterface, pageSizeStr string, bookmark string) (*model.PaginatedRaffleResponse, error) {
	return s.queryRafflePage(ctx, "GetAllRaffles", pageSizeStr, bookmark, func(*model.Raffle) bool { return true })
}

// GetActiveRaffles returns the raffles on one page that still accept entries.
func (s *RaffleSmartContract) GetActiveRaffles(ctx contractapi.TransactionContextInterface, pageSizeStr string, bookmark string) (*model.PaginatedRaffleResponse, error) {
	return s.queryRafflePage(ctx, "GetActiveRaffles", pageSizeStr, bookmark, func(r *model.Raffle) bool { return r.IsActive })
}

// GetRafflesByCreator returns the raffles on one page initialized by creator, given
// as a full ID or a registered alias.
func (s *RaffleSmartContract) GetRafflesByCreator(ctx contractapi.TransactionContextInterface, creator string, pageSizeStr string, bookmark string) (*model.PaginatedRaffleResponse, error) {
	if err := s.validateRequiredString(creator, "creator", 4*maxStringInputLength); err != nil {
		return nil, fmt.Errorf("GetRafflesByCreator: %w", err)
	}
	creatorID, err := NewIdentityManager(ctx).ResolveIdentity(creator)
	if err != nil {
		return nil, fmt.Errorf("GetRafflesByCreator: %w", err)
	}
	return s.queryRafflePage(ctx, "GetRafflesByCreator", pageSizeStr, bookmark, func(r *model.Raffle) bool { return r.Creator == creatorID })
}

// GetMyRaffles returns the raffles on one page that the caller created.
func (s *RaffleSmartContract) GetMyRaffles(ctx contractapi.TransactionContextInterface, pageSizeStr string, bookmark string) (*model.PaginatedRaffleResponse, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetMyRaffles: failed to get actor info: %w", err)
	}
	return s.queryRafflePage(ctx, "GetMyRaffles", pageSizeStr, bookmark, func(r *model.Raffle) bool { return r.Creator == actor.fullID })
}

// GetMyEntries returns the raffles on one page that the caller entered.
func (s *RaffleSmartContract) GetMyEntries(ctx contractapi.TransactionContextInterface, pageSizeStr string, bookmark string) (*model.PaginatedRaffleResponse, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetMyEntries: failed to get actor info: %w", err)
	}
	return s.queryRafflePage(ctx, "GetMyEntries", pageSizeStr, bookmark, func(r *model.Raffle) bool { return hasEntered(r, actor.fullID) })
}

// GetAssetBalance returns the units of assetID held by owner.
func (s *RaffleSmartContract) GetAssetBalance(ctx contractapi.TransactionContextInterface, assetID string, owner string) (uint64, error) {
	units, err := NewCustodian(ctx.GetStub()).AssetUnits(assetID, owner)
	if err != nil {
		return 0, fmt.Errorf("GetAssetBalance: %w", err)
	}
	return units, nil
}

// GetPaymentBalance returns the payment balance of owner in base units.
func (s *RaffleSmartContract) GetPaymentBalance(ctx contractapi.TransactionContextInterface, owner string) (uint64, error) {
	amount, err := NewCustodian(ctx.GetStub()).PaymentAmount(owner)
	if err != nil {
		return 0, fmt.Errorf("GetPaymentBalance: %w", err)
	}
	return amount, nil
}

// GetCallerIdentity reports who the chaincode sees as the invoker.
func (s *RaffleSmartContract) GetCallerIdentity(ctx contractapi.TransactionContextInterface) (*model.CallerInfo, error) {
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetCallerIdentity: %w", err)
	}
	im := NewIdentityManager(ctx)
	isAdmin, err := im.IsAdmin(actor.fullID)
	if err != nil {
		return nil, fmt.Errorf("GetCallerIdentity: %w", err)
	}
	alias, err := im.AliasOf(actor.fullID)
	if err != nil {
		return nil, fmt.Errorf("GetCallerIdentity: %w", err)
	}
	return &model.CallerInfo{FullID: actor.fullID, OrganizationMSP: actor.mspID, Alias: alias, IsLedgerAdmin: isAdmin}, nil
}

// parsePageSize reads a client page size, defaulting to 10 and capping at 100.
func parsePageSize(op, pageSizeStr string) int32 {
	pageSize, err := strconv.ParseInt(pageSizeStr, 10, 32)
	if err != nil || pageSize <= 0 {
		if pageSizeStr != "" {
			logger.Warningf("%s: Invalid pageSize '%s', using default of %d", op, pageSizeStr, defaultPageSize)
		}
		return defaultPageSize
	}
	if pageSize > maxPageSize {
		logger.Warningf("%s: Requested pageSize %d exceeds max of %d. Capping.", op, pageSize, maxPageSize)
		return maxPageSize
	}
	return int32(pageSize)
}

// queryRafflePage scans one page of raffle keys and keeps the records matching keep.
// The page size bounds the records scanned, so a filtered page can hold fewer
// raffles than requested while NextBookmark is still set.
func (s *RaffleSmartContract) queryRafflePage(ctx contractapi.TransactionContextInterface, op, pageSizeStr, bookmark string, keep func(*model.Raffle) bool) (*model.PaginatedRaffleResponse, error) {
	pageSize := parsePageSize(op, pageSizeStr)
	logger.Debugf("%s: scanning raffles (pageSize: %d, bookmark: '%s')", op, pageSize, printableKey(bookmark))

	iterator, metadata, err := ctx.GetStub().GetStateByPartialCompositeKeyWithPagination(raffleObjectType, []string{}, pageSize, bookmark)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get raffles iterator: %w", op, err)
	}
	if iterator == nil {
		return nil, fmt.Errorf("%s: paginated raffle scan returned no iterator", op)
	}
	defer iterator.Close()

	raffles, err := s.processRaffleIterator(iterator)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	im := NewIdentityManager(ctx)
	page := []*model.Raffle{}
	for _, raffle := range raffles {
		if keep(raffle) {
			s.enrichRaffleAliases(im, raffle)
			page = append(page, raffle)
		}
	}
	return &model.PaginatedRaffleResponse{
		Raffles:      page,
		NextBookmark: metadata.GetBookmark(),
		FetchedCount: int32(len(page)),
	}, nil
}

func (s *RaffleSmartContract) processRaffleIterator(iterator shim.StateQueryIteratorInterface) ([]*model.Raffle, error) {
	raffles := []*model.Raffle{}
	for iterator.HasNext() {
		queryResponse, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate raffles: %w", err)
		}
		var raffle model.Raffle
		if err := json.Unmarshal(queryResponse.Value, &raffle); err != nil {
			logger.Warningf("processRaffleIterator: Failed to unmarshal raffle data for key '%s': %v. Skipping.", printableKey(queryResponse.Key), err)
			continue
		}
		ensureRaffleSchemaCompliance(&raffle)
		raffles = append(raffles, &raffle)
	}
	return raffles, nil
}
