package contract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"nftraffle/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Core Helper Methods (used across multiple operations) ---

// getCurrentTxTimestamp retrieves the current transaction timestamp from the stub.
func (s *RaffleSmartContract) getCurrentTxTimestamp(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	return ts.AsTime(), nil
}

func (s *RaffleSmartContract) getCurrentActorInfo(ctx contractapi.TransactionContextInterface) (*actorInfo, error) {
	im := NewIdentityManager(ctx)
	fullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's FullID: %w", err)
	}
	mspID, err := ctx.GetClientIdentity().GetMSPID()
	if err != nil {
		return nil, fmt.Errorf("failed to get current actor's MSPID: %w", err)
	}
	return &actorInfo{fullID: fullID, mspID: mspID}, nil
}

// createRaffleCompositeKey creates the composite key of a raffle slot.
func (s *RaffleSmartContract) createRaffleCompositeKey(ctx contractapi.TransactionContextInterface, raffleID string) (string, error) {
	if strings.TrimSpace(raffleID) == "" {
		return "", raffleErrorf(CodeInvalidParameter, "raffleID cannot be empty")
	}
	key, err := ctx.GetStub().CreateCompositeKey(raffleObjectType, []string{raffleID})
	if err != nil {
		return "", raffleErrorf(CodeInvalidParameter, "raffleID %q cannot be used as a key: %v", raffleID, err)
	}
	return key, nil
}

// --- Validation Helper Functions ---
func (s *RaffleSmartContract) validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return raffleErrorf(CodeInvalidParameter, "%s cannot be empty", field)
	}
	if len(input) > max {
		return raffleErrorf(CodeInvalidParameter, "%s exceeds maximum length of %d", field, max)
	}
	if strings.TrimSpace(input) != input {
		return raffleErrorf(CodeInvalidParameter, "%s cannot have leading or trailing whitespace", field)
	}
	return validateKeyAttribute(input, field)
}

// validateKeyAttribute rejects values that cannot be a composite key attribute.
func validateKeyAttribute(input, field string) error {
	if !utf8.ValidString(input) {
		return raffleErrorf(CodeInvalidParameter, "%s is not valid UTF-8", field)
	}
	if strings.ContainsRune(input, 0) || strings.ContainsRune(input, utf8.MaxRune) {
		return raffleErrorf(CodeInvalidParameter, "%s contains a reserved character", field)
	}
	return nil
}

func validateRaffleTerms(entryFee uint64, maxEntries int) error {
	if entryFee == 0 {
		return raffleErrorf(CodeInvalidParameter, "entryFee must be positive")
	}
	if maxEntries <= 0 {
		return raffleErrorf(CodeInvalidParameter, "maxEntries must be positive")
	}
	if maxEntries > maxEntriesLimit {
		return raffleErrorf(CodeInvalidParameter, "maxEntries %d exceeds limit of %d", maxEntries, maxEntriesLimit)
	}
	// The fee pool is summed into one balance; reject terms that could overflow it.
	if entryFee > ^uint64(0)/uint64(maxEntries) {
		return raffleErrorf(CodeInvalidParameter, "entryFee %d times maxEntries %d overflows", entryFee, maxEntries)
	}
	return nil
}

// getRaffleByID reads and unmarshals a raffle. An empty slot is RaffleNotFound.
func (s *RaffleSmartContract) getRaffleByID(ctx contractapi.TransactionContextInterface, raffleID string) (*model.Raffle, error) {
	raffleKey, err := s.createRaffleCompositeKey(ctx, raffleID)
	if err != nil {
		return nil, err
	}

	raffleBytes, err := ctx.GetStub().GetState(raffleKey)
	if err != nil {
		return nil, fmt.Errorf("getRaffleByID: failed to read raffle '%s' from ledger: %w", raffleID, err)
	}
	if raffleBytes == nil {
		return nil, raffleErrorf(CodeRaffleNotFound, "raffle '%s' does not exist", raffleID)
	}

	var raffle model.Raffle
	if err := json.Unmarshal(raffleBytes, &raffle); err != nil {
		return nil, fmt.Errorf("getRaffleByID: failed to unmarshal raffle '%s' data: %w", raffleID, err)
	}
	ensureRaffleSchemaCompliance(&raffle)
	return &raffle, nil
}

func (s *RaffleSmartContract) putRaffle(ctx contractapi.TransactionContextInterface, raffle *model.Raffle) error {
	raffleKey, err := s.createRaffleCompositeKey(ctx, raffle.ID)
	if err != nil {
		return err
	}
	ensureRaffleSchemaCompliance(raffle)
	// History is a query-time projection and is never persisted.
	stored := *raffle
	stored.History = []model.HistoryEntry{}
	stored.CreatorAlias = ""
	if raffle.Draw != nil {
		draw := *raffle.Draw
		draw.WinnerAlias = ""
		stored.Draw = &draw
	}
	raffleBytes, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal raffle '%s': %w", raffle.ID, err)
	}
	if err := ctx.GetStub().PutState(raffleKey, raffleBytes); err != nil {
		return fmt.Errorf("failed to save raffle '%s' to ledger: %w", raffle.ID, err)
	}
	return nil
}

// requireCreator rejects callers other than the raffle's creator.
func requireCreator(raffle *model.Raffle, actor *actorInfo) error {
	if raffle.Creator != actor.fullID {
		return raffleErrorf(CodeUnauthorized, "caller '%s' is not the creator of raffle '%s'", actor.fullID, raffle.ID)
	}
	return nil
}

func requireActive(raffle *model.Raffle) error {
	if !raffle.IsActive {
		return raffleErrorf(CodeRaffleNotActive, "raffle '%s' is %s", raffle.ID, raffle.Status)
	}
	return nil
}

func hasEntered(raffle *model.Raffle, participant string) bool {
	for _, entry := range raffle.Entries {
		if entry == participant {
			return true
		}
	}
	return false
}

// ensureRaffleSchemaCompliance replaces nil slices so the record always matches
// the contract metadata schema (null arrays fail response validation).
func ensureRaffleSchemaCompliance(raffle *model.Raffle) {
	if raffle == nil {
		return
	}
	if raffle.ObjectType == "" {
		raffle.ObjectType = raffleObjectType
	}
	if raffle.Entries == nil {
		raffle.Entries = []string{}
	}
	if raffle.History == nil {
		raffle.History = []model.HistoryEntry{}
	}
}

// enrichRaffleAliases fills the display aliases of the creator and winner. Lookup
// failures only cost the alias.
func (s *RaffleSmartContract) enrichRaffleAliases(im *IdentityManager, raffle *model.Raffle) {
	if alias, err := im.AliasOf(raffle.Creator); err == nil {
		raffle.CreatorAlias = alias
	} else {
		logger.Debugf("enrichRaffleAliases: no alias for creator of '%s': %v", raffle.ID, err)
	}
	if raffle.Draw == nil {
		return
	}
	if alias, err := im.AliasOf(raffle.Draw.Winner); err == nil {
		raffle.Draw.WinnerAlias = alias
	}
}

// emitRaffleEvent sends a chaincode event. Only one event survives per transaction,
// so each operation emits exactly once after its writes are staged.
func (s *RaffleSmartContract) emitRaffleEvent(ctx contractapi.TransactionContextInterface, eventName string, raffle *model.Raffle, actor *actorInfo, additionalPayload map[string]interface{}) {
	if raffle == nil || actor == nil {
		logger.Errorf("emitRaffleEvent: cannot emit event, raffle or actor is nil. Event: %s", eventName)
		return
	}
	payload := map[string]interface{}{
		"raffleId":             raffle.ID,
		"creator":              raffle.Creator,
		"nftAsset":             raffle.NFTAsset,
		"status":               raffle.Status,
		"isActive":             raffle.IsActive,
		"entryCount":           len(raffle.Entries),
		"maxEntries":           raffle.MaxEntries,
		"actorFullId":          actor.fullID,
		"transactionTimestamp": raffle.LastUpdatedAt.Format(time.RFC3339),
	}
	for k, v := range additionalPayload {
		payload[k] = v
	}
	eventBytes, err := json.Marshal(payload)
	if err != nil {
		logger.Warningf("emitRaffleEvent: Failed to marshal event payload for event '%s' on raffle '%s': %v", eventName, raffle.ID, err)
		return
	}
	if errSet := ctx.GetStub().SetEvent(eventName, eventBytes); errSet != nil {
		logger.Warningf("emitRaffleEvent: Failed to set event '%s' for raffle '%s': %v", eventName, raffle.ID, errSet)
	}
}
