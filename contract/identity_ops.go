package contract

import (
	"fmt"

	"nftraffle/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Identity Aliases ---

// RegisterAlias sets the caller's display alias. Aliases are unique; registering a
// new one releases the caller's previous alias.
func (s *RaffleSmartContract) RegisterAlias(ctx contractapi.TransactionContextInterface, alias string) (*model.IdentityInfo, error) {
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("RegisterAlias: %w", err)
	}
	info, err := NewIdentityManager(ctx).RegisterAlias(alias, now)
	if err != nil {
		return nil, fmt.Errorf("RegisterAlias: %w", err)
	}
	return info, nil
}

// GetFullIDForAlias resolves a registered alias to its full X.509 ID.
func (s *RaffleSmartContract) GetFullIDForAlias(ctx contractapi.TransactionContextInterface, alias string) (string, error) {
	fullID, err := NewIdentityManager(ctx).ResolveIdentity(alias)
	if err != nil {
		return "", fmt.Errorf("GetFullIDForAlias: %w", err)
	}
	return fullID, nil
}
