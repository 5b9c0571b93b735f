package contract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// --- Ledger Administration ---
//
// The raffle needs assets and payment balances to exist before anything can be
// escrowed. Admins stand in for the token issuer: they mint asset units and credit
// payment balances.

// BootstrapLedger makes the caller the first ledger admin. It fails once any admin exists.
func (s *RaffleSmartContract) BootstrapLedger(ctx contractapi.TransactionContextInterface) error {
	logger.Info("Attempting to bootstrap ledger with initial admin...")
	im := NewIdentityManager(ctx)

	anyAdminAlreadyExists, err := im.AnyAdminExists()
	if err != nil {
		return fmt.Errorf("BootstrapLedger: failed to check if any admin exists: %w", err)
	}
	if anyAdminAlreadyExists {
		return errors.New("system already has admins or is bootstrapped. BootstrapLedger should not be re-run")
	}

	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("BootstrapLedger: failed to get caller identity for bootstrap: %w", err)
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("BootstrapLedger: %w", err)
	}
	if err := im.putAdmin(actor.fullID, actor.mspID, actor.fullID, now); err != nil {
		return fmt.Errorf("BootstrapLedger: %w", err)
	}
	logger.Infof("BootstrapLedger: Identity '%s' is now a ledger admin.", actor.fullID)
	return nil
}

// GrantLedgerAdmin gives target, a full ID or registered alias, the admin flag.
// Caller must be an admin.
func (s *RaffleSmartContract) GrantLedgerAdmin(ctx contractapi.TransactionContextInterface, target string, targetMSP string) error {
	im := NewIdentityManager(ctx)
	if err := im.RequireAdmin(); err != nil {
		return fmt.Errorf("GrantLedgerAdmin: %w", err)
	}
	if err := s.validateRequiredString(target, "target", 4*maxStringInputLength); err != nil {
		return fmt.Errorf("GrantLedgerAdmin: %w", err)
	}
	targetID, err := im.ResolveIdentity(target)
	if err != nil {
		return fmt.Errorf("GrantLedgerAdmin: %w", err)
	}
	actor, err := s.getCurrentActorInfo(ctx)
	if err != nil {
		return fmt.Errorf("GrantLedgerAdmin: %w", err)
	}
	now, err := s.getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("GrantLedgerAdmin: %w", err)
	}
	if err := im.putAdmin(targetID, targetMSP, actor.fullID, now); err != nil {
		return fmt.Errorf("GrantLedgerAdmin: %w", err)
	}
	logger.Infof("GrantLedgerAdmin: '%s' granted admin to '%s'", actor.fullID, targetID)
	return nil
}

// RevokeLedgerAdmin removes the admin flag from target, a full ID or registered
// alias. Caller must be an admin; the last admin cannot be revoked.
func (s *RaffleSmartContract) RevokeLedgerAdmin(ctx contractapi.TransactionContextInterface, target string) error {
	im := NewIdentityManager(ctx)
	if err := im.RequireAdmin(); err != nil {
		return fmt.Errorf("RevokeLedgerAdmin: %w", err)
	}
	if err := s.validateRequiredString(target, "target", 4*maxStringInputLength); err != nil {
		return fmt.Errorf("RevokeLedgerAdmin: %w", err)
	}
	targetID, err := im.ResolveIdentity(target)
	if err != nil {
		return fmt.Errorf("RevokeLedgerAdmin: %w", err)
	}
	if err := im.RemoveAdmin(targetID); err != nil {
		return fmt.Errorf("RevokeLedgerAdmin: %w", err)
	}
	callerID, _ := im.GetCurrentIdentityFullID()
	logger.Infof("RevokeLedgerAdmin: '%s' revoked admin from '%s'", callerID, targetID)
	return nil
}

// IssueAsset mints units of assetID to owner, a full ID or registered alias.
// Caller must be an admin.
func (s *RaffleSmartContract) IssueAsset(ctx contractapi.TransactionContextInterface, assetID string, owner string, units uint64) error {
	if err := NewIdentityManager(ctx).RequireAdmin(); err != nil {
		return fmt.Errorf("IssueAsset: %w", err)
	}
	if err := s.validateRequiredString(assetID, "assetID", maxStringInputLength); err != nil {
		return fmt.Errorf("IssueAsset: %w", err)
	}
	if err := s.validateRequiredString(owner, "owner", 4*maxStringInputLength); err != nil {
		return fmt.Errorf("IssueAsset: %w", err)
	}
	if err := rejectCustodyAccount(owner); err != nil {
		return fmt.Errorf("IssueAsset: %w", err)
	}
	ownerID, err := NewIdentityManager(ctx).ResolveIdentity(owner)
	if err != nil {
		return fmt.Errorf("IssueAsset: %w", err)
	}
	if units == 0 {
		return fmt.Errorf("IssueAsset: %w", raffleErrorf(CodeInvalidParameter, "units must be positive"))
	}

	custodian := NewCustodian(ctx.GetStub())
	if err := custodian.MintAsset(assetID, ownerID, units); err != nil {
		return fmt.Errorf("IssueAsset: %w", err)
	}
	if err := custodian.Commit(); err != nil {
		return fmt.Errorf("IssueAsset: %w", err)
	}
	logger.Infof("IssueAsset: %d unit(s) of '%s' issued to '%s'", units, assetID, ownerID)
	return nil
}

// CreditPayment adds amount base units to the payment balance of owner, a full ID
// or registered alias. Caller must be an admin.
func (s *RaffleSmartContract) CreditPayment(ctx contractapi.TransactionContextInterface, owner string, amount uint64) error {
	if err := NewIdentityManager(ctx).RequireAdmin(); err != nil {
		return fmt.Errorf("CreditPayment: %w", err)
	}
	if err := s.validateRequiredString(owner, "owner", 4*maxStringInputLength); err != nil {
		return fmt.Errorf("CreditPayment: %w", err)
	}
	if err := rejectCustodyAccount(owner); err != nil {
		return fmt.Errorf("CreditPayment: %w", err)
	}
	ownerID, err := NewIdentityManager(ctx).ResolveIdentity(owner)
	if err != nil {
		return fmt.Errorf("CreditPayment: %w", err)
	}
	if amount == 0 {
		return fmt.Errorf("CreditPayment: %w", raffleErrorf(CodeInvalidParameter, "amount must be positive"))
	}

	custodian := NewCustodian(ctx.GetStub())
	if err := custodian.CreditPayment(ownerID, amount); err != nil {
		return fmt.Errorf("CreditPayment: %w", err)
	}
	if err := custodian.Commit(); err != nil {
		return fmt.Errorf("CreditPayment: %w", err)
	}
	logger.Infof("CreditPayment: %d credited to '%s'", amount, ownerID)
	return nil
}

// rejectCustodyAccount keeps escrow balances reachable only through raffle transitions.
func rejectCustodyAccount(owner string) error {
	if strings.HasPrefix(owner, custodyAccountPrefix) {
		return raffleErrorf(CodeInvalidParameter, "'%s' is a custody account", owner)
	}
	return nil
}
