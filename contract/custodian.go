package contract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"nftraffle/model"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric/common/flogging"
	"go.uber.org/zap"
)

var custodyLogger = flogging.MustGetLogger("raffle.custodian")

// Object types for balance composite keys.
const (
	assetBalanceObjectType   = "AssetBalance"   // Attributes: assetID, owner.
	paymentBalanceObjectType = "PaymentBalance" // Attributes: owner.
	custodyAccountPrefix     = "escrow::"
)

// CustodyAccount returns the neutral account that escrows a raffle's asset and fees.
func CustodyAccount(raffleID string) string {
	return custodyAccountPrefix + raffleID
}

// CustodyHandle identifies one escrowed asset unit.
type CustodyHandle struct {
	AssetID string
	Custody string
}

// Custodian moves asset units and payments between ledger balances.
//
// Fabric does not return a transaction's own writes from GetState, so every balance
// is read once into a staging cache and all changes are written by Commit. Nothing
// touches the world state before Commit, which makes a failed operation leave the
// ledger exactly as it was.
type Custodian struct {
	stub     shim.ChaincodeStubInterface
	assets   map[string]*model.AssetBalance
	payments map[string]*model.PaymentBalance
	dirty    map[string]bool
}

// NewCustodian creates a custodian bound to the transaction's stub.
func NewCustodian(stub shim.ChaincodeStubInterface) *Custodian {
	return &Custodian{
		stub:     stub,
		assets:   make(map[string]*model.AssetBalance),
		payments: make(map[string]*model.PaymentBalance),
		dirty:    make(map[string]bool),
	}
}

func (c *Custodian) assetBalance(assetID, owner string) (string, *model.AssetBalance, error) {
	key, err := c.stub.CreateCompositeKey(assetBalanceObjectType, []string{assetID, owner})
	if err != nil {
		return "", nil, raffleErrorf(CodeInvalidParameter, "asset %q of owner %q cannot be used as a key: %v", assetID, owner, err)
	}
	if bal, ok := c.assets[key]; ok {
		return key, bal, nil
	}
	bal := &model.AssetBalance{ObjectType: assetBalanceObjectType, AssetID: assetID, Owner: owner}
	raw, err := c.stub.GetState(key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read asset balance '%s'/'%s': %w", assetID, owner, err)
	}
	if raw != nil {
		if err := json.Unmarshal(raw, bal); err != nil {
			return "", nil, fmt.Errorf("failed to unmarshal asset balance '%s'/'%s': %w", assetID, owner, err)
		}
	}
	c.assets[key] = bal
	return key, bal, nil
}

func (c *Custodian) paymentBalance(owner string) (string, *model.PaymentBalance, error) {
	key, err := c.stub.CreateCompositeKey(paymentBalanceObjectType, []string{owner})
	if err != nil {
		return "", nil, raffleErrorf(CodeInvalidParameter, "owner %q cannot be used as a key: %v", owner, err)
	}
	if bal, ok := c.payments[key]; ok {
		return key, bal, nil
	}
	bal := &model.PaymentBalance{ObjectType: paymentBalanceObjectType, Owner: owner}
	raw, err := c.stub.GetState(key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read payment balance '%s': %w", owner, err)
	}
	if raw != nil {
		if err := json.Unmarshal(raw, bal); err != nil {
			return "", nil, fmt.Errorf("failed to unmarshal payment balance '%s': %w", owner, err)
		}
	}
	c.payments[key] = bal
	return key, bal, nil
}

// AssetUnits returns the staged number of units of assetID held by owner.
func (c *Custodian) AssetUnits(assetID, owner string) (uint64, error) {
	_, bal, err := c.assetBalance(assetID, owner)
	if err != nil {
		return 0, err
	}
	return bal.Units, nil
}

// PaymentAmount returns the staged payment balance of owner.
func (c *Custodian) PaymentAmount(owner string) (uint64, error) {
	_, bal, err := c.paymentBalance(owner)
	if err != nil {
		return 0, err
	}
	return bal.Amount, nil
}

// moveAsset transfers units, failing with code when from holds too few.
func (c *Custodian) moveAsset(assetID, from, to string, units uint64, code ErrorCode) error {
	if from == to {
		return fmt.Errorf("cannot move asset '%s' from '%s' to itself", assetID, from)
	}
	fromKey, fromBal, err := c.assetBalance(assetID, from)
	if err != nil {
		return err
	}
	toKey, toBal, err := c.assetBalance(assetID, to)
	if err != nil {
		return err
	}
	if fromBal.Units < units {
		return raffleErrorf(code, "'%s' holds %d unit(s) of asset '%s', %d required", from, fromBal.Units, assetID, units)
	}
	if toBal.Units > ^uint64(0)-units {
		return raffleErrorf(CodeTransferFailed, "asset balance of '%s' for '%s' would overflow", to, assetID)
	}
	fromBal.Units -= units
	toBal.Units += units
	c.dirty[fromKey] = true
	c.dirty[toKey] = true
	return nil
}

// movePayment transfers base units, failing with code when from holds too little.
func (c *Custodian) movePayment(amount uint64, from, to string, code ErrorCode) error {
	if amount == 0 {
		return nil
	}
	if from == to {
		return fmt.Errorf("cannot move payment from '%s' to itself", from)
	}
	fromKey, fromBal, err := c.paymentBalance(from)
	if err != nil {
		return err
	}
	toKey, toBal, err := c.paymentBalance(to)
	if err != nil {
		return err
	}
	if fromBal.Amount < amount {
		return raffleErrorf(code, "'%s' holds %d, %d required", from, fromBal.Amount, amount)
	}
	if toBal.Amount > ^uint64(0)-amount {
		return raffleErrorf(CodeTransferFailed, "payment balance of '%s' would overflow", to)
	}
	fromBal.Amount -= amount
	toBal.Amount += amount
	c.dirty[fromKey] = true
	c.dirty[toKey] = true
	return nil
}

// HoldAsset moves one unit of assetID from owner into custody.
func (c *Custodian) HoldAsset(assetID, owner, custody string) (CustodyHandle, error) {
	if err := c.moveAsset(assetID, owner, custody, 1, CodeInsufficientAssetBalance); err != nil {
		return CustodyHandle{}, err
	}
	custodyLogger.Debugf("HoldAsset: staged '%s' from '%s' into '%s'", assetID, owner, custody)
	return CustodyHandle{AssetID: assetID, Custody: custody}, nil
}

// ReleaseAsset moves the escrowed unit identified by handle to owner.
func (c *Custodian) ReleaseAsset(handle CustodyHandle, owner string) error {
	if err := c.moveAsset(handle.AssetID, handle.Custody, owner, 1, CodeTransferFailed); err != nil {
		return err
	}
	custodyLogger.Debugf("ReleaseAsset: staged '%s' from '%s' to '%s'", handle.AssetID, handle.Custody, owner)
	return nil
}

// HoldPayment collects amount from payer into custody.
func (c *Custodian) HoldPayment(amount uint64, payer, custody string) error {
	return c.movePayment(amount, payer, custody, CodePaymentFailed)
}

// ReleasePayment pays amount out of custody to payee.
func (c *Custodian) ReleasePayment(amount uint64, custody, payee string) error {
	return c.movePayment(amount, custody, payee, CodeTransferFailed)
}

// MintAsset adds units of a new or existing asset to owner.
func (c *Custodian) MintAsset(assetID, owner string, units uint64) error {
	key, bal, err := c.assetBalance(assetID, owner)
	if err != nil {
		return err
	}
	if bal.Units > ^uint64(0)-units {
		return raffleErrorf(CodeInvalidParameter, "asset balance of '%s' for '%s' would overflow", owner, assetID)
	}
	bal.Units += units
	c.dirty[key] = true
	return nil
}

// CreditPayment adds amount to owner's payment balance.
func (c *Custodian) CreditPayment(owner string, amount uint64) error {
	key, bal, err := c.paymentBalance(owner)
	if err != nil {
		return err
	}
	if bal.Amount > ^uint64(0)-amount {
		return raffleErrorf(CodeInvalidParameter, "payment balance of '%s' would overflow", owner)
	}
	bal.Amount += amount
	c.dirty[key] = true
	return nil
}

// Commit writes every staged balance in key order and clears the dirty set.
func (c *Custodian) Commit() error {
	keys := make([]string, 0, len(c.dirty))
	for key := range c.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var value interface{}
		if bal, ok := c.assets[key]; ok {
			value = bal
		} else {
			value = c.payments[key]
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal balance '%s': %w", printableKey(key), err)
		}
		if err := c.stub.PutState(key, raw); err != nil {
			return fmt.Errorf("failed to save balance '%s': %w", printableKey(key), err)
		}
	}
	if len(keys) > 0 {
		custodyLogger.With(zap.String("txId", c.stub.GetTxID()), zap.Int("balances", len(keys))).Debug("Commit: balances written")
	}
	c.dirty = make(map[string]bool)
	return nil
}

// printableKey replaces the composite key separators for log output.
func printableKey(key string) string {
	return strings.Trim(strings.ReplaceAll(key, "\x00", "/"), "/")
}
