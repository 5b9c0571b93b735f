package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nftraffle/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var idLogger = flogging.MustGetLogger("raffle.identity")

// Object types for identity composite keys.
const (
	adminFlagObjectType = "AdminFlag" // Attribute: FullID.
	identityObjectType  = "Identity"  // Attribute: FullID. Value: IdentityInfo.
	aliasObjectType     = "Alias"     // Attribute: ShortName. Value: raw FullID bytes.
	maxAliasLength      = 64
)

// IdentityManager resolves the transaction invoker and manages ledger administrators.
type IdentityManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewIdentityManager creates a new instance of IdentityManager.
func NewIdentityManager(ctx contractapi.TransactionContextInterface) *IdentityManager {
	return &IdentityManager{Ctx: ctx}
}

func isValidX509ID(id string) bool {
	return strings.HasPrefix(id, "x509::") || strings.HasPrefix(id, "eDUwOTo6") // "eDUwOTo6" is "x509::" base64 encoded
}

func (im *IdentityManager) createAdminFlagCompositeKey(fullID string) (string, error) {
	return im.Ctx.GetStub().CreateCompositeKey(adminFlagObjectType, []string{fullID})
}

func (im *IdentityManager) createIdentityCompositeKey(fullID string) (string, error) {
	return im.Ctx.GetStub().CreateCompositeKey(identityObjectType, []string{fullID})
}

func (im *IdentityManager) createAliasCompositeKey(shortName string) (string, error) {
	return im.Ctx.GetStub().CreateCompositeKey(aliasObjectType, []string{shortName})
}

// GetCurrentIdentityFullID retrieves the full X.509 ID of the current transactor.
func (im *IdentityManager) GetCurrentIdentityFullID() (string, error) {
	clientIdentity := im.Ctx.GetClientIdentity()
	if clientIdentity == nil {
		return "", errors.New("client identity is nil from context")
	}
	id, err := clientIdentity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity ID from context: %w", err)
	}
	if id == "" {
		return "", errors.New("client identity ID from context is empty")
	}
	if !isValidX509ID(id) {
		idLogger.Warningf("Current client ID '%s' does not appear to be a standard X.509 format.", id)
	}
	return id, nil
}

// IsAdmin reports whether fullID carries the ledger admin flag.
func (im *IdentityManager) IsAdmin(fullID string) (bool, error) {
	key, err := im.createAdminFlagCompositeKey(fullID)
	if err != nil {
		return false, fmt.Errorf("failed to create admin flag key for '%s': %w", fullID, err)
	}
	raw, err := im.Ctx.GetStub().GetState(key)
	if err != nil {
		return false, fmt.Errorf("failed to read admin flag for '%s': %w", fullID, err)
	}
	return raw != nil, nil
}

func (im *IdentityManager) IsCurrentUserAdmin() (bool, error) {
	callerFullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return false, fmt.Errorf("failed to get current user's FullID for admin check: %w", err)
	}
	return im.IsAdmin(callerFullID)
}

// AnyAdminExists checks if any admin flag is set on the ledger.
func (im *IdentityManager) AnyAdminExists() (bool, error) {
	iterator, err := im.Ctx.GetStub().GetStateByPartialCompositeKey(adminFlagObjectType, []string{})
	if err != nil {
		return false, fmt.Errorf("failed to query admin records for AnyAdminExists: %w", err)
	}
	defer iterator.Close()
	return iterator.HasNext(), nil
}

// RequireAdmin fails with Unauthorized unless the caller is a ledger admin.
func (im *IdentityManager) RequireAdmin() error {
	isAdmin, err := im.IsCurrentUserAdmin()
	if err != nil {
		return fmt.Errorf("failed to check admin status: %w", err)
	}
	if !isAdmin {
		callerID, _ := im.GetCurrentIdentityFullID()
		return raffleErrorf(CodeUnauthorized, "caller '%s' is not a ledger admin", callerID)
	}
	return nil
}

// putAdmin writes the admin record for target.
func (im *IdentityManager) putAdmin(target, mspID, grantedBy string, grantedAt time.Time) error {
	key, err := im.createAdminFlagCompositeKey(target)
	if err != nil {
		return fmt.Errorf("failed to create admin flag key for '%s': %w", target, err)
	}
	record := model.AdminRecord{
		ObjectType:      adminFlagObjectType,
		FullID:          target,
		OrganizationMSP: mspID,
		GrantedBy:       grantedBy,
		GrantedAt:       grantedAt,
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal admin record for '%s': %w", target, err)
	}
	if err := im.Ctx.GetStub().PutState(key, raw); err != nil {
		return fmt.Errorf("failed to set admin flag for '%s': %w", target, err)
	}
	return nil
}

// RemoveAdmin clears the admin flag of target. The caller must be an admin and the
// ledger always keeps at least one admin.
func (im *IdentityManager) RemoveAdmin(target string) error {
	if err := im.RequireAdmin(); err != nil {
		return err
	}
	isTargetAdmin, err := im.IsAdmin(target)
	if err != nil {
		return err
	}
	if !isTargetAdmin {
		return raffleErrorf(CodeInvalidParameter, "'%s' is not a ledger admin", target)
	}
	count, err := im.countAdmins()
	if err != nil {
		return err
	}
	if count <= 1 {
		return raffleErrorf(CodeInvalidParameter, "cannot revoke '%s': the ledger must keep at least one admin", target)
	}
	key, err := im.createAdminFlagCompositeKey(target)
	if err != nil {
		return fmt.Errorf("failed to create admin flag key for '%s': %w", target, err)
	}
	if err := im.Ctx.GetStub().DelState(key); err != nil {
		return fmt.Errorf("failed to delete admin flag for '%s': %w", target, err)
	}
	idLogger.Infof("Admin flag removed for '%s' (%d admin(s) remain)", target, count-1)
	return nil
}

func (im *IdentityManager) countAdmins() (int, error) {
	iterator, err := im.Ctx.GetStub().GetStateByPartialCompositeKey(adminFlagObjectType, []string{})
	if err != nil {
		return 0, fmt.Errorf("failed to query admin records: %w", err)
	}
	defer iterator.Close()
	count := 0
	for iterator.HasNext() {
		if _, err := iterator.Next(); err != nil {
			return 0, fmt.Errorf("failed to iterate admin records: %w", err)
		}
		count++
	}
	return count, nil
}

func validateAlias(shortName string) error {
	if strings.TrimSpace(shortName) == "" {
		return raffleErrorf(CodeInvalidParameter, "alias cannot be empty")
	}
	if strings.TrimSpace(shortName) != shortName {
		return raffleErrorf(CodeInvalidParameter, "alias cannot have leading or trailing whitespace")
	}
	if len(shortName) > maxAliasLength {
		return raffleErrorf(CodeInvalidParameter, "alias exceeds maximum length of %d", maxAliasLength)
	}
	if isValidX509ID(shortName) || strings.HasPrefix(shortName, custodyAccountPrefix) {
		return raffleErrorf(CodeInvalidParameter, "alias '%s' uses a reserved prefix", shortName)
	}
	return validateKeyAttribute(shortName, "alias")
}

// RegisterAlias maps the caller to shortName, replacing any previous alias.
func (im *IdentityManager) RegisterAlias(shortName string, now time.Time) (*model.IdentityInfo, error) {
	if err := validateAlias(shortName); err != nil {
		return nil, err
	}
	fullID, err := im.GetCurrentIdentityFullID()
	if err != nil {
		return nil, err
	}
	mspID, err := im.Ctx.GetClientIdentity().GetMSPID()
	if err != nil {
		return nil, fmt.Errorf("failed to get caller MSPID: %w", err)
	}
	stub := im.Ctx.GetStub()

	aliasKey, err := im.createAliasCompositeKey(shortName)
	if err != nil {
		return nil, fmt.Errorf("failed to create alias key for '%s': %w", shortName, err)
	}
	owner, err := stub.GetState(aliasKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check alias availability for '%s': %w", shortName, err)
	}
	if owner != nil && string(owner) != fullID {
		return nil, raffleErrorf(CodeInvalidParameter, "alias '%s' is already in use", shortName)
	}

	info, err := im.identityInfo(fullID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		info = &model.IdentityInfo{ObjectType: identityObjectType, FullID: fullID, RegisteredAt: now}
	} else if info.ShortName != "" && info.ShortName != shortName {
		oldKey, err := im.createAliasCompositeKey(info.ShortName)
		if err != nil {
			return nil, fmt.Errorf("failed to create key for old alias '%s': %w", info.ShortName, err)
		}
		if err := stub.DelState(oldKey); err != nil {
			return nil, fmt.Errorf("failed to release old alias '%s': %w", info.ShortName, err)
		}
	}
	info.ShortName = shortName
	info.OrganizationMSP = mspID
	info.LastUpdatedAt = now

	identityKey, err := im.createIdentityCompositeKey(fullID)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity key for '%s': %w", fullID, err)
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal identity info for '%s': %w", fullID, err)
	}
	if err := stub.PutState(identityKey, raw); err != nil {
		return nil, fmt.Errorf("failed to save identity info for '%s': %w", fullID, err)
	}
	if err := stub.PutState(aliasKey, []byte(fullID)); err != nil {
		return nil, fmt.Errorf("failed to save alias mapping '%s': %w", shortName, err)
	}
	idLogger.Infof("Alias '%s' registered for '%s'", shortName, fullID)
	return info, nil
}

// identityInfo returns the registered identity record of fullID, or nil if none exists.
func (im *IdentityManager) identityInfo(fullID string) (*model.IdentityInfo, error) {
	key, err := im.createIdentityCompositeKey(fullID)
	if err != nil {
		return nil, raffleErrorf(CodeInvalidParameter, "identity '%s' cannot be used as a key: %v", fullID, err)
	}
	raw, err := im.Ctx.GetStub().GetState(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity info for '%s': %w", fullID, err)
	}
	if raw == nil {
		return nil, nil
	}
	var info model.IdentityInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity info for '%s': %w", fullID, err)
	}
	return &info, nil
}

// AliasOf returns the alias registered for fullID, or "" when it has none.
func (im *IdentityManager) AliasOf(fullID string) (string, error) {
	info, err := im.identityInfo(fullID)
	if err != nil || info == nil {
		return "", err
	}
	return info.ShortName, nil
}

// ResolveIdentity accepts a full X.509 ID or a registered alias and returns the full ID.
func (im *IdentityManager) ResolveIdentity(identityOrAlias string) (string, error) {
	if strings.TrimSpace(identityOrAlias) == "" {
		return "", raffleErrorf(CodeInvalidParameter, "identity or alias cannot be empty")
	}
	if isValidX509ID(identityOrAlias) {
		return identityOrAlias, nil
	}
	if err := validateKeyAttribute(identityOrAlias, "alias"); err != nil {
		return "", err
	}
	aliasKey, err := im.createAliasCompositeKey(identityOrAlias)
	if err != nil {
		return "", fmt.Errorf("failed to create alias key for '%s': %w", identityOrAlias, err)
	}
	fullID, err := im.Ctx.GetStub().GetState(aliasKey)
	if err != nil {
		return "", fmt.Errorf("failed to read alias '%s': %w", identityOrAlias, err)
	}
	if fullID == nil {
		return "", raffleErrorf(CodeInvalidParameter, "'%s' is neither an X.509 ID nor a registered alias", identityOrAlias)
	}
	return string(fullID), nil
}
