package contract

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("raffle.contract")

// raffleObjectType is used for composite keys and as a 'docType' for CouchDB queries.
const raffleObjectType = "Raffle"

// Constants for input validation and limits
const (
	maxStringInputLength = 256
	maxEntriesLimit      = 100 // Entry list capacity of a raffle record
)

// RaffleSmartContract escrows one non-fungible asset per raffle, collects entry fees
// and releases the asset to a drawn participant.
// @contract:RaffleSmartContract
type RaffleSmartContract struct {
	contractapi.Contract
	drawer IndexDrawer
}

// Option configures a RaffleSmartContract.
type Option func(*RaffleSmartContract)

// WithIndexDrawer replaces the randomness source used by PickWinner.
func WithIndexDrawer(drawer IndexDrawer) Option {
	return func(s *RaffleSmartContract) {
		s.drawer = drawer
	}
}

// NewRaffleSmartContract returns a contract drawing winners with TxHashDrawer
// unless an option says otherwise.
func NewRaffleSmartContract(opts ...Option) *RaffleSmartContract {
	s := &RaffleSmartContract{drawer: TxHashDrawer{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// actorInfo holds commonly needed details about the transaction invoker.
type actorInfo struct {
	fullID string
	mspID  string
}

// Instantiate is called during chaincode instantiation.
func (s *RaffleSmartContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("RaffleSmartContract Instantiated/Upgraded")
}

func (s *RaffleSmartContract) indexDrawer() IndexDrawer {
	if s.drawer == nil {
		return TxHashDrawer{}
	}
	return s.drawer
}
