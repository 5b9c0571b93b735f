package contract

import (
	"crypto/x509"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"nftraffle/model"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-chaincode-go/shimtest"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"github.com/hyperledger/fabric-protos-go/peer"
	"github.com/stretchr/testify/require"
)

const (
	adminID   = "x509::CN=admin,OU=admin,O=Org1::CN=ca.org1.example.com,O=Org1"
	creatorID = "x509::CN=creator,OU=client,O=Org1::CN=ca.org1.example.com,O=Org1"
	p1ID      = "x509::CN=participant1,OU=client,O=Org1::CN=ca.org1.example.com,O=Org1"
	p2ID      = "x509::CN=participant2,OU=client,O=Org1::CN=ca.org1.example.com,O=Org1"
	p3ID      = "x509::CN=participant3,OU=client,O=Org1::CN=ca.org1.example.com,O=Org1"
	p4ID      = "x509::CN=participant4,OU=client,O=Org2::CN=ca.org2.example.com,O=Org2"
	testMSP   = "Org1MSP"

	nftAsset       = "nft-mint-1"
	entryFee       = uint64(100_000_000) // 0.1 of a 10^9 base-unit currency
	startingFunds  = uint64(2_000_000_000)
	testMaxEntries = 3
)

// fakeIdentity is a fixed cid.ClientIdentity.
type fakeIdentity struct {
	id  string
	msp string
}

func (f *fakeIdentity) GetID() (string, error)    { return f.id, nil }
func (f *fakeIdentity) GetMSPID() (string, error) { return f.msp, nil }
func (f *fakeIdentity) GetAttributeValue(string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeIdentity) AssertAttributeValue(name, _ string) error {
	return fmt.Errorf("attribute %s not found", name)
}
func (f *fakeIdentity) GetX509Certificate() (*x509.Certificate, error) {
	return nil, errors.New("no certificate in test identity")
}

// fixedDrawer always draws the same index.
type fixedDrawer struct {
	index  int
	bounds []int
}

func (d *fixedDrawer) DrawIndex(_ contractapi.TransactionContextInterface, _ *model.Raffle, bound int) (int, error) {
	d.bounds = append(d.bounds, bound)
	return d.index, nil
}

// ledgerFixture runs contract transactions one after another against a MockStub.
type ledgerFixture struct {
	t      *testing.T
	stub   *shimtest.MockStub
	paged  *pagingStub
	cc     *RaffleSmartContract
	txSeq  int
	events []string
}

func newLedgerFixture(t *testing.T, opts ...Option) *ledgerFixture {
	t.Helper()
	stub := shimtest.NewMockStub("raffle", nil)
	return &ledgerFixture{
		t:     t,
		stub:  stub,
		paged: &pagingStub{MockStub: stub},
		cc:    NewRaffleSmartContract(opts...),
	}
}

// newFundedFixture bootstraps an admin, mints the raffle asset to the creator and
// funds every participant.
func newFundedFixture(t *testing.T, opts ...Option) *ledgerFixture {
	t.Helper()
	f := newLedgerFixture(t, opts...)
	require.NoError(t, f.cc.BootstrapLedger(f.as(adminID)))
	require.NoError(t, f.cc.IssueAsset(f.as(adminID), nftAsset, creatorID, 1))
	for _, id := range []string{p1ID, p2ID, p3ID, p4ID} {
		require.NoError(t, f.cc.CreditPayment(f.as(adminID), id, startingFunds))
	}
	return f
}

// as starts a new mock transaction invoked by id.
func (f *ledgerFixture) as(id string) contractapi.TransactionContextInterface {
	return f.via(f.paged, id)
}

// via starts a new mock transaction invoked by id and serves it through stub,
// which must wrap the fixture's MockStub.
func (f *ledgerFixture) via(stub shim.ChaincodeStubInterface, id string) contractapi.TransactionContextInterface {
	f.drainEvents()
	f.txSeq++
	f.stub.MockTransactionStart(fmt.Sprintf("tx-%03d", f.txSeq))
	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(stub)
	ctx.SetClientIdentity(&fakeIdentity{id: id, msp: testMSP})
	return ctx
}

func (f *ledgerFixture) drainEvents() {
	for {
		select {
		case ev := <-f.stub.ChaincodeEventsChannel:
			f.events = append(f.events, ev.EventName)
		default:
			return
		}
	}
}

func (f *ledgerFixture) lastEvent() string {
	f.drainEvents()
	if len(f.events) == 0 {
		return ""
	}
	return f.events[len(f.events)-1]
}

func (f *ledgerFixture) initialize(raffleID string) *model.Raffle {
	f.t.Helper()
	raffle, err := f.cc.InitializeRaffle(f.as(creatorID), raffleID, nftAsset, entryFee, testMaxEntries)
	require.NoError(f.t, err)
	return raffle
}

func (f *ledgerFixture) enter(raffleID string, ids ...string) {
	f.t.Helper()
	for _, id := range ids {
		_, err := f.cc.EnterRaffle(f.as(id), raffleID)
		require.NoError(f.t, err)
	}
}

func (f *ledgerFixture) raffle(raffleID string) *model.Raffle {
	f.t.Helper()
	raffle, err := f.cc.GetRaffle(f.as(adminID), raffleID)
	require.NoError(f.t, err)
	return raffle
}

func (f *ledgerFixture) assetUnits(owner string) uint64 {
	f.t.Helper()
	units, err := f.cc.GetAssetBalance(f.as(adminID), nftAsset, owner)
	require.NoError(f.t, err)
	return units
}

func (f *ledgerFixture) funds(owner string) uint64 {
	f.t.Helper()
	amount, err := f.cc.GetPaymentBalance(f.as(adminID), owner)
	require.NoError(f.t, err)
	return amount
}

// snapshot copies the world state for before/after comparisons.
func (f *ledgerFixture) snapshot() map[string]string {
	state := make(map[string]string, len(f.stub.State))
	for k, v := range f.stub.State {
		state[k] = string(v)
	}
	return state
}

// pagingStub serves bookmark pagination over MockStub's ordered keys; MockStub's own
// paginated scans return nothing. The bookmark is the first key of the next page.
type pagingStub struct {
	*shimtest.MockStub
}

func (s *pagingStub) GetStateByPartialCompositeKeyWithPagination(objectType string, keys []string,
	pageSize int32, bookmark string) (shim.StateQueryIteratorInterface, *peer.QueryResponseMetadata, error) {
	all, err := s.GetStateByPartialCompositeKey(objectType, keys)
	if err != nil {
		return nil, nil, err
	}
	defer all.Close()

	page := []*queryresult.KV{}
	next := ""
	for all.HasNext() {
		kv, err := all.Next()
		if err != nil {
			return nil, nil, err
		}
		if bookmark != "" && kv.Key < bookmark {
			continue
		}
		if int32(len(page)) == pageSize {
			next = kv.Key
			break
		}
		page = append(page, kv)
	}
	return &kvIterator{items: page}, &peer.QueryResponseMetadata{FetchedRecordsCount: int32(len(page)), Bookmark: next}, nil
}

type kvIterator struct {
	items []*queryresult.KV
	pos   int
}

func (it *kvIterator) HasNext() bool { return it.pos < len(it.items) }
func (it *kvIterator) Close() error  { return nil }
func (it *kvIterator) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, errors.New("page exhausted")
	}
	kv := it.items[it.pos]
	it.pos++
	return kv, nil
}

// mvccLedger emulates Fabric's validation: transactions simulate against committed
// state, and commit fails if any key read during simulation changed meanwhile.
type mvccLedger struct {
	mu       sync.Mutex
	state    map[string][]byte
	versions map[string]uint64
}

func newMVCCLedger(from map[string][]byte) *mvccLedger {
	l := &mvccLedger{state: make(map[string][]byte), versions: make(map[string]uint64)}
	for k, v := range from {
		l.state[k] = v
		l.versions[k] = 1
	}
	return l
}

var errMVCCConflict = errors.New("MVCC_READ_CONFLICT")

// mvccTx is one simulated transaction. The embedded MockStub supplies tx ID,
// timestamp and composite key helpers; state access goes through the ledger.
type mvccTx struct {
	*shimtest.MockStub
	ledger *mvccLedger
	reads  map[string]uint64
	writes map[string][]byte
}

func (l *mvccLedger) begin(txID string) *mvccTx {
	helper := shimtest.NewMockStub("raffle", nil)
	helper.MockTransactionStart(txID)
	return &mvccTx{MockStub: helper, ledger: l, reads: make(map[string]uint64), writes: make(map[string][]byte)}
}

func (tx *mvccTx) GetState(key string) ([]byte, error) {
	tx.ledger.mu.Lock()
	defer tx.ledger.mu.Unlock()
	tx.reads[key] = tx.ledger.versions[key]
	return tx.ledger.state[key], nil
}

func (tx *mvccTx) PutState(key string, value []byte) error {
	tx.writes[key] = value
	return nil
}

func (tx *mvccTx) SetEvent(string, []byte) error { return nil }

func (tx *mvccTx) commit() error {
	tx.ledger.mu.Lock()
	defer tx.ledger.mu.Unlock()
	for key, version := range tx.reads {
		if tx.ledger.versions[key] != version {
			return fmt.Errorf("%w on key %s", errMVCCConflict, printableKey(key))
		}
	}
	keys := make([]string, 0, len(tx.writes))
	for key := range tx.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		tx.ledger.state[key] = tx.writes[key]
		tx.ledger.versions[key]++
	}
	return nil
}

func (tx *mvccTx) ctxAs(id string) contractapi.TransactionContextInterface {
	ctx := new(contractapi.TransactionContext)
	ctx.SetStub(tx)
	ctx.SetClientIdentity(&fakeIdentity{id: id, msp: testMSP})
	return ctx
}
