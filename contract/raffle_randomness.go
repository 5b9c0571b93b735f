package contract

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"nftraffle/model"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// drawReceiptNamespace scopes draw receipt UUIDs.
var drawReceiptNamespace = uuid.MustParse("6f1c8e02-3b4a-5d7e-9f10-2a3b4c5d6e7f")

// IndexDrawer supplies the winner index for a draw.
//
// DrawIndex must return a value in [0, bound) and must be deterministic for a given
// transaction: every endorsing peer runs it and their write sets have to agree.
type IndexDrawer interface {
	DrawIndex(ctx contractapi.TransactionContextInterface, raffle *model.Raffle, bound int) (int, error)
}

// TxHashDrawer derives the index from a SHA-256 digest of the channel, transaction
// ID, raffle ID and entry list. The creator chooses when to submit the transaction,
// so the draw is only as unpredictable as the transaction ID.
type TxHashDrawer struct{}

func (TxHashDrawer) DrawIndex(ctx contractapi.TransactionContextInterface, raffle *model.Raffle, bound int) (int, error) {
	if bound <= 0 {
		return 0, fmt.Errorf("draw bound must be positive, got %d", bound)
	}
	stub := ctx.GetStub()
	h := sha256.New()
	for _, part := range append([]string{stub.GetChannelID(), stub.GetTxID(), raffle.ID}, raffle.Entries...) {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(bound)), nil
}

// selectWinner draws an index and resolves it against the entry list.
func selectWinner(ctx contractapi.TransactionContextInterface, drawer IndexDrawer, raffle *model.Raffle) (int, string, error) {
	bound := len(raffle.Entries)
	if bound == 0 {
		return 0, "", raffleErrorf(CodeNoEntries, "raffle '%s' has no entries", raffle.ID)
	}
	index, err := drawer.DrawIndex(ctx, raffle, bound)
	if err != nil {
		return 0, "", fmt.Errorf("failed to draw winner index: %w", err)
	}
	if index < 0 || index >= bound {
		return 0, "", fmt.Errorf("drawer returned index %d outside [0, %d)", index, bound)
	}
	return index, raffle.Entries[index], nil
}

// drawReceiptID is stable for a transaction so every endorser records the same receipt.
func drawReceiptID(channelID, txID, raffleID string) string {
	return uuid.NewSHA1(drawReceiptNamespace, []byte(channelID+"/"+txID+"/"+raffleID)).String()
}
