package model

import "time"

// RaffleStatus defines the possible states of a raffle record.
type RaffleStatus string

const (
	StatusActive    RaffleStatus = "ACTIVE"    // Accepting entries
	StatusDrawn     RaffleStatus = "DRAWN"     // Winner drawn, asset released, fees paid to creator
	StatusCancelled RaffleStatus = "CANCELLED" // Closed by creator, asset and fees refunded
)

// DrawResult records the outcome of a winner draw.
type DrawResult struct {
	Winner      string    `json:"winner"` // Participant ID that received the asset
	WinnerAlias string    `json:"winnerAlias,omitempty" metadata:",optional"`
	WinnerIndex int       `json:"winnerIndex"` // Index into Entries selected by the drawer
	ReceiptID   string    `json:"receiptId"`   // Deterministic receipt derived from the drawing transaction
	DrawTxID    string    `json:"drawTxId"`
	FeesPaid    uint64    `json:"feesPaid"` // Fees released to the creator with the draw
	DrawnAt     time.Time `json:"drawnAt"`
}

// Raffle is the persistent record of one raffle instance.
type Raffle struct {
	ObjectType     string         `json:"objectType"`                                  // "Raffle"
	ID             string         `json:"id"`                                          // Raffle slot chosen by the creator
	Creator        string         `json:"creator"`                                     // Full X.509 ID of the initializer
	CreatorAlias   string         `json:"creatorAlias,omitempty" metadata:",optional"` // Filled on read, never stored
	CreatorMSP     string         `json:"creatorMsp"`
	NFTAsset       string         `json:"nftAsset"`
	EntryFee       uint64         `json:"entryFee"` // Payment base units per entry
	MaxEntries     int            `json:"maxEntries"`
	Entries        []string       `json:"entries"` // Participant IDs in arrival order
	IsActive       bool           `json:"isActive"`
	Status         RaffleStatus   `json:"status"`
	CustodyAccount string         `json:"custodyAccount"` // Escrow account holding the asset and fees
	CollectedFees  uint64         `json:"collectedFees"`  // Fees currently held in custody
	Draw           *DrawResult    `json:"draw,omitempty" metadata:",optional"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastUpdatedAt  time.Time      `json:"lastUpdatedAt"`
	ClosedAt       time.Time      `json:"closedAt"` // Zero while active
	History        []HistoryEntry `json:"history"`  // Populated by GetRaffleHistory
}

// HistoryEntry represents one historical state of a raffle record.
type HistoryEntry struct {
	TxID      string       `json:"txId"`
	Timestamp time.Time    `json:"timestamp"`
	IsDelete  bool         `json:"isDelete"`
	Status    RaffleStatus `json:"status"`
	IsActive  bool         `json:"isActive"`
	Entries   int          `json:"entries"` // Entry count at that state
	Value     string       `json:"value"`   // Raw JSON value of the record at that time
}

// AssetBalance is the number of units of a non-fungible asset held by an owner.
type AssetBalance struct {
	ObjectType string `json:"objectType"` // "AssetBalance"
	AssetID    string `json:"assetId"`
	Owner      string `json:"owner"`
	Units      uint64 `json:"units"`
}

// PaymentBalance is the payment currency held by an owner, in base units.
type PaymentBalance struct {
	ObjectType string `json:"objectType"` // "PaymentBalance"
	Owner      string `json:"owner"`
	Amount     uint64 `json:"amount"`
}

// PaginatedRaffleResponse is one page of a raffle list query. FetchedCount is the
// number of raffles on this page after filtering; an empty NextBookmark means the
// scan is complete.
type PaginatedRaffleResponse struct {
	Raffles      []*Raffle `json:"raffles"`
	NextBookmark string    `json:"nextBookmark"`
	FetchedCount int32     `json:"fetchedCount"`
}
