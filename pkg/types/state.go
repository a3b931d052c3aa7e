package types

// DENOMINATOR is the fixed basis-point denominator used throughout fee and
// spread math: a value of 10000 means "1 unit == 1 basis point".
const DENOMINATOR uint64 = 10000

// Status marks whether a record is live or has been removed by the chain.
type Status int

const (
	StatusNormal Status = iota + 1
	StatusDeleted
)

// MarketStatus is the trading status of a Market.
type MarketStatus int

const (
	MarketNormal MarketStatus = iota + 1
	MarketLocked
	MarketFrozen
)

// Officer identifies who curates a market's listing.
type Officer int

const (
	OfficerProjectTeam Officer = iota + 1
	OfficerCertifiedThirdParty
	OfficerCommunity
)

// PositionType distinguishes cross-margin (Full) from isolated-margin
// (Independent) positions.
type PositionType int

const (
	PositionFull PositionType = iota + 1
	PositionIndependent
)

// PositionStatus is the lifecycle state of a Position.
type PositionStatus int

const (
	PositionNormal PositionStatus = iota + 1
	PositionNormalClosing
	PositionForcedClosing
	PositionPending
)

// Direction is the side of a Position. Flat carries no PnL exposure and
// contributes nothing to cascade math; it exists for positions that have
// been fully hedged or are mid-transition.
type Direction int

const (
	DirectionBuy Direction = iota + 1
	DirectionSell
	DirectionFlat
)

// Pool tracks a market's on-chain liquidity balances.
type Pool struct {
	VaultSupply     uint64
	VaultBalance    uint64
	ProfitBalance   uint64
	InsuranceBalance uint64
	SpreadProfit    uint64
}

// Market is a trading pair's configuration and liquidity state.
type Market struct {
	ID      Address
	Symbol  string
	Status  MarketStatus
	MaxLeverage uint8

	InsuranceFee uint64 // basis points over DENOMINATOR
	MarginFee    uint64
	FundFee      uint64
	SpreadFee    uint64

	FundFeeManual   bool
	SpreadFeeManual bool

	LongPositionTotal  uint64
	ShortPositionTotal uint64

	Name        string
	Description string
	Officer     Officer
	Pool        Pool
	Size        uint64

	OpeningPrice uint64
	PythID       Address
}

// Account is a user's trading balance and cross-margin totals.
type Account struct {
	ID     Address
	Owner  Address
	Offset uint64

	Balance uint64
	Profit  int64

	MarginTotal            uint64
	MarginFullTotal        uint64
	MarginIndependentTotal uint64

	MarginFullBuyTotal         uint64
	MarginFullSellTotal        uint64
	MarginIndependentBuyTotal  uint64
	MarginIndependentSellTotal uint64

	// FullPositionIdx maps a market ID key to the account's Full-margin
	// position in that market. It holds whatever the ingested record
	// carries; the Index does not populate or rebuild it.
	FullPositionIdx map[string]Address
}

// Position is a single leveraged exposure held by an Account in a Market.
type Position struct {
	ID        Address
	AccountID Address
	MarketID  Address

	Margin        uint64
	MarginBalance uint64
	Leverage      uint8

	PositionType PositionType
	Status       PositionStatus
	Direction    Direction

	Size uint64
	Lot  uint64

	OpenPrice     uint64
	OpenSpread    uint64
	OpenRealPrice uint64

	ClosePrice     uint64
	CloseSpread    uint64
	CloseRealPrice uint64

	Profit int64

	StopSurplusPrice uint64
	StopLossPrice    uint64

	CreateTime   int64
	OpenTime     int64
	CloseTime    int64
	ValidityTime int64

	OpenOperator  Address
	CloseOperator Address
}

// Price is the derived per-market quote published to readers.
type Price struct {
	BuyPrice   uint64
	SellPrice  uint64
	RealPrice  uint64
	Spread     uint64
	UpdateTime int64
}

// OrgPrice is a raw tick from the upstream price feed, keyed by symbol.
type OrgPrice struct {
	Symbol     string
	Price      int64
	UpdateTime int64
}

// State is a tagged union of the chain record variants an ingest Message
// can carry. Exactly one field is populated per Tag.
type State struct {
	Tag      StateTag
	Market   *Market
	Account  *Account
	Position *Position
	Price    *OrgPrice
}

// StateTag identifies which State variant is populated, and doubles as
// the storage key "tag" component.
type StateTag int

const (
	StateNone StateTag = iota
	StateMarket
	StateAccount
	StatePosition
	StatePrice
)

// String renders the tag the way storage keys expect: lowercase.
func (t StateTag) String() string {
	switch t {
	case StateMarket:
		return "market"
	case StateAccount:
		return "account"
	case StatePosition:
		return "position"
	case StatePrice:
		return "price"
	default:
		return "none"
	}
}

// Message is the inbound ingest envelope: a chain-event subscriber (external
// to this module) delivers one of these per state change.
type Message struct {
	Address Address
	State   State
	Status  Status
}
