package helius

// Transaction is one entry of the enhanced transactions API response.
type Transaction struct {
	Description      string `json:"description"`
	Type             string `json:"type"`
	Source           string `json:"source"`
	Fee              int64  `json:"fee"`
	FeePayer         string `json:"feePayer"`
	Signature        string `json:"signature"`
	Slot             uint64 `json:"slot"`
	Timestamp        int64  `json:"timestamp"`
	TransactionError any    `json:"transactionError"`
	Events           Events `json:"events"`
}

type Events struct {
	Swap *SwapEvent `json:"swap"`
}

type SwapEvent struct {
	NativeInput  *NativeAmount        `json:"nativeInput"`
	NativeOutput *NativeAmount        `json:"nativeOutput"`
	TokenInputs  []TokenBalanceChange `json:"tokenInputs"`
	TokenOutputs []TokenBalanceChange `json:"tokenOutputs"`
	InnerSwaps   []InnerSwap          `json:"innerSwaps"`
}

// NativeAmount is a lamport amount, encoded as a string.
type NativeAmount struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type TokenBalanceChange struct {
	UserAccount    string         `json:"userAccount"`
	TokenAccount   string         `json:"tokenAccount"`
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

type RawTokenAmount struct {
	TokenAmount string `json:"tokenAmount"`
	Decimals    int32  `json:"decimals"`
}

type InnerSwap struct {
	TokenInputs  []TokenTransfer `json:"tokenInputs"`
	TokenOutputs []TokenTransfer `json:"tokenOutputs"`
	ProgramInfo  ProgramInfo     `json:"programInfo"`
}

// TokenTransfer amounts are already in UI units.
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"`
}

type ProgramInfo struct {
	Source          string `json:"source"`
	Account         string `json:"account"`
	ProgramName     string `json:"programName"`
	InstructionName string `json:"instructionName"`
}

type transactionsRequest struct {
	Transactions []string `json:"transactions"`
}
