package refunds

// Job is the payload published to the refund queue when an in-flow
// compensating credit could not be applied. Amount is the exact total
// reserved at purchase time, never recomputed.
type Job struct {
	TransactionID int64  `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
	Amount        uint   `json:"amount"`
	Reference     string `json:"reference"`
	Reason        string `json:"reason,omitempty"`
}
