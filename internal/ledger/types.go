package ledger

import "github.com/Klingon-tech/naivecoin-wallet/internal/wallet"

// Balance is the ledger's view of an address. Balance is -1 when the node
// did not answer with JSON; Status then carries the raw reply.
type Balance struct {
	Balance int64  `json:"balance"`
	Status  string `json:"status,omitempty"`
}

// blockTransactions is the subset of a block the tracker needs.
type blockTransactions struct {
	Transactions []struct {
		ID string `json:"id"`
	} `json:"transactions"`
}

// LinkRequest is the shop's answer to an address link: the anonymous
// wallet id and one challenge per linked address.
type LinkRequest struct {
	Status           string                     `json:"status"`
	WalletID         string                     `json:"wallet"`
	VerificationData []wallet.VerificationEntry `json:"verf_data"`
}

// verifyRequest is the signed challenge set sent back to the shop.
type verifyRequest struct {
	WalletID         string                     `json:"walletId"`
	VerificationData []wallet.VerificationEntry `json:"verf_data"`
}

// LinkResult is the shop's verdict on a signed challenge set.
type LinkResult struct {
	Status   string `json:"status"`
	WalletID string `json:"walletId"`
}

// statusReply is the error body shape used by the shop routes.
type statusReply struct {
	Status string `json:"status"`
}
