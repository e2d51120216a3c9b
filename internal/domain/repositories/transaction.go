package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles transactions for every store backend.
// Locks taken inside fn (see MessageRepository.LockChain) are held until
// ExecTx returns; writes made inside fn are discarded if fn returns an error.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
