package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
)

// TxFunc runs inside a transaction and may be retried on contention, so it must rebuild
// all of its state from reads made through tx.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxPolicy bounds retries and wall time for one transaction.
type TxPolicy struct {
	Attempts int
	Timeout  time.Duration
}

var (
	DefaultTxPolicy = TxPolicy{Attempts: 5, Timeout: 15 * time.Second}
	// StockTxPolicy is for transactions that write product size stock, where concurrent
	// checkouts of a popular shoe abort each other.
	StockTxPolicy = TxPolicy{Attempts: 10, Timeout: 20 * time.Second}
)

func (p TxPolicy) normalized() TxPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultTxPolicy.Attempts
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTxPolicy.Timeout
	}
	return p
}

// RunTransaction applies policy; a caller deadline sooner than policy.Timeout wins.
func RunTransaction(ctx context.Context, client *firestore.Client, policy TxPolicy, fn TxFunc) error {
	policy = policy.normalized()
	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > policy.Timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}
	return WrapError("transaction", client.RunTransaction(ctx, fn, firestore.MaxAttempts(policy.Attempts)))
}
