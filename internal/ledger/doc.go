// Package ledger wraps Hedera account, key and transaction primitives behind
// a uniform gateway capability: initialize a network session once, submit
// fully-specified transactions through a fixed build/freeze/sign/submit
// sequence, and run read-only queries with transparent retry. All monetary
// values crossing this boundary are integers in the ledger's smallest
// denomination, and the operator signing key never leaves this package.
package ledger
