// Package karma implements the karma text-parsing and transaction
// engine: sanitizing raw chat text, finding subject mentions followed
// by +/- runs, deriving validated transactions (dedup, self-karma,
// reserved constants, rate limiting), and appending them to the ledger.
//
// All per-message state is local to one Process call; the engine holds
// no mutable state and is safe for concurrent use.
package karma
