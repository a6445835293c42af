// Package sqlite contains SQLite repository implementations for speller
// domain types.
//
// All database read/write operations for trained models, trial outcomes,
// and training runs belong here rather than in the decoding layers. This
// keeps the signal-processing packages free of SQL noise and makes it
// easier to swap storage backends for testing.
package sqlite
