// Package core holds the tabular editing logic behind the overlay service.
//
// Nothing here knows about HTTP. The web handlers, the overlayctl CLI and
// the tests all drive the same [Service].
//
// # Datasets
//
// A dataset is any CSV or XLSX upload. [ParseDataset] decodes the first
// sheet, picks the column that parses as dates most often
// ([InferDateColumn]) and coerces it. Series queries run through
// [Transform], which can replace raw values with month-over-month or
// quarter-over-quarter changes of the bucket means.
//
// # Input files
//
// Input files are forecast grids keyed by a Mnemonic column, with time
// columns named like "2022.1" and free-form metadata columns. Workbooks
// must carry a Quarterly sheet. They live in an [InputFileStore], which
// answers value lookups leniently (unknown series or labels read as
// missing) and edits strictly.
//
// # Errors
//
// Failures wrap one of the sentinel errors in errors.go. [MapError] turns
// any error into a [UserMessage] with a stable code, and [StatusCode]
// picks the HTTP status:
//
//   - FILE001-FILE004: decode failures and unsupported formats
//   - VAL001-VAL004: missing index, time columns, bad dates or modes
//   - DATA001-DATA006: unknown ids, series, labels and columns
//   - UPL001-UPL003: upload slot exhaustion, cancellation and timeouts
package core
