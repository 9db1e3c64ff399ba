// Package core provides the business logic for class registration.
//
// This package holds all domain logic independent of any transport or
// storage layer. It can be used by web handlers, CLI tools, or tests
// without modification; persistence is reached only through [Store].
//
// # Architecture
//
//   - Rules: an immutable snapshot of the business rules (class duration,
//     daily limits, class-type capacity) built per request from environment
//     defaults overlaid with stored config entries.
//   - Validator: admits or rejects a proposed class against the overlap,
//     student quota, instructor quota and class-type capacity rules, in that
//     order. The first failing rule wins.
//   - Processor: turns one CSV row into one [RowResult], dispatching on the
//     Action column (new, update, delete).
//   - Service: the entry point for imports, listings, reports and config.
//
// # Batch Import
//
//  1. Client calls [Service.ImportRegistrations] with an io.Reader
//  2. The import waits for a slot in the [ImportLimiter]
//  3. The whole stream is parsed; malformed CSV rejects the batch
//  4. Rows run sequentially in file order, each producing one RowResult
//
// Rows observe the effects of earlier rows in the same batch, so a file that
// books a fourth class for a student on the same day fails on that row.
//
// # Concurrency
//
// Two imports can race between the admission check and the insert. Setting
// SCHEDULE_SERIALIZE_ADMISSIONS enables [AdmissionLocks], which serialize
// check-then-insert per student, instructor and class-type day.
//
// # Error Handling
//
// Row failures are [*RowError] values tagged with a [Kind]. [MapError]
// maps any error to a user-facing message with a support code:
//
//   - REG001-REG011: Row rejections
//   - FILE001-FILE003: File errors
//   - UPL001-UPL003: Upload errors
//   - DB001-DB006: Database errors
//   - CFG001-CFG004: Configuration errors
package core
