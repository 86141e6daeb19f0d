// Package core implements the packing-list (colisage) import pipeline.
//
// An import runs in two requests. The preview reads a workbook and reports
// what would happen; the commit writes the rows the user kept.
//
//  1. [Parser] reads the first sheet of an XLSX workbook into [RawImportRow]s,
//     matching headers against an [AliasTable].
//  2. [Resolver] resolves HS code, currency, country and regime codes through a
//     [ReferenceLookup], validates each row and classifies it as new or
//     existing. The result is a [PreviewResult].
//  3. [Committer] upserts the selected [ResolvedPreviewRow]s through a
//     [LineItemStore] inside one transaction, one savepoint per row, and
//     returns a [CommitResult].
//
// [Service] ties the three together behind an [ImportLimiter].
//
// # Row numbers
//
// Preview errors use spreadsheet line numbers: the header is line 1, so the
// first data row is line 2. Commit errors use the 1-based position of the row
// in the commit request.
//
// # Error Handling
//
// Input errors ([EmptyInputError], [ParseError]) abort a preview. Row problems
// never abort: they are returned as [ImportError]s. A commit aborts only when
// its transaction cannot begin or times out, in which case the error wraps
// [ErrCommitAborted] and nothing is written.
//
// Natural keys rejected by the store become row messages naming the value.
// Other technical errors are mapped to user-friendly messages using [MapError]:
//
//   - DB001-DB007: database errors
//   - VAL001-VAL004: row validation
//   - FILE001-FILE005: uploaded file problems
//   - IMP001-IMP005: import lifecycle (busy, aborted, timeout)
//
// # Audit Logging
//
// Every commit batch writes one [AuditEntry] with severity:
//
//   - Low: clean commit
//   - Medium: rejected (unknown dossier)
//   - High: commit with failed rows
//   - Critical: aborted batch
package core
