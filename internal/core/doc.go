// Package core provides the business logic for importing and serving exam
// results.
//
// It holds the domain independent of any transport: the web server, the
// natijtictl command and tests drive it through [Service] and the [Store] and
// [Cache] interfaces.
//
// # Layouts
//
// Source files come in a small set of known layouts ([LayoutConcours1AS],
// [LayoutBAC]). [DetectLayout] picks one from the header row. Each
// [LayoutSpec] lists [FieldRule] entries saying where a logical field lives:
// a column name, a zero-based position, or a list of alternative names, tried
// in that order.
//
// # Ingestion
//
// [Service.Submit] reads the whole file, checks the exam session and returns
// a task id. A background goroutine then maps every row with [MapRow] and
// upserts it by (national id, session), committing every
// [Options.BatchSize] rows. Progress is polled with [Service.Status]. A
// rejected row is counted and described but never stops the task.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. Each
// category has a code for support reference:
//
//   - FILE001-FILE005: upload rejected (missing, type, size, empty, unreadable)
//   - SES001, RES001: unknown session or result
//   - TSK002-TSK003: task limits and unknown tasks
//   - VAL001-VAL005: row and parameter validation
//   - DB001-DB004: storage failures
package core
