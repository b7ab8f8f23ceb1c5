// Package audit runs page-quality audits and normalizes their reports.
//
// A Runner turns one URL into a Result: four category scores (0-100), a short
// list of optimization opportunities and a few timing diagnostics. The
// Lighthouse runner drives a local headless Chrome through chromedp and the
// lighthouse CLI; other engines (see internal/pagespeed) reuse BuildResult so
// every engine reports the same shape.
//
// Errors are classified with errors.Is against ErrInvalidInput,
// ErrToolFailure and ErrAuditTimeout.
package audit
