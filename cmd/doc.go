// Package cmd defines the rankrise CLI.
//
// Subcommands:
//   - serve: the audit API. GET /api/audit runs Lighthouse (or PageSpeed
//     Insights when audit.engine=pagespeed) behind a per-IP sliding-window
//     limiter and a bounded FIFO queue drained by queue.max_concurrent
//     workers. GET /health reports queue occupancy.
//   - proxy: forwards GET /api/pagespeed to PageSpeed Insights with the
//     server-held key, throttled by a token bucket. Refuses to start without
//     GOOGLE_API_KEY.
//   - audit: runs a single audit and prints the scores.
//
// Configuration comes from an optional YAML file (--config), RANKRISE_*
// variables, and the unprefixed PORT, MAX_CONCURRENT, RATE_LIMIT_PER_IP and
// GOOGLE_API_KEY variables. SIGINT/SIGTERM trigger a graceful drain bounded by
// server.shutdown_grace.
package cmd
