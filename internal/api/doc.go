// Package api hosts the audit HTTP server. Routes:
//   - GET /api/audit?url= runs one audit through the scheduler.
//   - GET /health reports queue occupancy.
//   - GET /metrics for Prometheus scraping.
package api
