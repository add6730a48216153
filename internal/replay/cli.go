package replay

import "os"

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`hookscore replay
================

Signs and posts a synthetic GitHub history (pull requests, reviews, pushes
and deliberate redeliveries) to a running hookscore server, waits for the
pipeline to drain and checks every contributor score on /contributors.

Usage:
  go run ./cmd/replay [options]

Options:
  -url string           Base URL of the service (default "http://localhost:9080")
  -secret string        Webhook secret (default $HOOKSCORE_WEBHOOK_SECRET)
  -seed uint            Seed for the synthetic history (default 1)
  -repo int             GitHub id of the synthetic repository (default 4242)
  -contributors int     Distinct contributor logins (default 12)
  -prs int              Pull request deliveries (default 60)
  -reviews int          Reviews per pull request (default 2)
  -pushes int           Push deliveries (default 10)
  -duplicate-every int  Redeliver every Nth delivery (default 5, 0 disables)
  -workers int          Concurrent senders (default 8)
  -timeout duration     HTTP request timeout (default 10s)
  -drain duration       Time allowed for pending events to drain (default 2m)
  -verbose              Log every delivery
  -help                 Show this help message

Scores are verified exactly. Run the server with dispatch_backend=none or a
single worker when verifying large histories, since concurrent recomputes
for the same contributor may briefly store an older total.
`)
}
