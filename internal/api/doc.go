// Package api exposes the lottery view model over HTTP/JSON: the derived view,
// session actions, the ticket draft, reward claims, notifications and the
// transaction history, plus the Prometheus metrics endpoint.
package api
