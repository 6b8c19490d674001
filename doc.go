// Package notify provides the outbound webhook and notification delivery
// engine for the SmartPay platform.
//
// Notify is a library — not a service. Import it into an application to get
// tenant-scoped webhook endpoints, a registered topic catalog, HMAC-signed
// at-least-once delivery with exponential backoff, idempotency-key
// deduplication for inbound writes, and a dead letter queue with replay.
//
// Key pieces:
//   - Publish(tenant, topic, payload): synchronous fan-out to in-process
//     subscribers plus an outbox envelope for webhook delivery
//   - Background delivery worker with capped exponential backoff retries
//   - HMAC-SHA256 signatures ("t={ts}, v1={hex}") on every delivery
//   - Pluggable store contract with in-memory and Redis backends
//   - Per-endpoint token-bucket rate limiting
//
// Quick start:
//
//	hub, err := notify.New(
//	    notify.WithStore(memoryStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	hub.RegisterTopic(ctx, topic.Definition{
//	    Name:    "payment.intent.created",
//	    Version: "2025-01-01",
//	})
//
//	hub.Publish(ctx, "tenant_blue", "payment.intent.created",
//	    json.RawMessage(`{"id":"pi_1"}`))
//
// Delivery is at-least-once: receivers must process idempotently and must not
// rely on arrival order. Callers that need ordering should encode a sequence
// number in the payload.
package notify
