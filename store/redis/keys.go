package redis

// Key layout. Everything lives under the "notify:" prefix so one Redis
// instance can be shared with other subsystems.
//
//	notify:topic:<name>        topic JSON, keyed by name (upsert target)
//	notify:topics              set of registered topic names
//	notify:ep:<id>             endpoint JSON
//	notify:eps:<tenant>        set of endpoint IDs owned by a tenant
//	notify:env:<id>            envelope JSON
//	notify:pending             zset of envelope IDs scored by NextAttemptAt (ms)
//	notify:lock:<id>           dequeue lock, SET NX PX
//	notify:history:<ep-id>     zset of envelope IDs scored by CreatedAt (ms)
//	notify:dlq:<id>            DLQ entry JSON
//	notify:dlq-index           zset of DLQ entry IDs scored by FailedAt (ms)
//	notify:idem:<tenant>:<key> idempotency claim, SET NX PX, value envelope ID
const (
	keyPrefix   = "notify:"
	keyTopics   = keyPrefix + "topics"
	keyPending  = keyPrefix + "pending"
	keyDLQIndex = keyPrefix + "dlq-index"
)

func topicKey(name string) string     { return keyPrefix + "topic:" + name }
func endpointKey(id string) string    { return keyPrefix + "ep:" + id }
func tenantEpsKey(tenant string) string { return keyPrefix + "eps:" + tenant }
func envelopeKey(id string) string    { return keyPrefix + "env:" + id }
func lockKey(id string) string        { return keyPrefix + "lock:" + id }
func historyKey(epID string) string   { return keyPrefix + "history:" + epID }
func dlqKey(id string) string         { return keyPrefix + "dlq:" + id }

func idemKey(tenant, key string) string {
	return keyPrefix + "idem:" + tenant + ":" + key
}
