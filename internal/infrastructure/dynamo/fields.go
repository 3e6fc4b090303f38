package dynamo

// DynamoDB attribute names of the credential table, shared by key builders,
// condition expressions and the bootstrap schema.
const (
	attrEmail       = "email"
	attrCode        = "code"
	attrExpiresAt   = "expires_at" // TTL (Unix seconds), includes the retention window
	attrExpiresAtMs = "expires_at_ms"
)
