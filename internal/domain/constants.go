package domain

const (
	RoleAdmin = "ADMIN"
)

// Transaction statuses. A transaction leaves pending exactly once.
const (
	TransactionPending = "pending"
	TransactionSuccess = "success"
	TransactionFailed  = "failed"
)

// Manual payment statuses.
const (
	ManualPending  = "pending"
	ManualVerified = "verified"
	ManualRejected = "rejected"
)

const PaymentModeSTKPush = "stk_push"

// Audit actions
const (
	AuditCallbackApplied = "CALLBACK_APPLIED"
	AuditCallbackIgnored = "CALLBACK_IGNORED"
	AuditQueryApplied    = "QUERY_APPLIED"
	AuditManualVerified  = "MANUAL_PAYMENT_STATUS"
	AuditAdminLogin      = "ADMIN_LOGIN"
)

// IsTerminalTransaction reports whether status can no longer change.
func IsTerminalTransaction(status string) bool {
	return status == TransactionSuccess || status == TransactionFailed
}

// IsManualStatus reports whether status is accepted by manual verification.
func IsManualStatus(status string) bool {
	switch status {
	case ManualPending, ManualVerified, ManualRejected:
		return true
	}
	return false
}
