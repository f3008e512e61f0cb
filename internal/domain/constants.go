package domain

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// Payment statuses. An accepted push stays PENDING: acceptance only means
// the STK prompt was delivered, confirmation arrives asynchronously from
// the gateway and is reconciled via the audit trail.
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusFailed  = "FAILED"
)
