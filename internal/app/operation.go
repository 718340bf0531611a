package app

// VaultOperation tracks one CLI invocation for the operation log. It is
// created in memory when the app starts and persisted on Close with its
// final status.
type VaultOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewVaultOperation creates a new in-memory operation record.
func NewVaultOperation(operation, parameters string) *VaultOperation {
	return &VaultOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// MarkError flags the operation as failed.
func (op *VaultOperation) MarkError() {
	op.Status = "error"
}

// Persisted returns true if this operation has been saved to the database.
func (op *VaultOperation) Persisted() bool {
	return op.ID != 0
}
