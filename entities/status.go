package entities

// ChainStatus is the node's view of the chain.
type ChainStatus struct {
	ChainID    uint32 `json:"chain_id"`
	TailHeight uint64 `json:"tail_height"`
	// LibHeight is the last irreversible block height.
	LibHeight uint64 `json:"lib_height"`
}

// SyncStatus is reported by the status endpoint.
type SyncStatus struct {
	Chain         ChainStatus `json:"chain"`
	IndexedHeight uint64      `json:"indexed_height"`
	// ProcessedHeight is the nbre height of the last completed check.
	ProcessedHeight uint64 `json:"processed_height"`
}
