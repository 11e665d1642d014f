package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LedgerID is a pot or attempt id as minted by the ledger. Clients send it
// either as a JSON string or as a bare integer (u64 on Aptos, uint256 on EVM).
type LedgerID string

func (id *LedgerID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = LedgerID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("ledger id must be a string or integer: %w", err)
	}
	for _, c := range n.String() {
		if c < '0' || c > '9' {
			return fmt.Errorf("ledger id %q is not a non-negative integer", n)
		}
	}
	*id = LedgerID(n.String())
	return nil
}

func (id LedgerID) String() string { return string(id) }
