package common

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

// Role names gating engine operations. Verification mirrors the off-ledger
// KYC outcome as a boolean capability; the admin role guards approval and
// pool governance.
const (
	RoleLoanAdmin = "ROLE_LOAN_ADMIN"
	RoleVerified  = "ROLE_VERIFIED"
)

// RolesView resolves role membership for a caller address.
type RolesView interface {
	HasRole(role string, addr []byte) bool
}

// ModuleAddress derives the deterministic 20-byte treasury address for a
// named module account (loan vault, pool treasury, fee collector).
func ModuleAddress(name string) [20]byte {
	hash := ethcrypto.Keccak256([]byte("peerlend/module/" + name))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}
