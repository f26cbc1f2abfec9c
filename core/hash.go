package core

import "crypto/sha256"

// hashBytes is used for the UNMODIFIED_BASE assertion (spec §4.2):
// cheaply fingerprinting a substate snapshot at lock-acquire time so
// DropLock can detect an intervening write without keeping a full
// copy of every locked value around.
func hashBytes(b []byte) [32]byte {
	return sha256.Sum256(b)
}
