package naming

import (
	"encoding/hex"

	"github.com/sigurn/crc16"
	"golang.org/x/crypto/sha3"
)

// CRC-16/CCITT-FALSE: poly 0x1021, init 0xFFFF, no reflection.
var ccittTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// AllocatePort maps a hostname onto a port number. Distinct hostnames may
// collide; callers needing uniqueness must check for it themselves.
func AllocatePort(hostname string) uint16 {
	return crc16.Checksum([]byte(hostname), ccittTable)
}

// WorkspaceKey names the personal workspace of owner: four bytes of
// SHAKE128(owner) in hex, then the owner itself.
func WorkspaceKey(owner string) string {
	sum := make([]byte, 4)
	sha3.ShakeSum128(sum, []byte(owner))
	return hex.EncodeToString(sum) + "-" + owner
}

// WorkspaceHost returns the hostname of owner's workspace under site.
func WorkspaceHost(owner, site string) string {
	return WorkspaceKey(owner) + "." + site
}
