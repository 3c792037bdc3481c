package guard

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"nominal/internal/registry/models"
)

// DigestTag separates registry digests from any other signed payload.
const DigestTag = "nominal-registry/v1"

// Digest returns the SHA3-256 digest an owner signs to authorize a sponsored
// registration. origin identifies the deployment so a signature cannot be
// replayed against another registry. Variable-length fields are length
// prefixed; integers are big-endian.
func Digest(origin string, req models.SponsoredRequest) [32]byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, DigestTag...)
	buf = appendField(buf, origin)
	buf = appendField(buf, req.Name.String())
	buf = appendField(buf, req.Owner.String())
	buf = appendField(buf, req.Sponsor.String())
	buf = appendField(buf, req.Asset.String())
	buf = binary.BigEndian.AppendUint64(buf, uint64(req.Amount))
	buf = binary.BigEndian.AppendUint64(buf, uint64(req.Deadline.Unix()))
	buf = binary.BigEndian.AppendUint64(buf, req.Nonce)
	return sha3.Sum256(buf)
}

func appendField(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}
