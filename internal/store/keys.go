package store

import "encoding/binary"

// Single-byte prefixes partitioning the shared ordered key space. Range
// scans of a prefix class P use the inclusive lower bound [P] and the
// exclusive upper bound [P+1]; this must stay consistent across every
// key builder below or a scan will either miss entries or leak into the
// neighboring class.
const (
	prefixLatestSeq byte = 0
	prefixMsgKVT    byte = 1
	prefixMsgVal    byte = 2
	prefixBlob      byte = 3
	prefixPeer      byte = 4
)

// Reserved string keys living outside the prefix-partitioned ranges.
const (
	globalSeqKey   = "solar:global_seq"
	globalOrderKey = "solar:global_order"
)

// globalOrderForwardPrefix maps a global sequence number to a message id.
const globalOrderForwardPrefix = "global_seq:"

// globalOrderReversePrefix maps a message id back to its global sequence
// number. The Rust original spells this "gloabl_seq:" on one code path;
// that typo is not replicated here (see design notes).
const globalOrderReversePrefix = "global_seq_rev:"

func keyLatestSeq(author string) []byte {
	key := make([]byte, 0, 1+len(author))
	key = append(key, prefixLatestSeq)
	key = append(key, author...)
	return key
}

func keyMsgKVT(author string, seq uint64) []byte {
	key := make([]byte, 0, 1+8+len(author))
	key = append(key, prefixMsgKVT)
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	key = append(key, seqBuf[:]...)
	key = append(key, author...)
	return key
}

func keyMsgVal(messageID string) []byte {
	key := make([]byte, 0, 1+len(messageID))
	key = append(key, prefixMsgVal)
	key = append(key, messageID...)
	return key
}

func keyBlob(blobID string) []byte {
	key := make([]byte, 0, 1+len(blobID))
	key = append(key, prefixBlob)
	key = append(key, blobID...)
	return key
}

func keyPeer(author string) []byte {
	key := make([]byte, 0, 1+len(author))
	key = append(key, prefixPeer)
	key = append(key, author...)
	return key
}

// prefixRange returns the [lo, hi) bound pair for scanning a prefix class.
func prefixRange(prefix byte) (lo, hi []byte) {
	return []byte{prefix}, []byte{prefix + 1}
}

func u64ToBytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func bytesToU64(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.BigEndian.Uint64(buf[:])
}
