package chunker

import (
	"encoding/binary"
	"encoding/json"
)

// frameMagic tags the binary envelope payload so a client can recognize a
// WHP1 frame versus any future wire format.
var frameMagic = [4]byte{'W', 'H', 'P', '1'}

// buildFrameHeader renders the WHP1 preamble: magic, a big-endian length of
// the metadata JSON, then the metadata JSON itself. Body bytes follow,
// streamed in separately by the caller.
func buildFrameHeader(meta RequestMeta) ([]byte, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	header := make([]byte, 0, 8+len(metaJSON))
	header = append(header, frameMagic[:]...)
	header = binary.BigEndian.AppendUint32(header, uint32(len(metaJSON)))
	header = append(header, metaJSON...)
	return header, nil
}
