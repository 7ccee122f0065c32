package chunk

import "strings"

// Segment splits text into chunks using a fresh session id. See
// SegmentSession for the splitting rules.
func Segment(text string, separators []string) []Chunk {
	return SegmentSession(text, separators, NewSessionID())
}

// SegmentSession splits text into ordered chunks whose ids share the given
// session suffix.
//
// With no separators the whole trimmed text becomes a single chunk, or zero
// chunks when it trims to empty. Otherwise the first separator performs the
// primary split, and each resulting part is split once more by the first
// remaining separator that actually occurs in it. All parts are trimmed and
// empty parts are dropped, so ids are dense but chunk index does not
// correspond to source position once empties are removed.
func SegmentSession(text string, separators []string, session string) []Chunk {
	if len(separators) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []Chunk{{ID: textChunkID(0, session), Text: trimmed}}
	}

	parts := strings.Split(text, separators[0])
	secondary := separators[1:]

	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		for _, piece := range splitOnce(part, secondary) {
			trimmed := strings.TrimSpace(piece)
			if trimmed == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				ID:   textChunkID(len(chunks), session),
				Text: trimmed,
			})
		}
	}
	return chunks
}

// splitOnce applies the first separator that occurs in part. Remaining
// separators are intentionally not applied recursively.
func splitOnce(part string, separators []string) []string {
	for _, sep := range separators {
		if strings.Contains(part, sep) {
			return strings.Split(part, sep)
		}
	}
	return []string{part}
}
