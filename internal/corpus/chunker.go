package corpus

import "strings"

// splitText breaks text into chunks of at most chunkSize runes with
// chunkOverlap runes carried between consecutive chunks. Paragraph breaks
// are preferred split points so chunks stay readable.
func splitText(text string, chunkSize, chunkOverlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = splitPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// splitPoint walks back from the hard limit looking for a paragraph break,
// then a newline, then a space. Falls back to the hard limit.
func splitPoint(runes []rune, start, limit int) int {
	minPoint := start + (limit-start)/2
	for i := limit; i > minPoint; i-- {
		if i+1 < len(runes) && runes[i] == '\n' && runes[i+1] == '\n' {
			return i
		}
	}
	for i := limit; i > minPoint; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	for i := limit; i > minPoint; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return limit
}
