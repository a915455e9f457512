package orchestrator

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Artifacts are serialized either as one JSON array or as
// newline-delimited JSON objects, selected by the caller. Both round-trip
// through the same ImportItem shape.

func serializeItems(items []ImportItem, format ArtifactFormat) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.Marshal(items)
	case FormatNDJSON:
		var buf bytes.Buffer
		for _, item := range items {
			line, err := json.Marshal(item)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize item %q: %w", item.Name, err)
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown artifact format %q", format)
	}
}

func parseArtifact(data []byte, format ArtifactFormat) ([]ImportItem, error) {
	switch format {
	case FormatJSON:
		var items []ImportItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to parse JSON artifact: %w", err)
		}
		return items, nil
	case FormatNDJSON:
		var items []ImportItem
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), 32*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := bytes.TrimSpace(scanner.Bytes())
			if len(text) == 0 {
				continue
			}
			var item ImportItem
			if err := json.Unmarshal(text, &item); err != nil {
				return nil, fmt.Errorf("failed to parse NDJSON artifact line %d: %w", line, err)
			}
			items = append(items, item)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan NDJSON artifact: %w", err)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unknown artifact format %q", format)
	}
}

func artifactExtension(format ArtifactFormat) string {
	if format == FormatNDJSON {
		return "ndjson"
	}
	return "json"
}

func artifactContentType(format ArtifactFormat) string {
	if format == FormatNDJSON {
		return "application/x-ndjson"
	}
	return "application/json"
}

// formatForArtifact infers the serialization format from an artifact's
// name, falling back to the explicit parameter.
func formatForArtifact(name string, fallback ArtifactFormat) ArtifactFormat {
	switch {
	case strings.HasSuffix(name, ".ndjson"):
		return FormatNDJSON
	case strings.HasSuffix(name, ".json"):
		return FormatJSON
	default:
		if fallback == "" {
			return FormatJSON
		}
		return fallback
	}
}
