package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// decodeJSONReply unmarshals a model reply into out. Models often wrap their
// JSON in a markdown fence; the fenced block wins when present.
func decodeJSONReply(raw string, out any) error {
	payload := strings.TrimSpace(raw)
	if m := fencedJSON.FindStringSubmatch(payload); m != nil {
		payload = m[1]
	}
	return json.Unmarshal([]byte(payload), out)
}
