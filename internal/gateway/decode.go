package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The free endpoints fronted by the text gateway disagree about response
// framing. decodeTextBody normalizes the known shapes into a plain string:
// OpenAI chat completions, a {"response": ...} or {"text": ...} wrapper, a
// bare JSON string, or a plain-text body. Any other JSON shape is an
// explicit failure so the chain can advance.
func decodeTextBody(contentType string, body []byte) (string, error) {
	if !strings.Contains(contentType, "application/json") {
		return string(body), nil
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &completion); err == nil &&
		len(completion.Choices) > 0 && completion.Choices[0].Message.Content != "" {
		return completion.Choices[0].Message.Content, nil
	}

	var wrapper struct {
		Response string `json:"response"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if wrapper.Response != "" {
			return wrapper.Response, nil
		}
		if wrapper.Text != "" {
			return wrapper.Text, nil
		}
	}

	var bare string
	if err := json.Unmarshal(body, &bare); err == nil && bare != "" {
		return bare, nil
	}

	return "", fmt.Errorf("unrecognized response shape: %s", truncate(string(body), 200))
}
