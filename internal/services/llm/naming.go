package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// NamingSystemPrompt instructs the model to answer with a bare filename stem.
const NamingSystemPrompt = "You are an AI assistant that generates concise, descriptive filenames for images. " +
	"Create filenames that are clear, specific, and under 50 characters. " +
	"Use lowercase with hyphens between words. Don't include file extensions."

// NamingUserPrompt accompanies the image in the user message.
const NamingUserPrompt = "Generate a concise, descriptive filename for this image. " +
	"The filename should be clear, specific, and under 50 characters. " +
	"Use lowercase with hyphens between words. Don't include file extensions."

const namingTemperature = 0.2

var mediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
}

// MediaTypeForPath returns the image media type implied by the file extension,
// defaulting to image/png for unknown extensions.
func MediaTypeForPath(path string) string {
	if mt, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "image/png"
}

// SuggestName sends the image to the model and returns its raw filename
// suggestion with surrounding quotes and code fences removed. The result is not
// sanitized; callers slugify it before touching the file system. A choice with
// no text yields "" and a nil error so the caller falls back to a generic
// name; an explicit refusal is an error.
func (c *Client) SuggestName(ctx context.Context, image []byte, mediaType string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("llm suggest name: image data required")
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("llm suggest name: api key required")
	}
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		mediaType = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(image))
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: NamingSystemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				{Type: "text", Text: NamingUserPrompt},
			}},
		},
		Temperature: namingTemperature,
		MaxTokens:   c.cfg.MaxTokens,
	}
	r, err := c.complete(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("llm suggest name: %w", err)
	}
	if r.Content == "" && r.Refusal != "" {
		return "", fmt.Errorf("llm suggest name: model refused: %s", snippet(r.Refusal))
	}
	return cleanSuggestion(r.Content), nil
}

// cleanSuggestion keeps the first non-empty line of the reply and drops quoting
// the model tends to add.
func cleanSuggestion(content string) string {
	text := stripCodeFence(content)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.Trim(line, "\"'`")
		return strings.TrimSpace(line)
	}
	return ""
}
