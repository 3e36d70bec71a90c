package extension

import (
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	language "github.com/hanpama/gqlguard/internal/language"
)

const defaultMaskedMessage = "Unexpected error."

// MaskErrors hides upstream error messages from clients. Errors for which
// ShouldMask returns true get Message instead of their own message, and lose
// their extensions. Location and path are kept.
type MaskErrors struct {
	ShouldMask func(message string) bool
	Message    string
}

func (m *MaskErrors) ExtensionName() string           { return "MaskErrors" }
func (m *MaskErrors) Validate(*language.Schema) error { return nil }

func (m *MaskErrors) InterceptResponse(body []byte) []byte {
	errs := gjson.GetBytes(body, "errors")
	if !errs.IsArray() {
		return body
	}
	message := m.Message
	if message == "" {
		message = defaultMaskedMessage
	}
	out := body
	for i, e := range errs.Array() {
		if m.ShouldMask != nil && !m.ShouldMask(e.Get("message").String()) {
			continue
		}
		prefix := "errors." + strconv.Itoa(i)
		masked, err := sjson.SetBytes(out, prefix+".message", message)
		if err != nil {
			return body
		}
		if e.Get("extensions").Exists() {
			masked, err = sjson.DeleteBytes(masked, prefix+".extensions")
			if err != nil {
				return body
			}
		}
		out = masked
	}
	return out
}
