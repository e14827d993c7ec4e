package models

// JudgeCharacter is one of the fixed AI judge personas. The style
// prompt biases how the judge evaluates roasts.
type JudgeCharacter struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	StylePrompt string `json:"style_prompt" yaml:"style_prompt"`
}
