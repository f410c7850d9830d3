package auk

import (
	"github.com/effective-security/auk/pkg/schema"
	"github.com/effective-security/auk/tools"
)

// DisplayInformationCardName is the name of the card tool
const DisplayInformationCardName = "display_information_card"

// CardType is the style of an information card
type CardType string

const (
	CardInfo    CardType = "info"
	CardSuccess CardType = "success"
	CardWarning CardType = "warning"
	CardError   CardType = "error"
)

// CardAction is an action button of a card
type CardAction struct {
	Label    string `json:"label" yaml:"label" validate:"required" jsonschema:"description=Button label"`
	ActionID string `json:"action_id" yaml:"action_id" validate:"required" jsonschema:"description=Action identifier"`
	Link     string `json:"link,omitempty" yaml:"link,omitempty" validate:"omitempty,url" jsonschema:"format=uri"`
}

// DisplayInformationCardRequest is the information card configuration
type DisplayInformationCardRequest struct {
	ImageURL string       `json:"image_url,omitempty" yaml:"image_url,omitempty" validate:"omitempty,url" jsonschema:"format=uri,description=Optional image URL (for info card type)"`
	Title    string       `json:"title" yaml:"title" validate:"required" jsonschema:"description=Card title"`
	Content  string       `json:"content" yaml:"content" validate:"required" jsonschema:"description=Main content text"`
	Type     CardType     `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=info success warning error" jsonschema:"enum=info,enum=success,enum=warning,enum=error,default=info,description=Card style (for info card type)"`
	Actions  []CardAction `json:"actions,omitempty" yaml:"actions,omitempty" validate:"omitempty,dive" jsonschema:"description=Action buttons"`
}

// DisplayInformationCardConfig declares the card tool
var DisplayInformationCardConfig = tools.Config{
	Name:             DisplayInformationCardName,
	Description:      "Display an information card to the user.",
	InputDescription: "Information card configuration",
	// the clicked action ID, or the image URLs selected in a gallery card
	Output: schema.MustFromAny(map[string]any{
		"description": "user interaction result",
		"anyOf": []any{
			map[string]any{"type": "string", "description": "ID of the action clicked by the user (if the card has action buttons)"},
			map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "image URLs selected by the user (image gallery cards that allow selection)"},
		},
	}),
}

// NewDisplayInformationCard returns the card tool, it has no human-in-the-loop policy
func NewDisplayInformationCard() *tools.Func[DisplayInformationCardRequest, string] {
	return tools.MustNew(DisplayInformationCardConfig,
		canned[DisplayInformationCardRequest]("information card displayed: answer will appear in human in the loop reject message"))
}
