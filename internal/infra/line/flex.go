package line

import "billnotify/internal/domain"

// Flex message component tree; only the fields the reminders use.

type Message struct {
	Type     string `json:"type"`
	AltText  string `json:"altText"`
	Contents Bubble `json:"contents"`
}

type Bubble struct {
	Type   string    `json:"type"`
	Body   Component `json:"body"`
	Footer Component `json:"footer"`
}

type Component struct {
	Type     string      `json:"type"`
	Layout   string      `json:"layout,omitempty"`
	Text     string      `json:"text,omitempty"`
	Weight   string      `json:"weight,omitempty"`
	Size     string      `json:"size,omitempty"`
	Color    string      `json:"color,omitempty"`
	Margin   string      `json:"margin,omitempty"`
	Spacing  string      `json:"spacing,omitempty"`
	Align    string      `json:"align,omitempty"`
	Style    string      `json:"style,omitempty"`
	Flex     *int        `json:"flex,omitempty"`
	Action   *Action     `json:"action,omitempty"`
	Contents []Component `json:"contents,omitempty"`
}

type Action struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	URI   string `json:"uri"`
}

func flex(n int) *int { return &n }

func text(s string) Component { return Component{Type: "text", Text: s} }

func box(layout string, children ...Component) Component {
	return Component{Type: "box", Layout: layout, Spacing: "sm", Contents: children}
}

func row(label, value, valueColor, valueSize string) Component {
	l := text(label)
	l.Color, l.Size, l.Flex = "#aaaaaa", "sm", flex(1)
	v := text(value)
	v.Size, v.Color, v.Flex, v.Align = valueSize, valueColor, flex(2), "end"
	if valueSize == "md" {
		v.Weight = "bold"
	}
	return box("baseline", l, v)
}

// Flex lays a rendered reminder out as a bubble with a deep-link button.
func Flex(r domain.Reminder) Message {
	title := text(r.Title)
	title.Weight, title.Size, title.Color = "bold", "xl", r.Accent

	glyph := text(r.Glyph)
	glyph.Size, glyph.Flex = "xl", flex(0)
	vendor := text(r.Vendor)
	vendor.Weight, vendor.Size, vendor.Flex = "bold", "lg", flex(1)

	details := box("vertical",
		box("baseline", glyph, vendor),
		row("Amount:", r.Amount, r.Accent, "md"),
		row("Due Date:", r.DueDate, "", "sm"),
	)
	details.Margin = "lg"

	button := Component{
		Type:   "button",
		Style:  "primary",
		Color:  r.Accent,
		Action: &Action{Type: "uri", Label: r.Action, URI: r.Link},
	}

	return Message{
		Type:    "flex",
		AltText: r.AltText,
		Contents: Bubble{
			Type:   "bubble",
			Body:   Component{Type: "box", Layout: "vertical", Contents: []Component{title, details}},
			Footer: box("vertical", button),
		},
	}
}
