package alexa

// Display template subtypes.
const (
	TemplateList1 = "ListTemplate1"
	TemplateList2 = "ListTemplate2"
	TemplateBody1 = "BodyTemplate1"
	TemplateBody2 = "BodyTemplate2"
	TemplateBody3 = "BodyTemplate3"
	TemplateBody6 = "BodyTemplate6"
	TemplateBody7 = "BodyTemplate7"
)

// Text field types.
const (
	TextPlain = "PlainText"
	TextRich  = "RichText"
)

// Back button visibility.
const (
	BackButtonVisible = "VISIBLE"
	BackButtonHidden  = "HIDDEN"
)

// Template is a display template payload. The subtype is not stored in the
// payload; RenderTemplateDirective adds it when encoding.
type Template interface {
	TemplateType() string
}

// Image is a display image with one or more sources.
type Image struct {
	ContentDescription string        `json:"contentDescription,omitempty"`
	Sources            []ImageSource `json:"sources"`
}

// ImageSource is one resolution of an Image.
type ImageSource struct {
	URL          string `json:"url"`
	Size         string `json:"size,omitempty"`
	WidthPixels  int    `json:"widthPixels,omitempty"`
	HeightPixels int    `json:"heightPixels,omitempty"`
}

// TextField is a single line of template text.
type TextField struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextContent holds up to three lines of template text.
type TextContent struct {
	PrimaryText   *TextField `json:"primaryText,omitempty"`
	SecondaryText *TextField `json:"secondaryText,omitempty"`
	TertiaryText  *TextField `json:"tertiaryText,omitempty"`
}

// PlainText builds a plain TextField.
func PlainText(text string) *TextField {
	return &TextField{Type: TextPlain, Text: text}
}

// ListItem is one entry of a list template.
type ListItem struct {
	Token       string       `json:"token"`
	Image       *Image       `json:"image,omitempty"`
	TextContent *TextContent `json:"textContent,omitempty"`
}

// ListTemplate1 is a vertical text list.
type ListTemplate1 struct {
	Token           string     `json:"token,omitempty"`
	BackButton      string     `json:"backButton,omitempty"`
	Title           string     `json:"title,omitempty"`
	BackgroundImage *Image     `json:"backgroundImage,omitempty"`
	ListItems       []ListItem `json:"listItems,omitempty"`
}

// TemplateType implements Template.
func (ListTemplate1) TemplateType() string { return TemplateList1 }

// ListTemplate2 is a horizontal image list.
type ListTemplate2 struct {
	Token           string     `json:"token,omitempty"`
	BackButton      string     `json:"backButton,omitempty"`
	Title           string     `json:"title,omitempty"`
	BackgroundImage *Image     `json:"backgroundImage,omitempty"`
	ListItems       []ListItem `json:"listItems,omitempty"`
}

// TemplateType implements Template.
func (ListTemplate2) TemplateType() string { return TemplateList2 }

// BodyTemplate1 is text over an optional background.
type BodyTemplate1 struct {
	Token           string       `json:"token,omitempty"`
	BackButton      string       `json:"backButton,omitempty"`
	Title           string       `json:"title,omitempty"`
	BackgroundImage *Image       `json:"backgroundImage,omitempty"`
	TextContent     *TextContent `json:"textContent,omitempty"`
}

// TemplateType implements Template.
func (BodyTemplate1) TemplateType() string { return TemplateBody1 }

// BodyTemplate2 is an image on the right with text on the left.
type BodyTemplate2 struct {
	Token           string       `json:"token,omitempty"`
	BackButton      string       `json:"backButton,omitempty"`
	Title           string       `json:"title,omitempty"`
	BackgroundImage *Image       `json:"backgroundImage,omitempty"`
	Image           *Image       `json:"image,omitempty"`
	TextContent     *TextContent `json:"textContent,omitempty"`
}

// TemplateType implements Template.
func (BodyTemplate2) TemplateType() string { return TemplateBody2 }

// BodyTemplate3 is an image on the left with text on the right.
type BodyTemplate3 struct {
	Token           string       `json:"token,omitempty"`
	BackButton      string       `json:"backButton,omitempty"`
	Title           string       `json:"title,omitempty"`
	BackgroundImage *Image       `json:"backgroundImage,omitempty"`
	Image           *Image       `json:"image,omitempty"`
	TextContent     *TextContent `json:"textContent,omitempty"`
}

// TemplateType implements Template.
func (BodyTemplate3) TemplateType() string { return TemplateBody3 }

// BodyTemplate6 is full-screen text over a background, without a title.
type BodyTemplate6 struct {
	Token           string       `json:"token,omitempty"`
	BackButton      string       `json:"backButton,omitempty"`
	BackgroundImage *Image       `json:"backgroundImage,omitempty"`
	Image           *Image       `json:"image,omitempty"`
	TextContent     *TextContent `json:"textContent,omitempty"`
}

// TemplateType implements Template.
func (BodyTemplate6) TemplateType() string { return TemplateBody6 }

// BodyTemplate7 is a single scaled image.
type BodyTemplate7 struct {
	Token           string `json:"token,omitempty"`
	BackButton      string `json:"backButton,omitempty"`
	Title           string `json:"title,omitempty"`
	BackgroundImage *Image `json:"backgroundImage,omitempty"`
	Image           *Image `json:"image,omitempty"`
}

// TemplateType implements Template.
func (BodyTemplate7) TemplateType() string { return TemplateBody7 }
