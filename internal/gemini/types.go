package gemini

// EditRequest asks the image model to edit one template with one prompt.
type EditRequest struct {
	Prompt      string
	Image       []byte
	MimeType    string
	AspectRatio string
	Resolution  string
}

type Image struct {
	MimeType string
	Data     []byte
}

// EditResult holds every part the model returned. Images may be empty when
// the model answered with text only.
type EditResult struct {
	Text   string
	Images []Image
}
