// Package gemini provides an HTTP client for the Gemini generateContent API,
// used for prompt enhancement (text+vision) and image composition.
package gemini

// InlineImage is an image attached to a generation request.
type InlineImage struct {
	// MIMEType is the image MIME type (e.g. image/png).
	MIMEType string
	// Data is the raw image bytes.
	Data []byte
}

// TextRequest is the input for a text generation call.
type TextRequest struct {
	// Instruction is the full instruction text sent to the model.
	Instruction string
	// Images are attached reference images, in order.
	Images []InlineImage
}

// ImageRequest is the input for an image generation call.
type ImageRequest struct {
	// Instruction is the full instruction text sent to the model.
	Instruction string
	// Images are attached reference images, in order.
	Images []InlineImage
}

// ImageResult is the normalized output of an image generation call.
type ImageResult struct {
	// Data is the raw generated image bytes.
	Data []byte
	// MIMEType is the MIME type of the generated image.
	MIMEType string
}

// generateRequest is the wire request for the generateContent endpoint.
type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// generateResponse is the wire response for the generateContent endpoint.
// Parts may carry text, inline image data, or a file reference depending on
// the model and API version; all three shapes are probed.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []responsePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

type responsePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	FileData   *fileData   `json:"fileData,omitempty"`
}

type fileData struct {
	MIMEType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
