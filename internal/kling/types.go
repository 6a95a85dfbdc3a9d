// Package kling provides an HTTP client for Kling image-to-video generation
// via the PiAPI task host.
package kling

// VideoTask is the input for creating an image-to-video job.
type VideoTask struct {
	// ImageBase64 is the base64-encoded source image.
	ImageBase64 string
	// Prompt is the motion/narrative prompt for the video.
	Prompt string
	// NegativePrompt lists unwanted features.
	NegativePrompt string
	// DurationSeconds is the requested video duration (5 or 10).
	DurationSeconds int
}

// createTaskRequest is the wire request for task creation.
type createTaskRequest struct {
	Model  string      `json:"model"`
	TaskTy string      `json:"task_type"`
	Input  createInput `json:"input"`
}

type createInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Image          string `json:"image_base64,omitempty"`
	Duration       int    `json:"duration"`
	Mode           string `json:"mode,omitempty"`
	Version        string `json:"version,omitempty"`
}

// statusEnvelope covers the task-status layouts seen across PiAPI versions.
// Older responses nest everything under data with a status string; newer
// ones use task_status. Both are probed.
type statusEnvelope struct {
	Status string     `json:"status"`
	Data   statusData `json:"data"`
}

type statusData struct {
	TaskID     string      `json:"task_id"`
	Status     string      `json:"status"`
	TaskStatus string      `json:"task_status"`
	Error      taskError   `json:"error"`
	Output     *taskOutput `json:"output"`
	TaskResult *taskResult `json:"task_result"`
}

type taskError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// taskOutput is the PiAPI-style output shape.
type taskOutput struct {
	VideoURL string `json:"video_url"`
	Works    []work `json:"works"`
}

type work struct {
	Video workVideo `json:"video"`
}

type workVideo struct {
	ResourceWithoutWatermark string `json:"resource_without_watermark"`
	Resource                 string `json:"resource"`
}

// taskResult is the Kling-official output shape.
type taskResult struct {
	Videos []resultVideo `json:"videos"`
}

type resultVideo struct {
	URL string `json:"url"`
}
