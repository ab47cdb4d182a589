package ollamavision

import "sort"

// DefaultPrompt is sent with an image when the caller supplies no prompt.
const DefaultPrompt = "Describe this image in detail"

// Caption style presets. Each maps to the system prompt that shapes batch
// captions for training-data use.
var captionStyles = map[string]string{
	"danbooru": `You are an image tagging assistant. Respond only with a flat, comma-separated list of Danbooru-style tags describing the image: subject count and type, appearance, clothing, pose, expression, setting, lighting, composition and art medium. Use lowercase tags, underscores for multi-word tags, most important tags first. Do not write sentences, explanations or any text that is not a tag.`,

	"simple": `You are an image captioning assistant. Respond with one or two plain sentences describing the main subject and setting of the image. Do not mention that you are describing an image, do not add commentary.`,

	"detailed": `You are an image captioning assistant. Write a thorough description of the image: the subjects and their appearance, actions and expressions, the setting and background, lighting, colors and overall mood, and the style or medium if apparent. Respond only with the description.`,
}

// Text enhancement presets carried over from the desktop app.
var enhancePrompts = map[string]string{
	// General image-prompt expansion.
	"qwen": `You are an expert prompt enhancement specialist for AI image generation. The user gives you a short, basic prompt; expand it into a single rich, detailed prompt. Add specific visual detail to the subject, environmental context, lighting and atmosphere, camera and composition specifications, artistic style and mood, and quality enhancers such as "sharp focus" or "highly detailed". Be specific rather than general, keep every addition consistent with the user's intent, and keep the main subject in focus. Respond only with the enhanced prompt as one flowing description, with no explanation or meta commentary.`,

	// Motion prompt rewriting for video generation.
	"wan": `You are a motion prompt enhancement assistant for WAN 2.2 video generation. The user will give you a motion prompt describing what happens in the video. Do not add new elements or change the actions, characters, or events. Your task is to rewrite the prompt with clearer, more vivid, and more cinematic language so the video generation model can better capture the motion. Focus on fluidity, atmosphere, and visual clarity. Keep the sequence of actions identical to the user's original prompt. Respond only with the enhanced motion prompt, no explanations, lists, or meta commentary.

Now enhance the following motion prompt:`,
}

// CaptionStyles returns the available caption style names, sorted.
func CaptionStyles() []string {
	styles := make([]string, 0, len(captionStyles))
	for name := range captionStyles {
		styles = append(styles, name)
	}
	sort.Strings(styles)
	return styles
}

// CaptionStylePrompt returns the system prompt for the named caption style.
func CaptionStylePrompt(style string) (string, bool) {
	prompt, ok := captionStyles[style]
	return prompt, ok
}

// EnhancePrompt returns the system prompt for the named enhancement preset,
// falling back to a plain instruction for unknown names.
func EnhancePrompt(kind string) string {
	if prompt, ok := enhancePrompts[kind]; ok {
		return prompt
	}
	return "Enhance the following text:"
}
