package auk

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auk/tools", "auk")

// ImageGenerationName is the name of the image tool
const ImageGenerationName = "image_generation"

// DefaultImageModel is used when the request does not specify the model
const DefaultImageModel = "gemini-3-pro-image-preview"

// ImageGenerationHint is returned to the model with the generated images
const ImageGenerationHint = "The images are generated and shown to the user. You don't need to show the image url to the user in your response."

// ImageGenerationRequest is the input of the image tool
type ImageGenerationRequest struct {
	Prompt         string   `json:"prompt" yaml:"prompt" validate:"required" jsonschema:"description=prompt description"`
	InputImageURLs []string `json:"input_image_urls,omitempty" yaml:"input_image_urls,omitempty" jsonschema:"description=input image urls"`
	Resolution     string   `json:"resolution,omitempty" yaml:"resolution,omitempty" validate:"omitempty,oneof=1K 2K 4K" jsonschema:"enum=1K,enum=2K,enum=4K,default=1K,description=image resolution"`
	AspectRatio    string   `json:"aspectRatio,omitempty" yaml:"aspectRatio,omitempty" validate:"omitempty,oneof=21:9 16:9 4:3 3:2 1:1 9:16 3:4 2:3 5:4 4:5" jsonschema:"enum=21:9,enum=16:9,enum=4:3,enum=3:2,enum=1:1,enum=9:16,enum=3:4,enum=2:3,enum=5:4,enum=4:5,default=16:9,description=image aspect ratio"`
	Model          string   `json:"model,omitempty" yaml:"model,omitempty" jsonschema:"default=gemini-3-pro-image-preview,description=model name"`
}

// ImageGenerationResult is returned to the model
type ImageGenerationResult struct {
	ImageURL []string `json:"image_url" yaml:"image_url"`
	Hint     string   `json:"hint" yaml:"hint"`
}

// ImageGenerator produces images for the request and returns their URLs
type ImageGenerator interface {
	GenerateImages(ctx context.Context, req *ImageGenerationRequest) ([]string, error)
}

// ImageGeneratorFunc is an adapter to use a function as ImageGenerator
type ImageGeneratorFunc func(ctx context.Context, req *ImageGenerationRequest) ([]string, error)

// GenerateImages calls f
func (f ImageGeneratorFunc) GenerateImages(ctx context.Context, req *ImageGenerationRequest) ([]string, error) {
	return f(ctx, req)
}

// StaticImages returns a generator that always returns the urls
func StaticImages(urls ...string) ImageGenerator {
	return ImageGeneratorFunc(func(context.Context, *ImageGenerationRequest) ([]string, error) {
		return slices.Clone(urls), nil
	})
}

// ImageGenerationConfig declares the image tool
var ImageGenerationConfig = tools.Config{
	Name: ImageGenerationName,
	Description: `Generate or edit an image. To generate, provide a 'prompt'. To edit, provide a 'prompt' and some 'inputImageUrls'. The image will be shown to the user by this tool. You don't need to show the image url to the user in your response.

inputImageUrls are reference images, which can be user-uploaded images or previously generated images.

Prompt Usage Guidelines:
- Prompt length guideline: Keep prompts concise and to the point. Avoid overly long or complex descriptions.
- When generating new images: Use detailed and accurate descriptions, ensuring the description is as specific and complete as possible
- When editing existing images: Use relatively brief descriptions, only describing the changes to be made
- When text or symbols need to appear in the image: Use the original text and symbols exactly as specified, rather than synonyms or approximations

Example 1: Generate Image (Detailed Description)
"Create a realistic photo of a golden retriever puppy sitting in a sunny meadow with wildflowers, detailed fur texture, natural lighting, 8k resolution"

Example 2: Edit Image (Brief Description)
Based on Image 1, change the dog's color to black

Example 3: Merge Multiple Images
Merge Image 1 and Image 2 together, create a double portrait scene, add a warm sunset background`,
	Output: outputSchema[string]("image url"),
}

// NewImageGeneration returns the image tool backed by gen
func NewImageGeneration(gen ImageGenerator) *tools.Func[ImageGenerationRequest, ImageGenerationResult] {
	return tools.MustNew(ImageGenerationConfig,
		func(ctx context.Context, req *ImageGenerationRequest) (*ImageGenerationResult, error) {
			if gen == nil {
				return nil, errors.New("image generator is not configured")
			}
			images, err := gen.GenerateImages(ctx, req)
			if err != nil {
				logger.ContextKV(ctx, xlog.ERROR, "model", req.Model, "err", err)
				return nil, errors.WithMessage(err, "failed to generate images")
			}
			logger.ContextKV(ctx, xlog.DEBUG,
				"model", req.Model,
				"resolution", req.Resolution,
				"aspect_ratio", req.AspectRatio,
				"inputs", len(req.InputImageURLs),
				"images", len(images))
			return &ImageGenerationResult{
				ImageURL: images,
				Hint:     ImageGenerationHint,
			}, nil
		})
}
