package server

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ironsheep/glm-vision-mcp/internal/imaging"
)

// ToolReadImage is the name of the only tool this server exposes.
const ToolReadImage = "read_image"

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []mcp.Tool {
	return []mcp.Tool{
		{
			Name: ToolReadImage,
			Description: fmt.Sprintf("Analyze a local image with a vision-language model. "+
				"Supported formats: %s. The image is downscaled and re-encoded as JPEG before upload. "+
				"Returns a JSON envelope: {\"success\": true, \"data\": <answer>, \"timestamp\": N} or "+
				"{\"success\": false, \"error\": <message>, \"error_code\": \"VALIDATION_ERROR\"|\"UNKNOWN_ERROR\", \"timestamp\": N}.",
				strings.Join(imaging.SupportedExtensions(), ", ")),
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					argImagePath: map[string]interface{}{
						"type":        "string",
						"description": "Path to the image file",
					},
					argPrompt: map[string]interface{}{
						"type":        "string",
						"description": "What to ask about the image",
					},
					argTemperature: map[string]interface{}{
						"type":        "number",
						"description": "Sampling temperature (0.0-2.0). Default 0.8",
						"default":     defaultTemperature,
						"minimum":     minTemperature,
						"maximum":     maxTemperature,
					},
					argMaxTokens: map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of output tokens. Default 1000",
						"default":     defaultMaxTokens,
					},
				},
				Required: requiredArgs,
			},
		},
	}
}
