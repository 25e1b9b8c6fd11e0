package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionEngine implements Engine using Google Cloud Vision API.
type VisionEngine struct {
	client        *vision.ImageAnnotatorClient
	languageHints []string
}

// NewVisionEngine creates a Vision engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionEngine(ctx context.Context, languageHints ...string) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	opts, err := googleClientOptions()
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read credentials")
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create image annotator client")
	}

	return NewVisionEngineWithClient(client, languageHints...), nil
}

// NewVisionEngineWithClient creates a Vision engine with an explicit client.
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient, languageHints ...string) *VisionEngine {
	return &VisionEngine{
		client:        client,
		languageHints: languageHints,
	}
}

// Name identifies the backend.
func (v *VisionEngine) Name() string {
	return BackendVision
}

// Recognize runs document text detection and returns one fragment per paragraph.
func (v *VisionEngine) Recognize(ctx context.Context, png []byte) ([]Fragment, error) {
	const op = "VisionEngine.Recognize"

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: png},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: v.languageHints,
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imageResp := resp.Responses[0]
	if imageResp.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imageResp.Error.Message))
	}

	return visionFragments(imageResp.FullTextAnnotation), nil
}

// visionFragments walks pages, blocks and paragraphs and rebuilds paragraph
// text from symbols and their detected breaks.
func visionFragments(annotation *visionpb.TextAnnotation) []Fragment {
	if annotation == nil {
		return nil
	}

	var fragments []Fragment
	for _, page := range annotation.Pages {
		for _, block := range page.Blocks {
			for _, paragraph := range block.Paragraphs {
				var text strings.Builder
				for _, word := range paragraph.Words {
					for _, symbol := range word.Symbols {
						text.WriteString(symbol.Text)
						if symbol.Property != nil && symbol.Property.DetectedBreak != nil {
							switch symbol.Property.DetectedBreak.Type {
							case visionpb.TextAnnotation_DetectedBreak_SPACE,
								visionpb.TextAnnotation_DetectedBreak_SURE_SPACE,
								visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
								visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
								text.WriteString(" ")
							case visionpb.TextAnnotation_DetectedBreak_HYPHEN:
								text.WriteString("-")
							}
						}
					}
				}
				if s := strings.TrimSpace(text.String()); s != "" {
					fragments = append(fragments, Fragment{Text: s, Confidence: paragraph.Confidence})
				}
			}
		}
	}

	// Some responses carry only the flat text.
	if len(fragments) == 0 && strings.TrimSpace(annotation.Text) != "" {
		fragments = append(fragments, Fragment{Text: strings.Join(strings.Fields(annotation.Text), " ")})
	}
	return fragments
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// googleClientOptions returns credential options from GOOGLE_CREDENTIALS or
// GOOGLE_APPLICATION_CREDENTIALS; none means application default credentials.
func googleClientOptions() ([]option.ClientOption, error) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}, nil
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		if _, err := os.Stat(credFile); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
		}
		return []option.ClientOption{option.WithCredentialsFile(credFile)}, nil
	}
	return nil, nil
}
