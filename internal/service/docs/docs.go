package docs

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hongdnn/leadsync/core/config"
	"github.com/hongdnn/leadsync/internal/connector/httpclient"
)

const docsAPIBaseURL = "https://docs.googleapis.com"

// Service reads team preference documents as plain text.
type Service interface {
	FetchPlainText(ctx context.Context, documentID string) (string, error)
}

type googleDocsService struct {
	http *httpclient.Client
}

func NewGoogleDocsService(cfg config.GoogleDocsConfig) Service {
	return &googleDocsService{
		http: httpclient.New(docsAPIBaseURL, cfg.AccessToken),
	}
}

func (s *googleDocsService) FetchPlainText(ctx context.Context, documentID string) (string, error) {
	var doc struct {
		Body struct {
			Content []struct {
				Paragraph *struct {
					Elements []struct {
						TextRun *struct {
							Content string `json:"content"`
						} `json:"textRun"`
					} `json:"elements"`
				} `json:"paragraph"`
			} `json:"content"`
		} `json:"body"`
	}
	path := "/v1/documents/" + url.PathEscape(documentID)
	if err := s.http.GetJSON(ctx, path, nil, &doc); err != nil {
		return "", fmt.Errorf("fetching google doc %s: %w", documentID, err)
	}

	// Text runs carry their own trailing newlines, so plain
	// concatenation reconstructs the document layout.
	var text string
	for _, block := range doc.Body.Content {
		if block.Paragraph == nil {
			continue
		}
		for _, element := range block.Paragraph.Elements {
			if element.TextRun != nil {
				text += element.TextRun.Content
			}
		}
	}
	return text, nil
}
