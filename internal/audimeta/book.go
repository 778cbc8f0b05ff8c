package audimeta

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
)

// GetBook retrieves the metadata of a single audiobook by ASIN.
func (c *Client) GetBook(ctx context.Context, bookID string) (*Book, error) {
	asin, err := normalizeASIN(bookID)
	if err != nil {
		return nil, apperrors.NotFound(err, "getBook").WithBook(bookID)
	}

	path := "/book/" + url.PathEscape(asin)
	body, err := c.doRequest(ctx, "getBook", asin, path, nil)
	if err != nil {
		return nil, err
	}

	var raw rawBook
	if err := c.decode("getBook", asin, body, &raw); err != nil {
		return nil, err
	}

	book := raw.toBook()
	return &book, nil
}

// Search looks books up by title and author. Records that fail validation
// are skipped. An empty result is a NOT_FOUND error.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]Book, error) {
	title := strings.TrimSpace(q.Title)
	author := strings.TrimSpace(q.Author)
	if title == "" && author == "" {
		return nil, apperrors.NotFound(ErrQueryRequired, "search")
	}

	query := url.Values{}
	query.Set("title", title)
	query.Set("author", author)
	query.Set("localTitle", title)
	query.Set("localAuthor", author)

	body, err := c.doRequest(ctx, "search", "", "/search", query)
	if err != nil {
		return nil, err
	}

	var raw []rawBook
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperrors.InvalidMetadata(fmt.Errorf("%w: %w", ErrSchema, err), "search: decode response").WithDetail(excerpt(body))
	}

	books := make([]Book, 0, len(raw))
	for i, r := range raw {
		if err := c.validate.Struct(r); err != nil {
			c.logger.Warn("skipping invalid search result",
				slog.Int("position", i+1),
				slog.String("error", err.Error()),
			)
			continue
		}
		books = append(books, r.toBook())
	}

	if len(books) == 0 {
		return nil, apperrors.NotFound(ErrNotFound, "no books match %s", describeQuery(title, author))
	}

	return books, nil
}

func describeQuery(title, author string) string {
	switch {
	case title != "" && author != "":
		return fmt.Sprintf("title %q by %q", title, author)
	case title != "":
		return fmt.Sprintf("title %q", title)
	default:
		return fmt.Sprintf("author %q", author)
	}
}
