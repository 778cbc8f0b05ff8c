package audimeta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	apperrors "github.com/maauso/audimeta-splitter/internal/errors"
)

// GetChapters retrieves the chapter list of a book. The response may be a
// bare JSON array of chapters or an object with a "chapters" array.
func (c *Client) GetChapters(ctx context.Context, bookID string) (*ChapterList, error) {
	asin, err := normalizeASIN(bookID)
	if err != nil {
		return nil, apperrors.NotFound(err, "getChapters").WithBook(bookID)
	}

	path := "/chapters/" + url.PathEscape(asin)
	body, err := c.doRequest(ctx, "getChapters", asin, path, nil)
	if err != nil {
		return nil, err
	}

	var raw rawChapterList
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw.Chapters); err != nil {
			return nil, apperrors.InvalidMetadata(fmt.Errorf("%w: %w", ErrSchema, err), "getChapters: decode response").WithBook(asin).WithDetail(excerpt(body))
		}
		if err := c.validate.Struct(raw); err != nil {
			return nil, apperrors.InvalidMetadata(fmt.Errorf("%w: %w", ErrSchema, err), "getChapters: validate response").WithBook(asin).WithDetail(excerpt(body))
		}
	} else if err := c.decode("getChapters", asin, body, &raw); err != nil {
		return nil, err
	}

	list := &ChapterList{
		ASIN:     asin,
		Chapters: make([]Chapter, len(raw.Chapters)),
		Accurate: raw.IsAccurate,
	}
	if raw.RuntimeLengthMs != nil {
		list.RuntimeSeconds = *raw.RuntimeLengthMs / 1000
	}
	for i, ch := range raw.Chapters {
		list.Chapters[i] = Chapter{
			Title:        *ch.Title,
			StartSeconds: ch.startSeconds(),
		}
		if ch.LengthMs != nil {
			list.Chapters[i].LengthSeconds = *ch.LengthMs / 1000
		}
	}

	return list, nil
}
