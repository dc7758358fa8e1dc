package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/and161185/gastroguide/internal/model"
)

const untitled = "Sin título"

// Courses lists the catalogue. The list may come under data, under courses or bare;
// ids are read from id, _id or courseId and titles from title or name.
func (c *Client) Courses(ctx context.Context) ([]model.Course, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/v1/courses/all", nil)
	if err != nil {
		return nil, fmt.Errorf("courses: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("courses: decode: %w", err)
	}
	return normalizeCourses(body), nil
}

func normalizeCourses(body any) []model.Course {
	list := body
	if m, ok := body.(map[string]any); ok {
		list = nil
		for _, k := range []string{"data", "courses"} {
			if v, ok := m[k]; ok && v != nil {
				list = v
				break
			}
		}
	}
	arr, ok := list.([]any)
	if !ok {
		return []model.Course{}
	}
	out := make([]model.Course, 0, len(arr))
	for _, it := range arr {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		c := model.Course{
			ID:          firstID(m, "id", "_id", "courseId"),
			Title:       firstString(m, "title", "name"),
			Description: firstString(m, "description"),
			Image:       firstString(m, "image", "imageUrl"),
			Price:       number(m["price"]),
			Rating:      number(m["rating"]),
		}
		if c.Title == "" {
			c.Title = untitled
		}
		out = append(out, c)
	}
	return out
}

func firstID(m map[string]any, keys ...string) model.ID {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return model.ID(v)
			}
		case json.Number:
			return model.ID(v.String())
		}
	}
	return ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func number(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}
